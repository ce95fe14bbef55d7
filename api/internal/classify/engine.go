package classify

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrUnknownEngine = errors.New("unknown engine")

// Engine: внешний классификатор изображений.
type Engine interface {
	Name() string
	GetModel() string
	ClassCount() int
	Predict(ctx context.Context, img []byte, mime string) ([]Prediction, error)
}

// ModelSwitcher умеет отдавать копию движка с другой моделью.
// Исходный движок не меняется: он общий для всех чатов.
type ModelSwitcher interface {
	WithModel(model string) Engine
}

// Engines: реестр сконфигурированных движков по имени.
type Engines map[string]Engine

// Get ищет движок по имени; "openai": синоним "gpt", "tm", "tmserver".
func (e Engines) Get(name string) (Engine, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "openai":
		n = "gpt"
	case "tm":
		n = "tmserver"
	}
	if eng, ok := e[n]; ok && eng != nil {
		return eng, nil
	}
	return nil, ErrUnknownEngine
}

func (e Engines) Names() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		if v != nil {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Manager хранит движок по умолчанию и выбор пользователя по чатам.
type Manager struct {
	def Engine
	m   sync.Map // chatID -> Engine
}

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, e)
}

func (m *Manager) Default() Engine { return m.def }
