package session

import (
	"time"

	"github.com/google/uuid"

	"waste-bot/api/internal/classify"
)

// Session: состояние одного сеанса классификации. Передаётся в цикл явно,
// глобальных флагов нет.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	Handled   bool
	Frames    int
	Last      *classify.Result
}

func New() *Session {
	return &Session{ID: uuid.New(), StartedAt: time.Now()}
}

// Observe учитывает результат кадра и возвращает true ровно один раз,
// на первом принятом результате.
func (s *Session) Observe(res classify.Result) bool {
	if s.Handled {
		return false
	}
	s.Frames++
	r := res
	s.Last = &r
	if !res.Accepted {
		return false
	}
	s.Handled = true
	return true
}

// Done: подсказка уже показана, дальнейшие кадры игнорируются.
func (s *Session) Done() bool { return s.Handled }

// Reset начинает новый сеанс с новым ID.
func (s *Session) Reset() {
	*s = Session{ID: uuid.New(), StartedAt: time.Now()}
}
