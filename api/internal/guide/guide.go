package guide

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"waste-bot/api/internal/classify"
)

const (
	// DefaultInstruction: ответ для метки, которой нет в таблице.
	DefaultInstruction = "No disposal guidance is available for this item."
	DefaultVideo       = "videos/general.mp4"

	// GeneralInstruction: текст для "general/mixed waste".
	GeneralInstruction = "This item is hard to sort or is contaminated; discard it as general waste."
)

// Entry: инструкция и ролик для одной категории.
type Entry struct {
	DisplayName string `yaml:"display_name"`
	Instruction string `yaml:"instruction"`
	Video       string `yaml:"video"`
}

// Table: фиксированная таблица подсказок.
type Table map[classify.Label]Entry

var defaultTable = Table{
	classify.Plastic: {
		DisplayName: "plastic",
		Instruction: "Remove the label, rinse it clean, compress it and put it out.",
		Video:       "videos/plastic.mp4",
	},
	classify.Vinyl: {
		DisplayName: "vinyl/film",
		Instruction: "Only clean vinyl/film is recyclable; if food is stuck on it, discard as general waste.",
		Video:       "videos/vinyl.mp4",
	},
	classify.Paper: {
		DisplayName: "paper",
		Instruction: "Remove tape/stickers, flatten, discard wet paper as general waste.",
		Video:       "videos/paper.mp4",
	},
	classify.Styrofoam: {
		DisplayName: "styrofoam",
		Instruction: "Remove food and foreign matter and put it out clean.",
		Video:       "videos/styrofoam.mp4",
	},
	classify.Can: {
		DisplayName: "can",
		Instruction: "Empty and rinse it, then compress it before putting it out.",
		Video:       "videos/can.mp4",
	},
	classify.Glass: {
		DisplayName: "glass",
		Instruction: "Separate the cap, rinse it clean and put it out.",
		Video:       "videos/glass.mp4",
	},
	classify.General: {
		DisplayName: "general/mixed waste",
		Instruction: GeneralInstruction,
		Video:       DefaultVideo,
	},
}

// Default возвращает копию встроенной таблицы.
func Default() Table {
	out := make(Table, len(defaultTable))
	for k, v := range defaultTable {
		out[k] = v
	}
	return out
}

// LoadTable читает YAML-файл с переопределениями поверх встроенной таблицы.
// Пустые поля записи сохраняют значения по умолчанию.
//
//	paper:
//	  instruction: "..."
//	  video: "videos/paper_v2.mp4"
func LoadTable(path string) (Table, error) {
	t := Default()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guide table: %w", err)
	}
	var raw map[string]Entry
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse guide table: %w", err)
	}
	for name, e := range raw {
		label, _ := classify.ParseLabel(name)
		cur := t[label]
		if e.DisplayName != "" {
			cur.DisplayName = e.DisplayName
		}
		if e.Instruction != "" {
			cur.Instruction = e.Instruction
		}
		if e.Video != "" {
			cur.Video = e.Video
		}
		t[label] = cur
	}
	return t, nil
}

func (t Table) lookup(label classify.Label) (Entry, bool) {
	e, ok := t[label]
	if !ok {
		// имена из модели могут прийти в исходном виде
		if l, known := classify.ParseLabel(string(label)); known {
			e, ok = t[l]
		}
	}
	return e, ok
}

func (t Table) Instruction(label classify.Label) string {
	if e, ok := t.lookup(label); ok && e.Instruction != "" {
		return e.Instruction
	}
	return DefaultInstruction
}

func (t Table) VideoPath(label classify.Label) string {
	if e, ok := t.lookup(label); ok && e.Video != "" {
		return e.Video
	}
	return DefaultVideo
}

func (t Table) DisplayName(label classify.Label) string {
	if e, ok := t.lookup(label); ok && e.DisplayName != "" {
		return e.DisplayName
	}
	return string(label)
}

// Instruction: инструкция по встроенной таблице.
func Instruction(label classify.Label) string { return defaultTable.Instruction(label) }

// VideoPath: путь к ролику по встроенной таблице.
func VideoPath(label classify.Label) string { return defaultTable.VideoPath(label) }
