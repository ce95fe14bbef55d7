package session

import (
	"time"

	"github.com/google/uuid"

	"waste-bot/api/internal/guide"
)

// Event описывает показанную подсказку, строка истории и payload для MQTT.
type Event struct {
	SessionID  uuid.UUID `json:"session_id"`
	ChatID     int64     `json:"chat_id,omitempty"`
	Source     string    `json:"source"`
	Engine     string    `json:"engine"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Accepted   bool      `json:"accepted"`
	Frames     int       `json:"frames"`
	VideoPath  string    `json:"video_path"`
	At         time.Time `json:"at"`
}

func NewEvent(s *Session, v guide.View, source, engine string) Event {
	return Event{
		SessionID:  s.ID,
		Source:     source,
		Engine:     engine,
		Label:      string(v.Label),
		Confidence: v.Confidence,
		Accepted:   v.Accepted,
		Frames:     s.Frames,
		VideoPath:  v.VideoPath,
		At:         time.Now().UTC(),
	}
}
