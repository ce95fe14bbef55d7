package telegram

import (
	"sync"
	"time"
)

const (
	debounce       = 1200 * time.Millisecond
	maxBatchImages = 10
)

// photoBatch копит фото альбома (или серии фото подряд) до срабатывания debounce.
type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>" | "chat:<chatID>"
	MediaGroupID string

	mu     sync.Mutex
	images []photo
	timer  *time.Timer
}

type photo struct {
	data []byte
	mime string
}
