// Package history keeps a log of classified uploads.
package history

import (
	"context"
	"sync"
	"time"
)

// Entry is one classified upload.
type Entry struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	TopClass   string    `json:"top_class"`
	Confidence float32   `json:"confidence"`
	Labels     []string  `json:"labels"`
	CreatedAt  time.Time `json:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Store is a Recorder that can also list what it recorded, newest first.
type Store interface {
	Recorder
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Nop discards every entry. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Memory keeps the most recent entries in process, newest first.
type Memory struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
}

func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 100
	}
	return &Memory{limit: limit}
}

func (m *Memory) Record(_ context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append([]Entry{e}, m.entries...)
	if len(m.entries) > m.limit {
		m.entries = m.entries[:m.limit]
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	out := make([]Entry, limit)
	copy(out, m.entries[:limit])
	return out, nil
}
