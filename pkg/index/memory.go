package index

import (
	"context"
	"sync"
)

// Memory is an in-process committer for local runs and tests.
type Memory struct {
	mu   sync.Mutex
	docs map[string]Document
	fail error
}

// NewMemory returns an empty in-process committer.
func NewMemory() *Memory {
	return &Memory{docs: map[string]Document{}}
}

// FailWith makes every subsequent Commit return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Commit upserts doc by its uuid, replacing any earlier document.
func (m *Memory) Commit(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.docs[doc.UUID] = doc
	return nil
}

// Get returns the document stored under uuid.
func (m *Memory) Get(uuid string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[uuid]
	return doc, ok
}

// Len reports how many documents are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Close is a no-op.
func (m *Memory) Close(context.Context) error {
	return nil
}
