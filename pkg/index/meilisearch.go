package index

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
)

// MeilisearchConfig points at a Meilisearch instance and index.
type MeilisearchConfig struct {
	Host   string
	APIKey string
	Index  string
}

type documentAdder interface {
	AddDocuments(documentsPtr interface{}, primaryKey ...string) (*meilisearch.TaskInfo, error)
}

type indexCreator interface {
	CreateIndex(config *meilisearch.IndexConfig) (*meilisearch.TaskInfo, error)
}

// Meilisearch commits documents with the add-or-replace documents call.
type Meilisearch struct {
	uid    string
	client indexCreator
	index  documentAdder
}

// NewMeilisearch builds a committer for cfg.Index.
func NewMeilisearch(cfg MeilisearchConfig) *Meilisearch {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.Host,
		APIKey: cfg.APIKey,
	})
	return &Meilisearch{
		uid:    cfg.Index,
		client: client,
		index:  client.Index(cfg.Index),
	}
}

// EnsureIndex enqueues creation of the index with the uuid primary key.
// Meilisearch fails the task asynchronously when the index already exists.
func (m *Meilisearch) EnsureIndex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        m.uid,
		PrimaryKey: PrimaryKey,
	}); err != nil {
		return fmt.Errorf("create index %s: %w", m.uid, err)
	}
	return nil
}

// Commit upserts doc into the index.
func (m *Meilisearch) Commit(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.index.AddDocuments([]Document{doc}, PrimaryKey); err != nil {
		return fmt.Errorf("add document %s: %w", doc.UUID, err)
	}
	return nil
}

// Close is a no-op; the client holds no long lived connections.
func (m *Meilisearch) Close(context.Context) error {
	return nil
}
