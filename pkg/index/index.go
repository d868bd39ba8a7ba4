package index

import (
	"context"
	"fmt"

	"github.com/your-org/fileslot/pkg/kafka"
)

// PrimaryKey is the document field the index is keyed on.
const PrimaryKey = "uuid"

// Tag is an auxiliary name/value pair attached to a document.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Document is the indexed representation of a committed upload.
type Document struct {
	UUID      string  `json:"uuid"`
	Name      string  `json:"name"`
	Size      uint64  `json:"size"`
	Mime      *string `json:"mime,omitempty"`
	Hash      string  `json:"hash"`
	IndexedAt uint64  `json:"indexed_at"`
	Tags      []Tag   `json:"tags"`
}

// Committer upserts documents into the document index, keyed by UUID.
// A failed commit is reported once and never retried here.
type Committer interface {
	Commit(ctx context.Context, doc Document) error
	Close(ctx context.Context) error
}

// Config selects and configures the index backend.
type Config struct {
	Provider    string
	Meilisearch MeilisearchConfig
	Kafka       kafka.ProducerConfig
}

// New creates a committer based on the given configuration.
func New(ctx context.Context, cfg Config) (Committer, error) {
	switch cfg.Provider {
	case "meilisearch", "":
		m := NewMeilisearch(cfg.Meilisearch)
		if err := m.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		return m, nil
	case "kafka":
		return NewKafka(kafka.NewProducer(cfg.Kafka)), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", cfg.Provider)
	}
}
