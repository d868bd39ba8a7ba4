package index

import (
	"context"
	"encoding/json"
	"fmt"
)

type publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
	Close(ctx context.Context) error
}

// Kafka commits documents by publishing them keyed by UUID, so that a
// compacted topic holds the latest document per upload.
type Kafka struct {
	producer publisher
}

// NewKafka wraps a producer as a committer.
func NewKafka(p publisher) *Kafka {
	return &Kafka{producer: p}
}

// Commit publishes doc as JSON.
func (k *Kafka) Commit(ctx context.Context, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	headers := map[string]string{
		"slot_id":    doc.UUID,
		"event_type": "index.upsert",
	}

	if err := k.producer.Publish(ctx, []byte(doc.UUID), payload, headers); err != nil {
		return fmt.Errorf("publish document %s: %w", doc.UUID, err)
	}
	return nil
}

// Close flushes the producer.
func (k *Kafka) Close(ctx context.Context) error {
	return k.producer.Close(ctx)
}
