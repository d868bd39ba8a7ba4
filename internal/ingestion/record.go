package ingestion

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/fileslot/pkg/index"
)

// Tag is an auxiliary form field recorded with an upload. Names are not
// unique and arrival order is kept.
type Tag struct {
	Name  string
	Value string
}

// Record describes a fully persisted and hashed upload.
type Record struct {
	ID        uuid.UUID
	Name      string
	Size      uint64
	MediaType string
	Hash      string
	IndexedAt time.Time
	Tags      []Tag
}

// Document converts the record into the index schema.
func (r *Record) Document() index.Document {
	doc := index.Document{
		UUID:      r.ID.String(),
		Name:      r.Name,
		Size:      r.Size,
		Hash:      r.Hash,
		IndexedAt: uint64(r.IndexedAt.UnixMilli()),
		Tags:      make([]index.Tag, 0, len(r.Tags)),
	}
	if r.MediaType != "" {
		mediaType := r.MediaType
		doc.Mime = &mediaType
	}
	for _, t := range r.Tags {
		doc.Tags = append(doc.Tags, index.Tag{Name: t.Name, Value: t.Value})
	}
	return doc
}
