package ingestion

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/fileslot/pkg/naming"
	"github.com/your-org/fileslot/pkg/storage"
)

const sniffBytes = 3072

// PipelineConfig bounds what a single request may ingest. Zero limits
// disable the corresponding check.
type PipelineConfig struct {
	MaxFileBytes int64
	MaxTagBytes  int64
	SniffContent bool
}

// Pipeline turns the field stream of one upload into a Record. Bytes are
// written to the sink first and hashed from the sink afterwards, so the
// digest covers what was persisted rather than what was received.
type Pipeline struct {
	sink   storage.Sink
	cfg    PipelineConfig
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewPipeline constructs a Pipeline writing into sink.
func NewPipeline(sink storage.Sink, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/your-org/fileslot/internal/ingestion"),
		now:    time.Now,
	}
}

// Ingest consumes every field of the stream. The first field carrying a
// file name is stored under id; later file fields are drained and
// discarded. All other fields become tags in arrival order. ErrNoFile is
// returned when no file field was seen.
func (p *Pipeline) Ingest(ctx context.Context, id uuid.UUID, fields FieldStream) (*Record, error) {
	var (
		rec  *Record
		tags = []Tag{}
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, storageErr("read request", err)
		}

		field, err := fields.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, storageErr("read field", err)
		}

		if filename, ok := field.FileName(); ok {
			if rec != nil {
				n, err := io.Copy(io.Discard, field)
				if err != nil {
					return nil, storageErr("drain extra file", err)
				}
				p.logger.Debug("ignored additional file field",
					zap.String("slot_id", id.String()),
					zap.String("field", field.FormName()),
					zap.Int64("bytes", n),
				)
				continue
			}
			rec, err = p.ingestFile(ctx, id, filename, field)
			if err != nil {
				return nil, err
			}
			continue
		}

		value, err := p.readTag(field)
		if err != nil {
			return nil, err
		}
		tags = append(tags, Tag{
			Name:  field.FormName(),
			Value: decodeLossy(value),
		})
	}

	if rec == nil {
		return nil, ErrNoFile
	}
	rec.Tags = tags
	return rec, nil
}

func (p *Pipeline) ingestFile(ctx context.Context, id uuid.UUID, filename string, src io.Reader) (*Record, error) {
	key := id.String()

	if err := p.write(ctx, key, src); err != nil {
		return nil, err
	}

	size, err := p.sink.Size(ctx, key)
	if err != nil {
		return nil, storageErr("measure sink", err)
	}

	digest, err := p.digest(ctx, key)
	if err != nil {
		return nil, err
	}
	indexedAt := p.now()

	name := naming.Sanitize(filename)
	mediaType := naming.MediaType(name)
	if mediaType == "" && p.cfg.SniffContent {
		mediaType = p.sniff(ctx, key)
	}

	p.logger.Info("file persisted",
		zap.String("slot_id", key),
		zap.String("name", name),
		zap.Int64("size", size),
		zap.String("hash", digest),
	)

	return &Record{
		ID:        id,
		Name:      name,
		Size:      uint64(size),
		MediaType: mediaType,
		Hash:      digest,
		IndexedAt: indexedAt,
	}, nil
}

// write copies src into a freshly truncated sink entry. The sink is closed
// before write returns so the read pass sees the complete content.
func (p *Pipeline) write(ctx context.Context, key string, src io.Reader) error {
	ctx, span := p.tracer.Start(ctx, "ingestion.write")
	defer span.End()

	w, err := p.sink.Create(ctx, key)
	if err != nil {
		return storageErr("open sink", err)
	}

	limited := src
	if p.cfg.MaxFileBytes > 0 {
		limited = io.LimitReader(src, p.cfg.MaxFileBytes+1)
	}

	n, err := io.Copy(w, limited)
	if err != nil {
		_ = storage.Abort(w, err)
		return storageErr("write sink", err)
	}
	if p.cfg.MaxFileBytes > 0 && n > p.cfg.MaxFileBytes {
		_ = storage.Abort(w, ErrTooLarge)
		return ErrTooLarge
	}
	if err := w.Close(); err != nil {
		return storageErr("close sink", err)
	}

	span.SetAttributes(attribute.Int64("bytes", n))
	return nil
}

type digestResult struct {
	sum string
	err error
}

// digest hashes the stored bytes of key with BLAKE3 on its own goroutine
// and waits for the result.
func (p *Pipeline) digest(ctx context.Context, key string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "ingestion.hash")
	defer span.End()

	done := make(chan digestResult, 1)
	go func() {
		r, err := p.sink.Open(ctx, key)
		if err != nil {
			done <- digestResult{err: storageErr("open sink for hashing", err)}
			return
		}
		defer r.Close()

		h := blake3.New()
		if _, err := io.Copy(h, r); err != nil {
			done <- digestResult{err: storageErr("read sink", err)}
			return
		}
		done <- digestResult{sum: hex.EncodeToString(h.Sum(nil))}
	}()

	select {
	case res := <-done:
		return res.sum, res.err
	case <-ctx.Done():
		return "", storageErr("hash sink", ctx.Err())
	}
}

// sniff detects a media type from the leading bytes of the stored content.
// Failures and generic binary results yield the empty string.
func (p *Pipeline) sniff(ctx context.Context, key string) string {
	r, err := p.sink.Open(ctx, key)
	if err != nil {
		p.logger.Warn("content sniff failed", zap.String("slot_id", key), zap.Error(err))
		return ""
	}
	defer r.Close()

	mt, err := mimetype.DetectReader(io.LimitReader(r, sniffBytes))
	if err != nil || mt.Is("application/octet-stream") {
		return ""
	}
	return naming.Essence(mt.String())
}

func (p *Pipeline) readTag(field Field) ([]byte, error) {
	src := io.Reader(field)
	if p.cfg.MaxTagBytes > 0 {
		src = io.LimitReader(field, p.cfg.MaxTagBytes+1)
	}
	value, err := io.ReadAll(src)
	if err != nil {
		return nil, storageErr("read tag", err)
	}
	if p.cfg.MaxTagBytes > 0 && int64(len(value)) > p.cfg.MaxTagBytes {
		return nil, ErrTooLarge
	}
	return value, nil
}
