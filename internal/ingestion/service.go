package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/your-org/fileslot/internal/slots"
	"github.com/your-org/fileslot/pkg/index"
	"github.com/your-org/fileslot/pkg/storage"
)

// Service coordinates slot admission, ingestion and index commits.
type Service struct {
	registry  *slots.Registry
	pipeline  *Pipeline
	sink      storage.Sink
	committer index.Committer
	logger    *zap.Logger
	tracer    trace.Tracer
}

// Params holds the dependencies of a Service.
type Params struct {
	Registry  *slots.Registry
	Sink      storage.Sink
	Committer index.Committer
	Logger    *zap.Logger
	Pipeline  PipelineConfig
}

// NewService constructs an ingestion Service.
func NewService(p Params) *Service {
	return &Service{
		registry:  p.Registry,
		pipeline:  NewPipeline(p.Sink, p.Pipeline, p.Logger),
		sink:      p.Sink,
		committer: p.Committer,
		logger:    p.Logger,
		tracer:    otel.Tracer("github.com/your-org/fileslot/internal/ingestion"),
	}
}

// Provision allocates a new upload slot.
func (s *Service) Provision() uuid.UUID {
	id := s.registry.Allocate()
	s.logger.Debug("slot allocated", zap.String("slot_id", id.String()))
	return id
}

// Upload admits one upload into the slot named by rawID, ingests fields and
// commits the resulting record. Once admitted, the slot is released on
// every return path, after the commit attempt.
func (s *Service) Upload(ctx context.Context, rawID string, fields FieldStream) (*Record, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrInvalidSlot
	}

	if !s.registry.MarkUploading(id) {
		return nil, ErrSlotUnavailable
	}
	defer s.registry.Release(id)

	ctx, span := s.tracer.Start(ctx, "ingestion.upload",
		trace.WithAttributes(attribute.String("slot.id", id.String())))
	defer span.End()

	logger := s.logger.With(zap.String("slot_id", id.String()))

	rec, err := s.pipeline.Ingest(ctx, id, fields)
	if err != nil {
		if errors.Is(err, ErrNoFile) {
			logger.Info("upload rejected", zap.Error(err))
		} else {
			logger.Error("ingestion failed", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "ingestion failed")
		}
		return nil, err
	}

	if err := s.commit(ctx, rec); err != nil {
		logger.Error("index commit failed",
			zap.Bool("orphaned", true),
			zap.String("hash", rec.Hash),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "index commit failed")
		return nil, &CommitError{ID: id, Record: rec, Err: err}
	}

	logger.Info("upload committed",
		zap.Uint64("size", rec.Size),
		zap.String("hash", rec.Hash),
		zap.Int("tags", len(rec.Tags)),
	)
	return rec, nil
}

func (s *Service) commit(ctx context.Context, rec *Record) error {
	ctx, span := s.tracer.Start(ctx, "ingestion.commit")
	defer span.End()

	if err := s.committer.Commit(ctx, rec.Document()); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Close releases underlying resources.
func (s *Service) Close(ctx context.Context) error {
	if err := s.committer.Close(ctx); err != nil {
		return err
	}
	return s.sink.Close()
}
