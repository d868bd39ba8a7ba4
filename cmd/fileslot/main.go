package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/fileslot/internal/ingestion"
	"github.com/your-org/fileslot/internal/slots"
	"github.com/your-org/fileslot/pkg/config"
	"github.com/your-org/fileslot/pkg/index"
	"github.com/your-org/fileslot/pkg/kafka"
	"github.com/your-org/fileslot/pkg/logger"
	"github.com/your-org/fileslot/pkg/storage"
	"github.com/your-org/fileslot/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(logger.Options{
		Level:       cfg.App.LogLevel,
		Service:     cfg.App.Name,
		Environment: cfg.App.Environment,
		Version:     cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SampleRatio:    cfg.Tracing.SampleRatio,
		Attributes:     tracing.ParseAttributes(cfg.Tracing.ResourceAttr),
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	sink, err := storage.New(ctx, storage.Config{
		Provider:  cfg.Storage.Provider,
		Root:      cfg.Storage.Root,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init storage", zap.Error(err))
	}

	committer, err := index.New(ctx, index.Config{
		Provider: cfg.Index.Provider,
		Meilisearch: index.MeilisearchConfig{
			Host:   cfg.Meili.Host,
			APIKey: cfg.Meili.APIKey,
			Index:  cfg.Meili.Index,
		},
		Kafka: kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.IndexTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafka.AcksFromString(cfg.Kafka.RequiredAcks),
			MaxAttempts:  cfg.Kafka.Retries,
		},
	})
	if err != nil {
		logr.Fatal("init index", zap.Error(err))
	}

	registry := slots.NewRegistry()
	go registry.RunJanitor(ctx, cfg.Slots.AllocatedTTL, cfg.Slots.SweepInterval, logr.Named("slots"))

	service := ingestion.NewService(ingestion.Params{
		Registry:  registry,
		Sink:      sink,
		Committer: committer,
		Logger:    logr.Named("ingestion"),
		Pipeline: ingestion.PipelineConfig{
			MaxFileBytes: cfg.Upload.MaxSizeBytes,
			MaxTagBytes:  cfg.Upload.MaxTagBytes,
			SniffContent: cfg.Upload.SniffContent,
		},
	})

	handler := ingestion.NewHTTPHandler(service, logr)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := service.Close(shutdownCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("fileslot starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Provider),
		zap.String("index", cfg.Index.Provider),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}
