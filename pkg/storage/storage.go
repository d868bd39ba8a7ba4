package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/your-org/fileslot/pkg/storage/local"
	"github.com/your-org/fileslot/pkg/storage/objectstore"
)

// Config selects and configures the byte sink backend.
type Config struct {
	Provider  string
	Root      string
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Sink is a durable byte store addressed by key. Create truncates any
// previous content stored under the same key.
type Sink interface {
	Create(ctx context.Context, key string) (io.WriteCloser, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Size(ctx context.Context, key string) (int64, error)
	Close() error
}

// Aborter is implemented by writers that can discard a partially written
// object instead of committing it.
type Aborter interface {
	CloseWithError(err error) error
}

// Abort closes w after a failed write. Writers that support it discard
// what was written; others are closed normally.
func Abort(w io.WriteCloser, cause error) error {
	if a, ok := w.(Aborter); ok {
		return a.CloseWithError(cause)
	}
	return w.Close()
}

// New creates a sink based on the given configuration.
func New(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Provider {
	case "local", "":
		return local.New(afero.NewOsFs(), cfg.Root)
	case "minio", "s3":
		store, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}
