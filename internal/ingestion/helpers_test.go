package ingestion

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/your-org/fileslot/internal/slots"
	"github.com/your-org/fileslot/pkg/index"
	"github.com/your-org/fileslot/pkg/storage"
	"github.com/your-org/fileslot/pkg/storage/local"
)

type testField struct {
	io.Reader
	form   string
	file   string
	isFile bool
}

func (f *testField) FormName() string         { return f.form }
func (f *testField) FileName() (string, bool) { return f.file, f.isFile }

func fileField(form, file, body string) *testField {
	return &testField{Reader: bytes.NewReader([]byte(body)), form: form, file: file, isFile: true}
}

func tagField(name, value string) *testField {
	return &testField{Reader: bytes.NewReader([]byte(value)), form: name}
}

// remaining reports unread bytes of a field built by fileField or tagField.
func remaining(f *testField) int {
	return f.Reader.(*bytes.Reader).Len()
}

type testStream struct {
	fields []Field
	err    error
}

func streamOf(fields ...Field) *testStream {
	return &testStream{fields: fields}
}

func (s *testStream) Next() (Field, error) {
	if len(s.fields) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.fields[0]
	s.fields = s.fields[1:]
	return f, nil
}

func newMemSink(t *testing.T) (*local.Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	sink, err := local.New(fs, "files")
	require.NoError(t, err)
	return sink, fs
}

func readSink(t *testing.T, sink storage.Sink, key string) []byte {
	t.Helper()
	r, err := sink.Open(context.Background(), key)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}

func blake3Hex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// recordingSink wraps a sink and logs the order of sink operations.
type recordingSink struct {
	storage.Sink
	mu  sync.Mutex
	ops []string
}

func (r *recordingSink) record(op string) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

func (r *recordingSink) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	r.record("create")
	w, err := r.Sink.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	return &recordingWriter{WriteCloser: w, sink: r}, nil
}

func (r *recordingSink) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r.record("open")
	return r.Sink.Open(ctx, key)
}

func (r *recordingSink) Size(ctx context.Context, key string) (int64, error) {
	r.record("size")
	return r.Sink.Size(ctx, key)
}

func (r *recordingSink) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type recordingWriter struct {
	io.WriteCloser
	sink *recordingSink
}

func (w *recordingWriter) Close() error {
	w.sink.record("close")
	return w.WriteCloser.Close()
}

func (w *recordingWriter) CloseWithError(err error) error {
	w.sink.record("abort")
	return storage.Abort(w.WriteCloser, err)
}

// suffixSink persists every write with an extra trailing byte, so stored
// content differs from the received stream.
type suffixSink struct {
	storage.Sink
}

func (s *suffixSink) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := s.Sink.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	return &suffixWriter{WriteCloser: w}, nil
}

type suffixWriter struct {
	io.WriteCloser
}

func (w *suffixWriter) Close() error {
	if _, err := w.WriteCloser.Write([]byte{'!'}); err != nil {
		return err
	}
	return w.WriteCloser.Close()
}

// failingSink fails the named operation.
type failingSink struct {
	storage.Sink
	failOn string
}

var errSinkBroken = errors.New("disk on fire")

func (s *failingSink) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	if s.failOn == "create" {
		return nil, errSinkBroken
	}
	return s.Sink.Create(ctx, key)
}

func (s *failingSink) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.failOn == "open" {
		return nil, errSinkBroken
	}
	return s.Sink.Open(ctx, key)
}

type fixture struct {
	registry  *slots.Registry
	sink      storage.Sink
	fs        afero.Fs
	committer *index.Memory
	service   *Service
}

func newFixture(t *testing.T, cfg PipelineConfig) *fixture {
	t.Helper()
	sink, fs := newMemSink(t)
	return newFixtureWithSink(t, sink, fs, cfg)
}

func newFixtureWithSink(t *testing.T, sink storage.Sink, fs afero.Fs, cfg PipelineConfig) *fixture {
	t.Helper()
	f := &fixture{
		registry:  slots.NewRegistry(),
		sink:      sink,
		fs:        fs,
		committer: index.NewMemory(),
	}
	f.service = NewService(Params{
		Registry:  f.registry,
		Sink:      sink,
		Committer: f.committer,
		Logger:    zap.NewNop(),
		Pipeline:  cfg,
	})
	return f
}
