package ingestion

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPipeline(t *testing.T, cfg PipelineConfig) (*Pipeline, *recordingSink) {
	t.Helper()
	mem, _ := newMemSink(t)
	sink := &recordingSink{Sink: mem}
	return NewPipeline(sink, cfg, zap.NewNop()), sink
}

func TestIngestBuildsRecord(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }
	id := uuid.New()

	rec, err := p.Ingest(context.Background(), id, streamOf(
		tagField("env", "prod"),
		fileField("file", "report.txt", "abc"),
		tagField("owner", "ops"),
	))
	require.NoError(t, err)

	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "report.txt", rec.Name)
	assert.Equal(t, uint64(3), rec.Size)
	assert.Equal(t, "text/plain", rec.MediaType)
	assert.Equal(t, blake3Hex([]byte("abc")), rec.Hash)
	assert.Len(t, rec.Hash, 64)
	assert.Equal(t, at, rec.IndexedAt)
	assert.Equal(t, []Tag{{"env", "prod"}, {"owner", "ops"}}, rec.Tags)

	assert.Equal(t, []byte("abc"), readSink(t, sink, id.String()))
}

func TestIngestWritesFullyBeforeHashing(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})

	_, err := p.Ingest(context.Background(), uuid.New(), streamOf(fileField("file", "a.bin", "payload")))
	require.NoError(t, err)

	assert.Equal(t, []string{"create", "close", "size", "open"}, sink.Ops())
}

func TestIngestHashesPersistedBytes(t *testing.T) {
	mem, _ := newMemSink(t)
	sink := &suffixSink{Sink: mem}
	p := NewPipeline(sink, PipelineConfig{}, zap.NewNop())
	id := uuid.New()

	rec, err := p.Ingest(context.Background(), id, streamOf(fileField("file", "a.bin", "abc")))
	require.NoError(t, err)

	stored := readSink(t, sink, id.String())
	assert.Equal(t, []byte("abc!"), stored)
	assert.Equal(t, uint64(4), rec.Size)
	assert.Equal(t, blake3Hex(stored), rec.Hash)
	assert.NotEqual(t, blake3Hex([]byte("abc")), rec.Hash)
}

func TestIngestDigestIsReproducible(t *testing.T) {
	payloads := []string{"", "x", "abc", strings.Repeat("0123456789", 100000)}
	for _, body := range payloads {
		p, sink := newTestPipeline(t, PipelineConfig{})
		id := uuid.New()

		rec, err := p.Ingest(context.Background(), id, streamOf(fileField("file", "blob", body)))
		require.NoError(t, err)

		again, err := p.digest(context.Background(), id.String())
		require.NoError(t, err)
		assert.Equal(t, rec.Hash, again)
		assert.Equal(t, blake3Hex(readSink(t, sink, id.String())), rec.Hash)
		assert.Equal(t, uint64(len(body)), rec.Size)
	}
}

func TestIngestFirstFileWinsAndDrainsOthers(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})
	id := uuid.New()
	second := fileField("other", "second.txt", "zzzzzz")

	rec, err := p.Ingest(context.Background(), id, streamOf(
		fileField("file", "first.txt", "first"),
		second,
		tagField("k", "v"),
	))
	require.NoError(t, err)

	assert.Equal(t, "first.txt", rec.Name)
	assert.Equal(t, []byte("first"), readSink(t, sink, id.String()))
	assert.Zero(t, remaining(second))
	assert.Equal(t, []Tag{{"k", "v"}}, rec.Tags)
}

func TestIngestPreservesDuplicateTagsInOrder(t *testing.T) {
	p, _ := newTestPipeline(t, PipelineConfig{})

	rec, err := p.Ingest(context.Background(), uuid.New(), streamOf(
		tagField("category", "a"),
		fileField("file", "f", "data"),
		tagField("category", "b"),
		tagField("category", "a"),
	))
	require.NoError(t, err)

	assert.Equal(t, []Tag{{"category", "a"}, {"category", "b"}, {"category", "a"}}, rec.Tags)
}

func TestIngestDecodesTagsLossily(t *testing.T) {
	p, _ := newTestPipeline(t, PipelineConfig{})

	rec, err := p.Ingest(context.Background(), uuid.New(), streamOf(
		fileField("file", "f", "data"),
		tagField("raw", string([]byte{0xff, 0xfe, 'o', 'k'})),
	))
	require.NoError(t, err)

	assert.Equal(t, "\uFFFD\uFFFDok", rec.Tags[0].Value)
}

func TestIngestWithoutFile(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})

	rec, err := p.Ingest(context.Background(), uuid.New(), streamOf(tagField("env", "prod")))
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Empty(t, sink.Ops())
}

func TestIngestSanitizesNameAndSkipsUnknownType(t *testing.T) {
	p, _ := newTestPipeline(t, PipelineConfig{})

	rec, err := p.Ingest(context.Background(), uuid.New(), streamOf(fileField("file", `dir\evil:name`, "x")))
	require.NoError(t, err)

	assert.Equal(t, "direvilname", rec.Name)
	assert.Empty(t, rec.MediaType)
	assert.Nil(t, rec.Document().Mime)
}

func TestIngestAcceptsEmptyFileName(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})
	id := uuid.New()

	rec, err := p.Ingest(context.Background(), id, streamOf(fileField("file", "", "")))
	require.NoError(t, err)

	assert.Empty(t, rec.Name)
	assert.Zero(t, rec.Size)
	assert.Equal(t, blake3Hex(nil), rec.Hash)
	assert.Empty(t, readSink(t, sink, id.String()))
}

func TestIngestSniffsContentWhenEnabled(t *testing.T) {
	p, _ := newTestPipeline(t, PipelineConfig{SniffContent: true})
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)

	rec, err := p.Ingest(context.Background(), uuid.New(), streamOf(fileField("file", "image", png)))
	require.NoError(t, err)

	assert.Equal(t, "image/png", rec.MediaType)
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{MaxFileBytes: 4})

	_, err := p.Ingest(context.Background(), uuid.New(), streamOf(fileField("file", "f", "12345")))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, []string{"create", "abort"}, sink.Ops())

	rec, err := p.Ingest(context.Background(), uuid.New(), streamOf(fileField("file", "f", "1234")))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rec.Size)
}

func TestIngestRejectsOversizedTag(t *testing.T) {
	p, _ := newTestPipeline(t, PipelineConfig{MaxTagBytes: 2})

	_, err := p.Ingest(context.Background(), uuid.New(), streamOf(tagField("k", "abc")))
	assert.ErrorIs(t, err, ErrTooLarge)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

func TestIngestStreamFailures(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})
	var storageErr *StorageError

	stream := streamOf(tagField("k", "v"))
	stream.err = errors.New("connection reset")
	_, err := p.Ingest(context.Background(), uuid.New(), stream)
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read field", storageErr.Op)

	_, err = p.Ingest(context.Background(), uuid.New(), streamOf(&testField{Reader: brokenReader{}, form: "file", file: "f", isFile: true}))
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "write sink", storageErr.Op)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, []string{"create", "abort"}, sink.Ops())
}

func TestIngestSinkFailures(t *testing.T) {
	for _, op := range []string{"create", "open"} {
		mem, _ := newMemSink(t)
		p := NewPipeline(&failingSink{Sink: mem, failOn: op}, PipelineConfig{}, zap.NewNop())

		_, err := p.Ingest(context.Background(), uuid.New(), streamOf(fileField("file", "f", "data")))

		var storageErr *StorageError
		require.ErrorAs(t, err, &storageErr, "op %s", op)
		assert.ErrorIs(t, err, errSinkBroken)
	}
}

func TestIngestStopsOnCancelledContext(t *testing.T) {
	p, sink := newTestPipeline(t, PipelineConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Ingest(ctx, uuid.New(), streamOf(fileField("file", "f", "data")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.Ops())
}
