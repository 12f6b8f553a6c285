package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partlens/partlens/internal/imagestore"
	"github.com/partlens/partlens/internal/pipeline"
	"github.com/partlens/partlens/internal/store"
)

func TestScanTaskRoundTrip(t *testing.T) {
	task, err := NewScanTask(ScanPayload{ImageRef: "boxes/unit-42.jpg", TraceID: "trace-1"})
	require.NoError(t, err)
	assert.Equal(t, TypeScanImage, task.Type())

	got, err := ParseScanPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "boxes/unit-42.jpg", got.ImageRef)
	assert.Equal(t, "trace-1", got.TraceID)
}

func TestNewScanTaskFillsTraceID(t *testing.T) {
	task, err := NewScanTask(ScanPayload{ImageRef: "x.png"})
	require.NoError(t, err)

	got, err := ParseScanPayload(task)
	require.NoError(t, err)
	assert.NotEmpty(t, got.TraceID)
}

func TestNewScanTaskRequiresImageRef(t *testing.T) {
	_, err := NewScanTask(ScanPayload{})
	require.Error(t, err)
}

func TestParseScanPayloadRejectsGarbage(t *testing.T) {
	_, err := ParseScanPayload(asynq.NewTask(TypeScanImage, []byte("not json")))
	require.Error(t, err)

	_, err = ParseScanPayload(asynq.NewTask(TypeScanImage, []byte(`{"trace_id":"t"}`)))
	require.Error(t, err, "missing image_ref")
}

type stubResolver struct {
	path string
	err  error
}

func (r stubResolver) Resolve(context.Context, string) (string, error) {
	return r.path, r.err
}

type stubProcessor struct {
	res   pipeline.Result
	calls int
}

func (p *stubProcessor) ProcessImage(context.Context, string) pipeline.Result {
	p.calls++
	return p.res
}

type stubSaver struct {
	saved []store.ScanResult
	err   error
}

func (s *stubSaver) SaveScanResult(_ context.Context, rec store.ScanResult) error {
	s.saved = append(s.saved, rec)
	return s.err
}

func newTestConsumer(t *testing.T, resolver imagestore.Resolver, proc Processor, saver ResultSaver) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerConfig{RedisURL: "redis://localhost:6379/0"}, resolver, proc, saver, nil)
	require.NoError(t, err)
	return c
}

func TestHandleScanProcessesAndSaves(t *testing.T) {
	proc := &stubProcessor{res: pipeline.Result{
		Text:       "MODEL-X200",
		Confidence: 0.8,
		Method:     pipeline.MethodVisionPrimary,
		Success:    true,
	}}
	saver := &stubSaver{}
	c := newTestConsumer(t, stubResolver{path: "/images/unit.jpg"}, proc, saver)

	task, err := NewScanTask(ScanPayload{ImageRef: "unit.jpg", TraceID: "t1"})
	require.NoError(t, err)

	require.NoError(t, c.handleScan(context.Background(), task))
	assert.Equal(t, 1, proc.calls)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, "unit.jpg", saver.saved[0].ImageRef)
	assert.Equal(t, "MODEL-X200", saver.saved[0].Result.Text)
}

func TestHandleScanSkipsRetryForMissingImage(t *testing.T) {
	notFound := fmt.Errorf("unit.jpg: %w", imagestore.ErrImageNotFound)
	c := newTestConsumer(t, stubResolver{err: notFound}, &stubProcessor{}, &stubSaver{})

	task, err := NewScanTask(ScanPayload{ImageRef: "unit.jpg"})
	require.NoError(t, err)

	err = c.handleScan(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleScanRetriesTransientResolveErrors(t *testing.T) {
	c := newTestConsumer(t, stubResolver{err: errors.New("i/o timeout")}, &stubProcessor{}, &stubSaver{})

	task, err := NewScanTask(ScanPayload{ImageRef: "unit.jpg"})
	require.NoError(t, err)

	err = c.handleScan(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleScanSkipsRetryForBadPayload(t *testing.T) {
	c := newTestConsumer(t, stubResolver{path: "/x"}, &stubProcessor{}, &stubSaver{})

	err := c.handleScan(context.Background(), asynq.NewTask(TypeScanImage, []byte("{}")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
