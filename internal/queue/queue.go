// Package queue moves scan jobs through a Redis-backed task queue so image
// processing can run detached from the submitter.
package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeScanImage is the task type for one queued image scan.
const TypeScanImage = "scan:image"

// ScanPayload is the wire form of one queued scan job.
type ScanPayload struct {
	ImageRef string `json:"image_ref"`
	TraceID  string `json:"trace_id"`
}

// NewScanTask encodes a payload into an asynq task. An empty trace id gets a
// fresh one so worker logs can always be correlated.
func NewScanTask(p ScanPayload) (*asynq.Task, error) {
	if p.ImageRef == "" {
		return nil, fmt.Errorf("image_ref is required")
	}
	if p.TraceID == "" {
		p.TraceID = uuid.New().String()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal scan payload: %w", err)
	}
	return asynq.NewTask(TypeScanImage, b), nil
}

// ParseScanPayload decodes a task created by NewScanTask.
func ParseScanPayload(t *asynq.Task) (ScanPayload, error) {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ScanPayload{}, fmt.Errorf("unmarshal scan payload: %w", err)
	}
	if p.ImageRef == "" {
		return ScanPayload{}, fmt.Errorf("scan payload has no image_ref")
	}
	return p, nil
}

// Enqueuer submits scan jobs.
type Enqueuer struct {
	client *asynq.Client
	log    *slog.Logger
}

func NewEnqueuer(redisURL string, logger *slog.Logger) (*Enqueuer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt), log: logger}, nil
}

// EnqueueScan queues one image for processing and returns its trace id.
func (e *Enqueuer) EnqueueScan(imageRef string) (string, error) {
	payload := ScanPayload{ImageRef: imageRef, TraceID: uuid.New().String()}
	task, err := NewScanTask(payload)
	if err != nil {
		return "", err
	}
	info, err := e.client.Enqueue(task)
	if err != nil {
		return "", fmt.Errorf("enqueue scan for %q: %w", imageRef, err)
	}
	e.log.Info("queue.scan.enqueued",
		"image_ref", imageRef,
		"trace_id", payload.TraceID,
		"task_id", info.ID,
		"queue", info.Queue,
	)
	return payload.TraceID, nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
