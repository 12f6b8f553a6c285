package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/partlens/partlens/internal/imagestore"
	"github.com/partlens/partlens/internal/pipeline"
	"github.com/partlens/partlens/internal/store"
)

// Processor is the pipeline surface the consumer drives.
type Processor interface {
	ProcessImage(ctx context.Context, imagePath string) pipeline.Result
}

// ResultSaver records finished scans.
type ResultSaver interface {
	SaveScanResult(ctx context.Context, rec store.ScanResult) error
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	RedisURL    string
	Concurrency int
}

// Consumer pulls scan tasks off the queue, runs them through the pipeline,
// and records the outcome.
type Consumer struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	resolver imagestore.Resolver
	proc     Processor
	saver    ResultSaver
	redisURL string
	log      *slog.Logger
}

func NewConsumer(cfg ConsumerConfig, resolver imagestore.Resolver, proc Processor, saver ResultSaver, logger *slog.Logger) (*Consumer, error) {
	if resolver == nil {
		return nil, fmt.Errorf("queue: image resolver is required")
	}
	if proc == nil {
		return nil, fmt.Errorf("queue: processor is required")
	}
	if saver == nil {
		return nil, fmt.Errorf("queue: result saver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			delay := time.Duration(5*(1<<uint(n))) * time.Second
			if delay > time.Minute {
				delay = time.Minute
			}
			return delay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("queue.task.error", "type", task.Type(), "error", err)
		}),
	})

	c := &Consumer{
		server:   server,
		mux:      asynq.NewServeMux(),
		resolver: resolver,
		proc:     proc,
		saver:    saver,
		redisURL: cfg.RedisURL,
		log:      logger,
	}
	c.mux.HandleFunc(TypeScanImage, c.handleScan)
	return c, nil
}

// Ping verifies the Redis connection before the consumer starts taking work.
func (c *Consumer) Ping(ctx context.Context) error {
	opt, err := redis.ParseURL(c.redisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Run blocks serving tasks until Shutdown is called.
func (c *Consumer) Run() error {
	c.log.Info("queue.consumer.start")
	return c.server.Run(c.mux)
}

// Shutdown drains in-flight tasks and stops the server.
func (c *Consumer) Shutdown() {
	c.log.Info("queue.consumer.stop")
	c.server.Shutdown()
}

func (c *Consumer) handleScan(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseScanPayload(t)
	if err != nil {
		// A malformed payload never becomes valid on retry.
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := c.log.With("trace_id", payload.TraceID, "image_ref", payload.ImageRef)
	start := time.Now()
	log.Info("queue.scan.start")

	path, err := c.resolver.Resolve(ctx, payload.ImageRef)
	if err != nil {
		if errors.Is(err, imagestore.ErrImageNotFound) {
			log.Warn("queue.scan.image_missing", "error", err)
			return fmt.Errorf("image %q not found: %w", payload.ImageRef, asynq.SkipRetry)
		}
		return fmt.Errorf("resolve image %q: %w", payload.ImageRef, err)
	}

	res := c.proc.ProcessImage(ctx, path)
	rec := store.NewScanResult(payload.ImageRef, res)
	if err := c.saver.SaveScanResult(ctx, rec); err != nil {
		return fmt.Errorf("save scan result: %w", err)
	}

	log.Info("queue.scan.done",
		"scan_id", rec.ID,
		"status", string(rec.Status),
		"method", res.Method,
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
