package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/partlens/partlens/internal/pipeline"
)

// ResultSink accepts merged results for persistence outside the local store,
// keyed by image reference.
type ResultSink interface {
	SaveResult(ctx context.Context, imageRef string, res pipeline.Result) error
}

// PostgresConfig configures the shared result sink connection.
type PostgresConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// PostgresSink writes scan results into a shared Postgres database. The
// schema is owned by the consuming application; the sink only inserts.
type PostgresSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres creates the pgx pool and verifies connectivity.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to result sink", "dsn", cfg.DSN)

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse sink dsn", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "partlens"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to result sink", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to result sink")
	return &PostgresSink{pool: pool, logger: logger}, nil
}

func (s *PostgresSink) Close() {
	s.logger.Info("closing result sink connections")
	s.pool.Close()
}

// HealthCheck pings the pool to catch DSN issues early.
func (s *PostgresSink) HealthCheck(ctx context.Context, timeout time.Duration) error {
	s.logger.Debug("pinging result sink")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.pool.Ping(ctx)
}

// SaveResult appends one merged result for an image.
func (s *PostgresSink) SaveResult(ctx context.Context, imageRef string, res pipeline.Result) error {
	objects, err := json.Marshal(res.Objects)
	if err != nil {
		return fmt.Errorf("encoding objects: %w", err)
	}
	details, err := json.Marshal(res.Details)
	if err != nil {
		return fmt.Errorf("encoding details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO scan_results
			(image_ref, text, description, objects, confidence, method,
			 strategy, details, processing_ms, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		imageRef, res.Text, res.Description, objects, res.Confidence,
		res.Method, res.Strategy, details, res.ProcessingTimeMs,
		res.Success, res.Error, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting result for %q: %w", imageRef, err)
	}

	s.logger.Info("sink.result.saved",
		"image_ref", imageRef,
		"method", res.Method,
		"confidence", res.Confidence,
	)
	return nil
}
