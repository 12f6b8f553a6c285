package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/imagestore"
	"github.com/partlens/partlens/internal/imaging"
	"github.com/partlens/partlens/internal/ocr"
	"github.com/partlens/partlens/internal/pipeline"
	"github.com/partlens/partlens/internal/queue"
	"github.com/partlens/partlens/internal/store"
	"github.com/partlens/partlens/internal/vision"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file, using system environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	async := flag.Bool("async", false, "enqueue the scan instead of processing inline")
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "scan [-async] <image-ref>")
		os.Exit(2)
	}
	imageRef := flag.Arg(0)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *async {
		enq, err := queue.NewEnqueuer(cfg.Queue.RedisURL, logger)
		if err != nil {
			logger.Error("create enqueuer", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := enq.Close(); cerr != nil {
				logger.Error("close enqueuer", "error", cerr)
			}
		}()
		traceID, err := enq.EnqueueScan(imageRef)
		if err != nil {
			logger.Error("enqueue scan", "image_ref", imageRef, "error", err)
			os.Exit(1)
		}
		logger.Info("scan queued", "image_ref", imageRef, "trace_id", traceID)
		return
	}

	resolver, err := imagestore.NewFSResolver(cfg.Pipeline.ImageRoot, logger)
	if err != nil {
		logger.Error("create image resolver", "error", err)
		os.Exit(1)
	}
	path, err := resolver.Resolve(ctx, imageRef)
	if err != nil {
		logger.Error("resolve image", "image_ref", imageRef, "error", err)
		os.Exit(1)
	}

	orch, err := buildOrchestrator(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	s, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		logger.Error("open store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Error("close store", "error", cerr)
		}
	}()

	start := time.Now()
	res := orch.ProcessImage(ctx, path)

	rec := store.NewScanResult(imageRef, res)
	if err := s.SaveScanResult(ctx, rec); err != nil {
		logger.Error("save scan result", "error", err)
		os.Exit(1)
	}

	if cfg.Database.DSN != "" {
		sink, err := store.OpenPostgres(ctx, store.PostgresConfig{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("open result sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		if err := sink.SaveResult(ctx, imageRef, res); err != nil {
			logger.Error("save result to sink", "error", err)
			os.Exit(1)
		}
	}

	if !res.Success {
		logger.Error("scan failed",
			"scan_id", rec.ID,
			"error", res.Error,
			"duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	logger.Info("scan OK",
		"scan_id", rec.ID,
		"status", string(rec.Status),
		"method", res.Method,
		"strategy", res.Strategy,
		"confidence", res.Confidence,
		"objects", res.Objects,
		"text_preview", preview(res.Text, 120),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func buildOrchestrator(cfg *common.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	strategy, err := pipeline.ParseMergeStrategy(cfg.Pipeline.MergeStrategy)
	if err != nil {
		return nil, err
	}

	pre := imaging.NewPreprocessor(imaging.Config{
		ArtifactCacheDir: cfg.OCR.ArtifactCacheDir,
		Logger:           logger,
	})
	engine := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Binary:      cfg.OCR.Tesseract,
		TessdataDir: cfg.OCR.TessdataDir,
	})
	ocrx := ocr.NewExtractor(engine, pre, ocr.Config{Language: cfg.OCR.Language}, logger)

	client := vision.NewClient(vision.Config{
		APIKey:      cfg.Vision.APIKey,
		BaseURL:     cfg.Vision.BaseURL,
		Model:       cfg.Vision.Model,
		Temperature: cfg.Vision.Temperature,
		Timeout:     cfg.Vision.Timeout,
	}, logger)
	extractor := vision.NewExtractor(client, vision.ExtractorConfig{
		MaxDimension: cfg.Vision.MaxDimension,
		JPEGQuality:  cfg.Vision.JPEGQuality,
	}, logger)

	return pipeline.New(ocrx, extractor, pipeline.Config{
		EnableOCR:           cfg.Pipeline.EnableOCR,
		EnableVision:        cfg.Pipeline.EnableVision,
		ConfidenceThreshold: cfg.Pipeline.ConfidenceThreshold,
		Strategy:            strategy,
		OCRTimeout:          cfg.Pipeline.OCRTimeout,
		VisionTimeout:       cfg.Pipeline.VisionTimeout,
	}, logger)
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
