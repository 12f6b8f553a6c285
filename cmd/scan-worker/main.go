package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
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

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := imagestore.NewFSResolver(cfg.Pipeline.ImageRoot, logger)
	if err != nil {
		logger.Error("create image resolver", "error", err)
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

	consumer, err := queue.NewConsumer(queue.ConsumerConfig{
		RedisURL:    cfg.Queue.RedisURL,
		Concurrency: cfg.Queue.Concurrency,
	}, resolver, orch, s, logger)
	if err != nil {
		logger.Error("create consumer", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := consumer.Ping(pingCtx); err != nil {
		cancel()
		logger.Error("redis unreachable", "url", cfg.Queue.RedisURL, "error", err)
		os.Exit(1)
	}
	cancel()

	logger.Info("scan worker starting",
		"redis", cfg.Queue.RedisURL,
		"concurrency", cfg.Queue.Concurrency,
		"image_root", cfg.Pipeline.ImageRoot,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- consumer.Run() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		consumer.Shutdown()
		<-errCh
	case err := <-errCh:
		if err != nil {
			logger.Error("consumer stopped", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("scan worker stopped")
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
