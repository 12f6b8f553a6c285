package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/imagestore"
	"github.com/partlens/partlens/internal/imaging"
	"github.com/partlens/partlens/internal/ocr"
	"github.com/partlens/partlens/internal/pipeline"
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

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "scan-batch <image-dir>")
		os.Exit(2)
	}
	root := os.Args[1]

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	paths, err := imagestore.ListImages(root, true)
	if err != nil {
		logger.Error("list images", "root", root, "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		logger.Warn("no images found", "root", root)
		return
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

	workers := cfg.Queue.Concurrency
	if workers <= 0 {
		workers = 4
	}
	logger.Info("batch scan starting", "root", root, "images", len(paths), "workers", workers)

	start := time.Now()
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)
	sem := make(chan struct{}, workers)

	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(imagePath string) {
			defer wg.Done()
			defer func() { <-sem }()

			res := orch.ProcessImage(ctx, imagePath)
			rec := store.NewScanResult(imagePath, res)
			if err := s.SaveScanResult(ctx, rec); err != nil {
				logger.Error("save scan result", "image", imagePath, "error", err)
				res.Success = false
			}

			mu.Lock()
			if res.Success {
				succeeded++
			} else {
				failed++
			}
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	logger.Info("batch scan done",
		"images", len(paths),
		"succeeded", succeeded,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if succeeded == 0 {
		os.Exit(1)
	}
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
