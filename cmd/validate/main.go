package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/partlens/partlens/internal/common"
	"github.com/partlens/partlens/internal/export"
	"github.com/partlens/partlens/internal/imagestore"
	"github.com/partlens/partlens/internal/imaging"
	"github.com/partlens/partlens/internal/ocr"
	"github.com/partlens/partlens/internal/pipeline"
	"github.com/partlens/partlens/internal/quality"
	"github.com/partlens/partlens/internal/report"
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

	seedPath := flag.String("seed", "", "JSON file of test cases to load into the corpus before running")
	xlsxPath := flag.String("xlsx", "", "write the run report as an XLSX workbook to this path")
	htmlPath := flag.String("html", "", "write the report-history trend chart as HTML to this path")
	flag.Parse()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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

	if *seedPath != "" {
		n, err := seedCorpus(ctx, s, *seedPath)
		if err != nil {
			logger.Error("seed corpus", "file", *seedPath, "error", err)
			os.Exit(1)
		}
		logger.Info("corpus seeded", "file", *seedPath, "cases", n)
	}

	cases, err := s.ListTestCases(ctx)
	if err != nil {
		logger.Error("list test cases", "error", err)
		os.Exit(1)
	}
	if len(cases) == 0 {
		logger.Error("corpus is empty; seed it with -seed <file.json>")
		os.Exit(1)
	}

	orch, err := buildOrchestrator(cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}
	resolver, err := imagestore.NewFSResolver(cfg.Pipeline.ImageRoot, logger)
	if err != nil {
		logger.Error("create image resolver", "error", err)
		os.Exit(1)
	}
	validator, err := quality.NewValidator(orch, resolver, logger)
	if err != nil {
		logger.Error("create validator", "error", err)
		os.Exit(1)
	}

	qr, results, err := validator.RunAll(ctx, cases)
	if err != nil {
		logger.Error("validation run failed", "error", err)
		os.Exit(1)
	}
	if err := s.SaveRun(ctx, qr, results); err != nil {
		logger.Error("save validation run", "error", err)
		os.Exit(1)
	}

	if *xlsxPath != "" {
		b, err := export.WriteReportXLSX(qr, results, logger)
		if err != nil {
			logger.Error("export report", "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxPath, b, 0o644); err != nil {
			logger.Error("write xlsx", "path", *xlsxPath, "error", err)
			os.Exit(1)
		}
		logger.Info("report exported", "path", *xlsxPath, "bytes", len(b))
	}

	if *htmlPath != "" {
		history, err := s.ListReports(ctx, 0)
		if err != nil {
			logger.Error("list report history", "error", err)
			os.Exit(1)
		}
		f, err := os.Create(*htmlPath)
		if err != nil {
			logger.Error("create trend file", "path", *htmlPath, "error", err)
			os.Exit(1)
		}
		renderErr := report.RenderTrendHTML(f, history)
		if cerr := f.Close(); cerr != nil && renderErr == nil {
			renderErr = cerr
		}
		if renderErr != nil {
			logger.Error("render trend chart", "path", *htmlPath, "error", renderErr)
			os.Exit(1)
		}
		logger.Info("trend chart written", "path", *htmlPath, "runs", len(history))
	}

	logger.Info("validation run complete",
		"report_id", qr.ID,
		"total", qr.TotalTests,
		"passed", qr.PassedTests,
		"failed", qr.FailedTests,
		"pass_rate", qr.PassRate,
		"avg_score", qr.AverageScore,
		"avg_latency_ms", qr.AverageLatencyMs,
	)
	if qr.FailedTests > 0 {
		os.Exit(1)
	}
}

// seedCorpus loads test cases from a JSON array file and upserts each.
func seedCorpus(ctx context.Context, s *store.Store, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var cases []quality.TestCase
	if err := json.Unmarshal(b, &cases); err != nil {
		return 0, err
	}
	for _, tc := range cases {
		if err := s.UpsertTestCase(ctx, tc); err != nil {
			return 0, err
		}
	}
	return len(cases), nil
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
