// Package imaging prepares product photos for text extraction. It applies
// named preprocessing steps ahead of OCR and compresses images for
// vision-model payloads.
package imaging

import (
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Step names a single preprocessing operation.
type Step string

const (
	StepEnhanceContrast Step = "enhance_contrast"
	StepDenoise         Step = "denoise"
	StepSharpen         Step = "sharpen"
	StepUpscale         Step = "upscale"
	StepDeskew          Step = "deskew"
)

const (
	// denoiseRadius is the median filter window radius.
	denoiseRadius = 3
	// upscaleFactor is the default enlargement for small print.
	upscaleFactor = 2.0
	// maxUpscaleDim caps the longest edge after upscaling.
	maxUpscaleDim = 4096
)

var knownSteps = map[Step]struct{}{
	StepEnhanceContrast: {},
	StepDenoise:         {},
	StepSharpen:         {},
	StepUpscale:         {},
	StepDeskew:          {},
}

// ParseSteps maps step names to Steps, returning unknown names separately.
func ParseSteps(names []string) ([]Step, []string) {
	var steps []Step
	var unknown []string
	for _, name := range names {
		s := Step(name)
		if _, ok := knownSteps[s]; ok {
			steps = append(steps, s)
		} else {
			unknown = append(unknown, name)
		}
	}
	return steps, unknown
}

// Derived describes a preprocessed artifact written next to the pipeline run.
// The artifact belongs to the caller; invoke the returned cleanup to remove it.
type Derived struct {
	Path     string
	Applied  []Step
	Skipped  []Step
	Warnings []string
}

// Config holds preprocessor configuration.
type Config struct {
	// ArtifactCacheDir is where derived images are written. Empty means the
	// system temp directory.
	ArtifactCacheDir string
	Logger           *slog.Logger
}

// Preprocessor applies named steps to an image and writes the result as a
// temporary PNG artifact.
type Preprocessor struct {
	cacheDir string
	logger   *slog.Logger
}

func NewPreprocessor(cfg Config) *Preprocessor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{
		cacheDir: cfg.ArtifactCacheDir,
		logger:   logger,
	}
}

// Preprocess applies steps in order to the image at srcPath and returns the
// derived artifact. Unknown steps are skipped with a warning rather than
// failing the run. A deskew that finds no reliable angle is likewise skipped
// and surfaced in Derived.Skipped.
//
// Returns (derived, cleanup, err). Call cleanup() to remove temp files; it is
// non-nil whenever temp state exists, including on error.
func (p *Preprocessor) Preprocess(ctx context.Context, srcPath string, steps []Step) (*Derived, func(), error) {
	start := time.Now()

	img, err := loadGray(srcPath)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", filepath.Base(srcPath), err)
	}

	d := &Derived{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		switch step {
		case StepEnhanceContrast:
			img = equalizeHistogram(img)
			d.Applied = append(d.Applied, step)
		case StepDenoise:
			img = medianFilter(img, denoiseRadius)
			d.Applied = append(d.Applied, step)
		case StepSharpen:
			img = unsharpMask(img)
			d.Applied = append(d.Applied, step)
		case StepUpscale:
			scaled, capped := upscale(img, upscaleFactor, maxUpscaleDim)
			if capped {
				d.Warnings = append(d.Warnings, "upscale: longest edge capped at size limit")
			}
			if scaled == img {
				d.Skipped = append(d.Skipped, step)
				d.Warnings = append(d.Warnings, "upscale: image already at size limit")
				continue
			}
			img = scaled
			d.Applied = append(d.Applied, step)
		case StepDeskew:
			angle, ok := estimateSkew(img)
			if !ok {
				d.Skipped = append(d.Skipped, step)
				d.Warnings = append(d.Warnings, "deskew: no reliable skew angle, image left as-is")
				p.logger.Warn("preprocess.deskew.skipped", "src", filepath.Base(srcPath))
				continue
			}
			img = rotate(img, -angle)
			d.Applied = append(d.Applied, step)
		default:
			d.Skipped = append(d.Skipped, step)
			d.Warnings = append(d.Warnings, fmt.Sprintf("unknown preprocessing step %q", string(step)))
			p.logger.Warn("preprocess.step.unknown", "step", string(step))
		}
	}

	if p.cacheDir != "" {
		if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create artifact cache dir: %w", err)
		}
	}
	tmpDir, err := os.MkdirTemp(p.cacheDir, "pl-pre-*")
	if err != nil {
		return nil, nil, fmt.Errorf("create artifact dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	out := filepath.Join(tmpDir, "derived.png")
	f, err := os.Create(out)
	if err != nil {
		return nil, cleanup, fmt.Errorf("create artifact: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return nil, cleanup, fmt.Errorf("encode artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, cleanup, fmt.Errorf("write artifact: %w", err)
	}

	d.Path = out
	p.logger.Debug("preprocess.done",
		"src", filepath.Base(srcPath),
		"applied", len(d.Applied),
		"skipped", len(d.Skipped),
		"elapsed_ms", time.Since(start).Milliseconds())
	return d, cleanup, nil
}
