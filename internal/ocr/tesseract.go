package ocr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// TesseractConfig configures the exec-based tesseract engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
}

// TesseractEngine invokes the tesseract binary through a Runner.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
}

func NewTesseractEngine(cfg TesseractConfig) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &TesseractEngine{cfg: cfg, runner: execRunner{}}
}

// Available reports whether the tesseract binary can be found.
func (e *TesseractEngine) Available(_ context.Context) error {
	if _, err := e.runner.LookPath(e.cfg.Binary); err != nil {
		return fmt.Errorf("%w: %q not found in PATH", ErrEngineUnavailable, e.cfg.Binary)
	}
	return nil
}

// Recognize runs tesseract over the image and returns its raw stdout text.
// A missing binary is reported as ErrEngineUnavailable; an empty result is
// reported as ErrNoText.
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string, params Params) (string, error) {
	args := []string{imagePath, "stdout"}
	if params.Language != "" {
		args = append(args, "-l", params.Language)
	}
	if params.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(params.PSM))
	}
	if params.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(params.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %q", ErrEngineUnavailable, e.cfg.Binary)
		}
		return "", fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(errb), 512))
	}

	txt := reBoxNoise.ReplaceAllString(string(out), "")
	if strings.TrimSpace(txt) == "" {
		return "", ErrNoText
	}
	return txt, nil
}
