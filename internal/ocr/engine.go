package ocr

import (
	"context"
	"errors"
)

// Engine availability and extraction failures are distinct conditions:
// a missing engine fails every strategy the same way, while ErrNoText is
// specific to one image and one configuration.
var (
	ErrEngineUnavailable = errors.New("ocr engine not installed")
	ErrNoText            = errors.New("no text recognized")
)

// Params selects the engine configuration for a single recognition call.
type Params struct {
	Language string // e.g. "eng"; empty uses the engine default
	PSM      int    // page segmentation mode; 0 uses the engine default
	OEM      int    // engine mode; 0 uses the engine default
}

// Engine produces raw text from a single prepared image.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, params Params) (string, error)
	Available(ctx context.Context) error
}
