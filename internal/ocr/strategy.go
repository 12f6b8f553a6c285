package ocr

import "github.com/partlens/partlens/internal/imaging"

// Strategy names double as the method tag on ExtractionResult.
const (
	StrategyProductLabel  = "product_label"
	StrategyBarcodeSerial = "barcode_serial"
	StrategyMixedText     = "mixed_text"
	StrategyFinePrint     = "fine_print"
)

// Strategy pairs engine parameters with the preprocessing suited to one kind
// of product text.
type Strategy struct {
	Name   string
	Steps  []imaging.Step
	Params Params
}

// Strategies returns the fixed strategy table in execution order: printed
// labels, barcode/serial lines, mixed packaging text, then fine print.
func Strategies() []Strategy {
	return []Strategy{
		{
			Name:   StrategyProductLabel,
			Steps:  []imaging.Step{imaging.StepEnhanceContrast, imaging.StepDeskew},
			Params: Params{PSM: 6, OEM: 1},
		},
		{
			Name:   StrategyBarcodeSerial,
			Steps:  []imaging.Step{imaging.StepEnhanceContrast, imaging.StepSharpen},
			Params: Params{PSM: 7, OEM: 1},
		},
		{
			Name:   StrategyMixedText,
			Steps:  []imaging.Step{imaging.StepDenoise, imaging.StepEnhanceContrast},
			Params: Params{PSM: 3, OEM: 1},
		},
		{
			Name:   StrategyFinePrint,
			Steps:  []imaging.Step{imaging.StepUpscale, imaging.StepEnhanceContrast, imaging.StepSharpen},
			Params: Params{PSM: 6, OEM: 1},
		},
	}
}
