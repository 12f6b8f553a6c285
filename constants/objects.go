package constants

import (
	"strings"
)

type ObjectLabel string

const (
	ObjectProduct      ObjectLabel = "product"
	ObjectBattery      ObjectLabel = "battery"
	ObjectPowerSupply  ObjectLabel = "power_supply"
	ObjectCharger      ObjectLabel = "charger"
	ObjectCable        ObjectLabel = "cable"
	ObjectConnector    ObjectLabel = "connector"
	ObjectPhone        ObjectLabel = "phone"
	ObjectLaptop       ObjectLabel = "laptop"
	ObjectScreen       ObjectLabel = "screen"
	ObjectCircuitBoard ObjectLabel = "circuit_board"
	ObjectBarcode      ObjectLabel = "barcode"
	ObjectLabelTag     ObjectLabel = "label"
	ObjectPackaging    ObjectLabel = "packaging"
	ObjectError        ObjectLabel = "error"
)

// objectKeywords is matched in order so results stay deterministic.
var objectKeywords = []struct {
	keyword string
	label   ObjectLabel
}{
	{"battery", ObjectBattery},
	{"lithium", ObjectBattery},
	{"li-ion", ObjectBattery},
	{"mah", ObjectPowerSupply},
	{"power supply", ObjectPowerSupply},
	{"psu", ObjectPowerSupply},
	{"adapter", ObjectPowerSupply},
	{"charger", ObjectCharger},
	{"charging", ObjectCharger},
	{"cable", ObjectCable},
	{"cord", ObjectCable},
	{"wire", ObjectCable},
	{"usb", ObjectConnector},
	{"hdmi", ObjectConnector},
	{"connector", ObjectConnector},
	{"plug", ObjectConnector},
	{"phone", ObjectPhone},
	{"smartphone", ObjectPhone},
	{"laptop", ObjectLaptop},
	{"notebook", ObjectLaptop},
	{"screen", ObjectScreen},
	{"display", ObjectScreen},
	{"lcd", ObjectScreen},
	{"circuit", ObjectCircuitBoard},
	{"pcb", ObjectCircuitBoard},
	{"barcode", ObjectBarcode},
	{"serial", ObjectLabelTag},
	{"model", ObjectLabelTag},
	{"label", ObjectLabelTag},
	{"packaging", ObjectPackaging},
	{"box", ObjectPackaging},
}

// MatchObjects returns the object labels whose keywords appear in text,
// deduplicated, in table order. Matching is case-insensitive substring.
func MatchObjects(text string) []ObjectLabel {
	if text == "" {
		return nil
	}

	normalized := strings.ToLower(text)

	var result []ObjectLabel
	seen := make(map[ObjectLabel]struct{})
	for _, kw := range objectKeywords {
		if !strings.Contains(normalized, kw.keyword) {
			continue
		}
		if _, ok := seen[kw.label]; ok {
			continue
		}
		seen[kw.label] = struct{}{}
		result = append(result, kw.label)
	}
	return result
}

func ObjectsAsStrings(labels []ObjectLabel) []string {
	result := make([]string, len(labels))
	for i, l := range labels {
		result[i] = string(l)
	}
	return result
}
