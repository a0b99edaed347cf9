// Package catalog holds the static per-model capability table a caller
// consults before building a print job: maximum raster width, density
// range, and which label types a model accepts.
package catalog

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// LabelType enumerates the physical label stock a model can drive.
type LabelType int

const (
	LabelContinuous LabelType = iota
	LabelGap
	LabelPerforated
)

func (t LabelType) String() string {
	switch t {
	case LabelContinuous:
		return "continuous"
	case LabelGap:
		return "gap"
	case LabelPerforated:
		return "perforated"
	default:
		return fmt.Sprintf("labeltype(%d)", int(t))
	}
}

// Model names the supported printer families.
type Model string

const (
	B1   Model = "B1"
	B18  Model = "B18"
	B21  Model = "B21"
	B203 Model = "B203"
	D11  Model = "D11"
	D110 Model = "D110"
)

// ModelSpec describes one printer model's hardware limits and transport
// discovery metadata. VendorID/ProductID identify the USB variant;
// BLEServiceUUID filters a BLE scan to devices of this model family. DPI
// is a display-only derived value — 203 for every known NIIMBOT model.
type ModelSpec struct {
	Model             Model
	MaxWidthPx        int
	MaxDensity        int
	LabelTypes        []LabelType
	SupportedWidthsMM []int
	VendorID          uint16
	ProductID         uint16
	BLEServiceUUID    bluetooth.UUID
	DPI               int
}

// SupportsLabelType reports whether lt is among m's accepted label
// types.
func (m ModelSpec) SupportsLabelType(lt LabelType) bool {
	for _, t := range m.LabelTypes {
		if t == lt {
			return true
		}
	}
	return false
}

// SupportsWidthMM reports whether widthMM is one of m's supported
// physical label widths.
func (m ModelSpec) SupportsWidthMM(widthMM int) bool {
	for _, w := range m.SupportedWidthsMM {
		if w == widthMM {
			return true
		}
	}
	return false
}

// defaultNiimbotServiceUUID is the GATT service UUID most NIIMBOT BLE
// models advertise. Models that differ can override via Register.
var defaultNiimbotServiceUUID = bluetooth.MustParseUUID("0000ff00-0000-1000-8000-00805f9b34fb")

var table = map[Model]ModelSpec{
	B1: {
		Model: B1, MaxWidthPx: 96, MaxDensity: 3,
		LabelTypes:        []LabelType{LabelContinuous, LabelGap},
		SupportedWidthsMM: []int{12, 14, 15},
		VendorID:          0x3513, ProductID: 0x0002,
		BLEServiceUUID: defaultNiimbotServiceUUID, DPI: 203,
	},
	B18: {
		Model: B18, MaxWidthPx: 96, MaxDensity: 3,
		LabelTypes:        []LabelType{LabelContinuous, LabelGap},
		SupportedWidthsMM: []int{12, 14, 15},
		VendorID:          0x3513, ProductID: 0x0003,
		BLEServiceUUID: defaultNiimbotServiceUUID, DPI: 203,
	},
	B21: {
		Model: B21, MaxWidthPx: 384, MaxDensity: 5,
		LabelTypes:        []LabelType{LabelContinuous, LabelGap, LabelPerforated},
		SupportedWidthsMM: []int{14, 25, 30, 40, 50},
		VendorID:          0x3513, ProductID: 0x0011,
		BLEServiceUUID: defaultNiimbotServiceUUID, DPI: 203,
	},
	B203: {
		Model: B203, MaxWidthPx: 384, MaxDensity: 5,
		LabelTypes:        []LabelType{LabelContinuous, LabelGap, LabelPerforated},
		SupportedWidthsMM: []int{14, 25, 30, 40, 50},
		VendorID:          0x3513, ProductID: 0x0015,
		BLEServiceUUID: defaultNiimbotServiceUUID, DPI: 203,
	},
	D11: {
		Model: D11, MaxWidthPx: 96, MaxDensity: 3,
		LabelTypes:        []LabelType{LabelContinuous, LabelGap},
		SupportedWidthsMM: []int{12, 14, 15},
		VendorID:          0x3513, ProductID: 0x0021,
		BLEServiceUUID: defaultNiimbotServiceUUID, DPI: 203,
	},
	D110: {
		Model: D110, MaxWidthPx: 96, MaxDensity: 3,
		LabelTypes:        []LabelType{LabelContinuous, LabelGap},
		SupportedWidthsMM: []int{12, 14, 15},
		VendorID:          0x3513, ProductID: 0x0022,
		BLEServiceUUID: defaultNiimbotServiceUUID, DPI: 203,
	},
}

var mu sync.RWMutex

// Lookup returns the ModelSpec for m, or false if m is not registered.
func Lookup(m Model) (ModelSpec, bool) {
	mu.RLock()
	defer mu.RUnlock()
	spec, ok := table[m]
	return spec, ok
}

// Register overrides or adds a ModelSpec, for callers with authoritative
// firmware data that differs from the built-in table (itself derived
// from public model documentation, not verified hardware traces).
func Register(spec ModelSpec) {
	mu.Lock()
	defer mu.Unlock()
	table[spec.Model] = spec
}

// Models returns every registered model name.
func Models() []Model {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Model, 0, len(table))
	for m := range table {
		out = append(out, m)
	}
	return out
}

// ErrUnknownModel is returned by validation helpers given a model with
// no catalog entry.
type ErrUnknownModel struct{ Model Model }

func (e *ErrUnknownModel) Error() string {
	return fmt.Sprintf("catalog: unknown model %q", e.Model)
}

// ErrWidthExceedsModel is returned when a raster width exceeds a
// model's max_width_px.
type ErrWidthExceedsModel struct {
	Model      Model
	WidthPx    int
	MaxWidthPx int
}

func (e *ErrWidthExceedsModel) Error() string {
	return fmt.Sprintf("catalog: width %dpx exceeds model %s's max of %dpx", e.WidthPx, e.Model, e.MaxWidthPx)
}

// ErrDensityExceedsModel is returned when a requested density exceeds a
// model's max_density.
type ErrDensityExceedsModel struct {
	Model      Model
	Density    int
	MaxDensity int
}

func (e *ErrDensityExceedsModel) Error() string {
	return fmt.Sprintf("catalog: density %d exceeds model %s's max of %d", e.Density, e.Model, e.MaxDensity)
}

// ErrLabelTypeNotSupported is returned when a model's catalog entry does
// not list lt among its supported label types.
type ErrLabelTypeNotSupported struct {
	Model Model
	Type  LabelType
}

func (e *ErrLabelTypeNotSupported) Error() string {
	return fmt.Sprintf("catalog: model %s does not support label type %s", e.Model, e.Type)
}

// ValidateRaster checks widthPx, density, and lt against m's limits,
// returning the first violation found.
func ValidateRaster(m Model, widthPx, density int, lt LabelType) error {
	spec, ok := Lookup(m)
	if !ok {
		return &ErrUnknownModel{Model: m}
	}
	if widthPx > spec.MaxWidthPx {
		return &ErrWidthExceedsModel{Model: m, WidthPx: widthPx, MaxWidthPx: spec.MaxWidthPx}
	}
	if density > spec.MaxDensity {
		return &ErrDensityExceedsModel{Model: m, Density: density, MaxDensity: spec.MaxDensity}
	}
	if !spec.SupportsLabelType(lt) {
		return &ErrLabelTypeNotSupported{Model: m, Type: lt}
	}
	return nil
}
