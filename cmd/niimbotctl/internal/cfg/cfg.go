// Package cfg holds flags and environment-derived defaults shared by
// every niimbotctl subcommand.
package cfg

import (
	"flag"
	"log/slog"
	"time"

	"github.com/rusq/osenv/v2"
	"tinygo.org/x/bluetooth"
)

var adapter = bluetooth.DefaultAdapter

var (
	TraceFile   string = osenv.Value("TRACE_FILE", "")
	LogFile     string = osenv.Value("LOG_FILE", "")
	JSONHandler bool   = osenv.Value("JSON_LOG", false)
	Verbose     bool   = osenv.Value("DEBUG", false)

	Model     string = osenv.Value("NIIMBOT_MODEL", "B21")
	MAC       string = osenv.Value("NIIMBOT_MAC", "")
	Transport string = osenv.Value("NIIMBOT_TRANSPORT", "ble") // "ble" or "usb"

	Density    uint          = osenv.Value("NIIMBOT_DENSITY", uint(3))
	WidthMM    int           = osenv.Value("NIIMBOT_WIDTH_MM", 50)
	PrintDelay time.Duration = osenv.Value("NIIMBOT_PRINT_DELAY", 7*time.Millisecond)

	Gamma      float64 = osenv.Value("NIIMBOT_GAMMA", 0.0)
	Crop       bool    = osenv.Value("NIIMBOT_CROP", false)
	Dither     string  = osenv.Value("NIIMBOT_DITHER", "")
	AutoDither bool    = osenv.Value("NIIMBOT_AUTO_DITHER", false)

	Log *slog.Logger = slog.Default()
)

// FlagMask selects which groups of flags SetBaseFlags registers, the
// same omit-by-bitmask pattern the teacher's CLI uses to share one flag
// set across subcommands with different needs.
type FlagMask uint16

const (
	DefaultFlags     FlagMask = 0
	OmitConnectFlags FlagMask = 1 << (iota - 1)
	OmitImageFlags

	OmitAll = OmitConnectFlags | OmitImageFlags
)

// SetBaseFlags registers the flags common to every subcommand (logging,
// tracing) plus, unless masked out, connection and image-processing
// flags.
func SetBaseFlags(fs *flag.FlagSet, mask FlagMask) {
	fs.StringVar(&TraceFile, "trace", TraceFile, "trace `filename`")
	fs.StringVar(&LogFile, "log", LogFile, "log `file`, if empty messages go to STDERR")
	fs.BoolVar(&JSONHandler, "log-json", JSONHandler, "log in JSON format")
	fs.BoolVar(&Verbose, "v", Verbose, "verbose messages")

	if mask&OmitConnectFlags == 0 {
		fs.StringVar(&Model, "model", Model, "printer model (B1, B18, B21, B203, D11, D110)")
		fs.StringVar(&MAC, "mac", MAC, "MAC/address of the printer")
		fs.StringVar(&Transport, "transport", Transport, "transport to use: ble or usb")
		fs.UintVar(&Density, "density", Density, "print density (model-dependent range)")
		fs.DurationVar(&PrintDelay, "d", PrintDelay, "delay between print commands")
	}

	if mask&OmitImageFlags == 0 {
		fs.IntVar(&WidthMM, "width", WidthMM, "target label width in millimeters")
		fs.Float64Var(&Gamma, "gamma", Gamma, "gamma correction for dithering")
		fs.BoolVar(&Crop, "crop", Crop, "crop image to printer width instead of resizing")
		fs.StringVar(&Dither, "dither", Dither, "dithering algorithm: floyd-steinberg, atkinson, stucki, bayer, or empty for none")
		fs.BoolVar(&AutoDither, "auto-dither", AutoDither, "disable dithering automatically for document-like images")
	}
}

// Adapter returns the default BLE adapter used to scan for printers.
func Adapter() *bluetooth.Adapter {
	return adapter
}
