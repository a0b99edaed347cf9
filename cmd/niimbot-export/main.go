// Command niimbot-export converts an image into a Dialect-B framed
// blob, the offline export format observed in the PNG-to-packet
// pipeline rather than anything a live transport accepts (spec.md §9's
// design note resolves that ambiguity: Dialect B is export-only).
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/Junsang-Mun/niimbot-web/catalog"
	"github.com/Junsang-Mun/niimbot-web/protocol"
	"github.com/Junsang-Mun/niimbot-web/raster"
)

var (
	outPath = flag.String("o", "", "output `file` (default: stdout)")
	model   = flag.String("model", "B21", "target model, for width validation")
	density = flag.Int("density", 3, "print density for density-scaled threshold (ignored with -fixed)")
	fixed   = flag.Bool("fixed", true, "use fixed threshold 128 instead of density-scaled")
	asHex   = flag.Bool("hex", false, "write hex text instead of raw binary")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: niimbot-export [flags] <image file>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, "niimbot-export:", err)
		os.Exit(1)
	}
}

func run(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", filename, err)
	}

	mode := raster.ThresholdDensityScaled
	if *fixed {
		mode = raster.ThresholdFixed
	}
	enc, err := raster.NewEncoder(catalog.Model(*model), raster.Rotate0, mode, *density)
	if err != nil {
		return err
	}
	rows, err := enc.EncodeRows(img)
	if err != nil {
		return err
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	for y, row := range rows {
		payload := raster.ImageRowPayload(y, row)
		frame := protocol.EncodeB(payload)
		if *asHex {
			fmt.Fprintln(w, hex.EncodeToString(frame))
			continue
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
	}
	return nil
}
