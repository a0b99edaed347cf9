// Package cmdprint provides the print subcommand.
package cmdprint

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pterm/pterm"

	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/base"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/bootstrap"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cfg"
)

var CmdPrint = &base.Command{
	Run:        runPrint,
	UsageLine:  "niimbotctl print [flags] <image file>",
	Short:      "prints an image file",
	PrintFlags: true,
	Long: `
Print rasterizes an image file and drives it through a full print job,
reporting progress with a spinner while rows stream to the printer.
`,
}

func runPrint(ctx context.Context, cmd *base.Command, args []string) error {
	if len(args) != 1 {
		base.SetExitStatus(base.SInvalidParameters)
		return errors.New("expected exactly one image file")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}

	sess, err := bootstrap.Session(ctx)
	if err != nil {
		return err
	}

	spinner, _ := pterm.DefaultSpinner.Start("printing...")
	result, err := sess.Print(ctx, img, cfg.WidthMM)
	if err != nil {
		spinner.Fail(err.Error())
		base.SetExitStatus(base.SGenericError)
		return err
	}
	spinner.Success(fmt.Sprintf("printed %d rows in %s", result.RowsSent, result.Duration))
	return nil
}
