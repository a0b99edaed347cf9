// Package cmdinfo provides the info subcommand, printing GET_INFO
// fields as a table.
package cmdinfo

import (
	"context"
	"fmt"

	"github.com/pterm/pterm"

	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/base"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/bootstrap"
	"github.com/Junsang-Mun/niimbot-web/info"
)

var CmdInfo = &base.Command{
	Run:        runInfo,
	UsageLine:  "niimbotctl info",
	Short:      "queries device info fields",
	PrintFlags: true,
	Long: `
Info queries every known GET_INFO field and prints them as a table.
`,
}

var queryKeys = []struct {
	Name string
	Key  info.Key
}{
	{"density", info.KeyDensity},
	{"print speed", info.KeyPrintSpeed},
	{"label type", info.KeyLabelType},
	{"language", info.KeyLanguage},
	{"auto shutdown", info.KeyAutoShutdown},
	{"device type", info.KeyDeviceType},
	{"soft version", info.KeySoftVersion},
	{"hard version", info.KeyHardVersion},
	{"battery", info.KeyBattery},
	{"device serial", info.KeyDeviceSerial},
}

func runInfo(ctx context.Context, cmd *base.Command, args []string) error {
	sess, err := bootstrap.Session(ctx)
	if err != nil {
		return err
	}

	rows := [][]string{{"Field", "Value"}}
	for _, q := range queryKeys {
		v, err := sess.Info().GetInfo(ctx, q.Key)
		if err != nil {
			rows = append(rows, []string{q.Name, "error: " + err.Error()})
			continue
		}
		rows = append(rows, []string{q.Name, fmt.Sprintf("%v", v)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}
