// Package cmdheartbeat provides the heartbeat subcommand, polling
// connection/paper-state at a fixed interval until interrupted.
package cmdheartbeat

import (
	"context"
	"fmt"
	"time"

	niimbot "github.com/Junsang-Mun/niimbot-web"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/base"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/bootstrap"
)

var CmdHeartbeat = &base.Command{
	Run:        runHeartbeat,
	UsageLine:  "niimbotctl heartbeat",
	Short:      "polls the printer's connection heartbeat",
	PrintFlags: true,
}

func runHeartbeat(ctx context.Context, cmd *base.Command, args []string) error {
	sess, err := bootstrap.Session(ctx)
	if err != nil {
		return err
	}

	ticker := niimbot.DefaultHeartbeatPeriod()
	for {
		status, err := sess.Heartbeat(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("paper=%d rfid=%d power=%d\n", status.PaperState, status.RFIDPresent, status.PowerState)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ticker):
		}
	}
}
