// Command niimbotctl drives a NIIMBOT thermal label printer from the
// command line: print, info, heartbeat.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/base"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cfg"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cmdheartbeat"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cmdinfo"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cmdprint"
)

func init() {
	base.NiimbotCommand.Commands = []*base.Command{
		cmdprint.CmdPrint,
		cmdinfo.CmdInfo,
		cmdheartbeat.CmdHeartbeat,
	}
	base.Usage = mainUsage
}

func main() {
	flag.Usage = base.Usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		base.Usage()
		return
	}
	base.CmdName = args[0]

	for _, cmd := range base.NiimbotCommand.Commands {
		if cmd.Name() != args[0] {
			continue
		}
		if !cmd.Runnable() {
			continue
		}
		if err := invoke(cmd, args); err != nil {
			msg := fmt.Sprintf("%03[1]d (%[1]s): %[2]s.", base.ExitStatus(), err)
			slog.Error(msg)
		}
		base.Exit()
		return
	}

	fmt.Fprintf(os.Stderr, "niimbotctl %s: unknown command\nRun 'niimbotctl' with no arguments for usage.\n", base.CmdName)
	base.SetExitStatus(base.SInvalidParameters)
	base.Exit()
}

func mainUsage() {
	fmt.Fprintf(os.Stderr, "usage: niimbotctl <command> [flags]\n\ncommands:\n")
	for _, cmd := range base.NiimbotCommand.Commands {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", cmd.Name(), cmd.Short)
	}
	os.Exit(2)
}

func invoke(cmd *base.Command, args []string) error {
	var err error
	args, err = parseFlags(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if lg, err := initLog(cfg.LogFile, cfg.JSONHandler, cfg.Verbose); err != nil {
		return err
	} else {
		cfg.Log = lg.With("command", cmd.Name())
	}

	return cmd.Run(ctx, cmd, args)
}

func parseFlags(cmd *base.Command, args []string) ([]string, error) {
	cfg.SetBaseFlags(&cmd.Flag, cmd.FlagMask)
	cmd.Flag.Usage = func() { cmd.Usage() }
	if err := cmd.Flag.Parse(args[1:]); err != nil {
		return nil, err
	}
	return cmd.Flag.Args(), nil
}

// initLog initializes slog, redirecting to a file if cfg.LogFile is
// set, the way the teacher's cmd/tp/main.go initLog does.
func initLog(filename string, jsonHandler bool, verbose bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if jsonHandler {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
	if filename != "" {
		lf, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
		if err != nil {
			return slog.Default(), fmt.Errorf("failed to create the log file: %w", err)
		}
		log.SetOutput(lf)

		var h slog.Handler = slog.NewTextHandler(lf, opts)
		if jsonHandler {
			h = slog.NewJSONHandler(lf, opts)
		}
		sl := slog.New(h)
		slog.SetDefault(sl)
		base.AtExit(func() {
			if err := lf.Close(); err != nil {
				slog.Warn("failed to close the log file", "err", err)
			}
		})
	}
	return slog.Default(), nil
}
