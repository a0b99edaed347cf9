// This package is based on the Golang source code with some modifications.
//
// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package base defines shared basic pieces of the niimbotctl command.
package base

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cfg"
)

var CmdName string

// A Command is an implementation of a niimbotctl command.
type Command struct {
	Run func(ctx context.Context, cmd *Command, args []string) error

	UsageLine string
	Short     string
	Long      string

	Flag flag.FlagSet

	CustomFlags bool
	FlagMask    cfg.FlagMask
	PrintFlags  bool

	Commands []*Command
}

var NiimbotCommand = &Command{
	UsageLine: "niimbotctl",
	Long: `
niimbotctl drives a NIIMBOT thermal label printer: print images, query
device info, and watch the connection heartbeat. Offline Dialect-B
export is a separate command, niimbot-export.
`,
}

var exitStatus = SNoError
var exitMu sync.Mutex

func ExitStatus() (sc StatusCode) {
	exitMu.Lock()
	sc = exitStatus
	exitMu.Unlock()
	return
}

func SetExitStatus(n StatusCode) {
	exitMu.Lock()
	if exitStatus < n {
		exitStatus = n
	}
	exitMu.Unlock()
}

var atExitFuncs []func()

// AtExit registers f to run during Exit, in registration order. Used
// to close log files, stop traces, and disconnect a live Session
// without leaning on deferred calls the top-level dispatch loop can't
// reach from inside a subcommand.
func AtExit(f func()) {
	atExitFuncs = append(atExitFuncs, f)
}

func Exit() {
	for _, f := range atExitFuncs {
		f()
	}
	os.Exit(int(exitStatus))
}

// Runnable reports whether the command can be run; otherwise it is a
// documentation pseudo-command.
func (c *Command) Runnable() bool {
	return c.Run != nil
}

func (c *Command) LongName() string {
	name := c.UsageLine
	if i := strings.Index(name, " ["); i >= 0 {
		name = name[:i]
	}
	if name == "niimbotctl" {
		return ""
	}
	return strings.TrimPrefix(name, "niimbotctl ")
}

func (c *Command) Name() string {
	name := c.LongName()
	if i := strings.LastIndex(name, " "); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Usage is filled in by package main but referenced here so Command and
// other packages can trigger it without an import cycle.
var Usage func()

func (c *Command) Usage() {
	fmt.Fprintf(os.Stderr, "usage: %s\n", c.UsageLine)
	fmt.Fprintf(os.Stderr, "Run 'niimbotctl' with no arguments to list commands.\n")
	SetExitStatus(SInvalidParameters)
	Exit()
}

// Executable returns the name of the executable for the current OS.
func Executable() string {
	exe, err := os.Executable()
	if err != nil {
		exe = "niimbotctl"
		if runtime.GOOS == "windows" {
			exe += ".exe"
		}
	}
	return filepath.Base(exe)
}
