// SPDX-License-Identifier: AGPL-3.0-or-later
// trunk-recorder - Trunked radio voice-call recorder
// Copyright (C) 2023 Jacob McSwain

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/USA-RedDragon/trunk-recorder/cmd"
)

// version and commit are set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps any returned *cmd.ExitError to
// its process exit code (0 normal, 1 config error, 2 SDR open error, 3
// internal fatal). An error with no ExitError in its chain is treated
// as an internal fault.
func run() int {
	root := cmd.NewCommand(version, commit)
	err := root.Execute()
	if err == nil {
		return cmd.ExitOK
	}

	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, exitErr.Error())
		return exitErr.Code
	}

	fmt.Fprintln(os.Stderr, err.Error())
	return cmd.ExitFatalError
}
