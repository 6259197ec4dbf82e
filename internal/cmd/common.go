// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mia-platform/bankcap/internal/config"
)

// handleError prints err on the command error stream and returns it, so the process exits
// with a non zero code. Configuration errors also print the usage.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrParsing):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// noArgs rejects any positional argument, printing the error and the usage.
func noArgs(cmd *cobra.Command, args []string) error {
	err := cobra.NoArgs(cmd, args)
	if err != nil {
		cmd.PrintErrln(err)
		_ = cmd.Usage()
	}

	return err
}
