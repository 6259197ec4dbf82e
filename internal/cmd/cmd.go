// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	runCmdUsage = "run"
	runCmdShort = "run the whole extract, transform and load pipeline"
	runCmdLong  = `Run the whole pipeline once.
	The bank table is read from the source page, the top entries by market
	capitalization are converted in every configured currency using the
	exchange rate table, and the result replaces both the output file and
	the database table. The ranking query is then run against the database
	and its result is printed.

	Every stage is recorded in the append only progress log; the first
	failing stage stops the run and the command exits with a non zero code.

	Settings are read from the configuration file, then from the BANKCAP_
	environment variables and then from the flags.`

	runCmdExample = `# Run with the default settings
	bankcap run

	# Keep the top 20 banks and store them in PostgreSQL
	bankcap run --top 20 --db-driver postgres --db-dsn postgres://localhost/banks

	# Read the page from a local copy
	bankcap run --source ./List_of_largest_banks.html`

	queryCmdUsage = "query"
	queryCmdShort = "print the largest banks stored in the database"
	queryCmdLong  = `Run the ranking query against the table written by a previous run.
	Rows are ordered by the given numeric column, highest first.`

	queryCmdExample = `# Print the five largest banks
	bankcap query

	# Print the ten largest banks by their value in euro
	bankcap query --limit 10 --order-by value_EUR`
)

// RunCmd returns the Cobra command that executes a pipeline run.
func RunCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     runCmdUsage,
		Short:   heredoc.Doc(runCmdShort),
		Long:    heredoc.Doc(runCmdLong),
		Example: heredoc.Doc(runCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              noArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeRun(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	flags.addRunFlags(cmd)
	return cmd
}

// QueryCmd returns the Cobra command that runs the ranking query alone.
func QueryCmd() *cobra.Command {
	flags := &flags{}
	cmd := &cobra.Command{
		Use:     queryCmdUsage,
		Short:   heredoc.Doc(queryCmdShort),
		Long:    heredoc.Doc(queryCmdLong),
		Example: heredoc.Doc(queryCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              noArgs,
		ValidArgsFunction: cobra.NoFileCompletions,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.toOptions(cmd)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.validate(); err != nil {
				return handleError(cmd, err)
			}

			if err := opts.executeQuery(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
