// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mia-platform/bankcap/internal/config"
	"github.com/mia-platform/bankcap/internal/destination/writer"
)

const (
	configFlagName  = "config"
	configFlagShort = "c"
	configFlagUsage = "path to a YAML configuration file"

	sourceFlagName  = "source"
	sourceFlagUsage = "URL or path of the page holding the bank table"

	selectorFlagName  = "selector"
	selectorFlagUsage = "CSS selector of the bank table inside the page"

	ratesFlagName  = "rates"
	ratesFlagUsage = "URL or path of the Currency,Rate exchange table"

	currenciesFlagName  = "currencies"
	currenciesFlagUsage = "target currency codes, in column order"

	topFlagName  = "top"
	topFlagUsage = "number of banks kept after ranking"

	timeoutFlagName  = "timeout"
	timeoutFlagUsage = "timeout of every network request"

	outputFlagName  = "output"
	outputFlagShort = "o"
	outputFlagUsage = "path of the CSV file written by the run"

	logFileFlagName  = "log-file"
	logFileFlagUsage = "path of the append only progress log"

	dbDriverFlagName  = "db-driver"
	dbDriverFlagUsage = "database driver (sqlite or postgres)"

	dbDSNFlagName  = "db-dsn"
	dbDSNFlagUsage = "database file for sqlite, connection string for postgres"

	tableFlagName  = "table"
	tableFlagUsage = "database table replaced by the run"

	limitFlagName  = "limit"
	limitFlagUsage = "number of rows returned by the ranking query"

	formatFlagName  = "format"
	formatFlagUsage = "format of the printed rows"

	orderByFlagName  = "order-by"
	orderByFlagUsage = "numeric column used to rank the query result (default the market capitalization column)"
)

// flags collects the CLI options shared by the run and query commands. Only the flags set
// on the command line override the configuration.
type flags struct {
	configPath string

	sourceURL    string
	selector     string
	ratesPath    string
	currencies   []string
	topN         int
	fetchTimeout time.Duration
	outputPath   string
	logPath      string

	dbDriver   string
	dbDSN      string
	tableName  string
	queryLimit int
	orderBy    string
	format     string
}

// addFlags registers the flags used by every command on cmd.
func (f *flags) addFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()

	cmd.Flags().StringVarP(&f.configPath, configFlagName, configFlagShort, "", configFlagUsage)
	cmd.Flags().StringVar(&f.dbDriver, dbDriverFlagName, defaults.DBDriver, dbDriverFlagUsage)
	cmd.Flags().StringVar(&f.dbDSN, dbDSNFlagName, defaults.DBDSN, dbDSNFlagUsage)
	cmd.Flags().StringVar(&f.tableName, tableFlagName, defaults.TableName, tableFlagUsage)
	cmd.Flags().IntVar(&f.queryLimit, limitFlagName, defaults.QueryLimit, limitFlagUsage)
	cmd.Flags().StringVar(&f.orderBy, orderByFlagName, "", orderByFlagUsage)
	cmd.Flags().StringSliceVar(&f.currencies, currenciesFlagName, defaults.Currencies, currenciesFlagUsage)
	cmd.Flags().StringVar(&f.format, formatFlagName, string(writer.FormatTable), formatFlagUsage+formatValues())
}

// addRunFlags registers the flags only meaningful for a full run on cmd.
func (f *flags) addRunFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()

	cmd.Flags().StringVar(&f.sourceURL, sourceFlagName, defaults.SourceURL, sourceFlagUsage)
	cmd.Flags().StringVar(&f.selector, selectorFlagName, defaults.Selector, selectorFlagUsage)
	cmd.Flags().StringVar(&f.ratesPath, ratesFlagName, defaults.RatesPath, ratesFlagUsage)
	cmd.Flags().IntVar(&f.topN, topFlagName, defaults.TopN, topFlagUsage)
	cmd.Flags().DurationVar(&f.fetchTimeout, timeoutFlagName, defaults.FetchTimeout, timeoutFlagUsage)
	cmd.Flags().StringVarP(&f.outputPath, outputFlagName, outputFlagShort, defaults.OutputPath, outputFlagUsage)
	cmd.Flags().StringVar(&f.logPath, logFileFlagName, defaults.LogPath, logFileFlagUsage)
}

// toOptions loads the configuration and applies the flags explicitly set on cmd.
func (f *flags) toOptions(cmd *cobra.Command) (*options, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	overrides := []struct {
		name  string
		apply func()
	}{
		{sourceFlagName, func() { cfg.SourceURL = f.sourceURL }},
		{selectorFlagName, func() { cfg.Selector = f.selector }},
		{ratesFlagName, func() { cfg.RatesPath = f.ratesPath }},
		{currenciesFlagName, func() { cfg.Currencies = f.currencies }},
		{topFlagName, func() { cfg.TopN = f.topN }},
		{timeoutFlagName, func() { cfg.FetchTimeout = f.fetchTimeout }},
		{outputFlagName, func() { cfg.OutputPath = f.outputPath }},
		{logFileFlagName, func() { cfg.LogPath = f.logPath }},
		{dbDriverFlagName, func() { cfg.DBDriver = f.dbDriver }},
		{dbDSNFlagName, func() { cfg.DBDSN = f.dbDSN }},
		{tableFlagName, func() { cfg.TableName = f.tableName }},
		{limitFlagName, func() { cfg.QueryLimit = f.queryLimit }},
		{orderByFlagName, func() { cfg.QueryOrderBy = f.orderBy }},
	}
	for _, override := range overrides {
		if changed(override.name) {
			override.apply()
		}
	}

	return &options{
		config: cfg,
		out:    cmd.OutOrStdout(),
		format: writer.Format(f.format),
	}, nil
}

func formatValues() string {
	values := make([]string, 0, len(writer.Formats))
	for _, format := range writer.Formats {
		values = append(values, string(format))
	}
	return " (possible values: " + strings.Join(values, ", ") + ")"
}
