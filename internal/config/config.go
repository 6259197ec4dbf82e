// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package config resolves the settings of a pipeline run from built-in defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mia-platform/bankcap/internal/destination/database"
	"github.com/mia-platform/bankcap/internal/extract"
	"github.com/mia-platform/bankcap/internal/fetch"
	"github.com/mia-platform/bankcap/internal/progress"
	"github.com/mia-platform/bankcap/internal/source"
	"github.com/mia-platform/bankcap/internal/table"
)

const (
	// EnvPrefix is prepended to the name of every environment variable read by Load.
	EnvPrefix = "BANKCAP_"

	// DefaultSourceURL is the archived page listing the largest banks.
	DefaultSourceURL = "https://web.archive.org/web/20230908091635/https://en.wikipedia.org/wiki/List_of_largest_banks"
	// DefaultRatesPath is the exchange rate table used when none is configured.
	DefaultRatesPath = "exchange_rate.csv"
	// DefaultOutputPath is the file written by the file sink.
	DefaultOutputPath = "Largest_banks_data.csv"
	// DefaultQueryLimit is the number of rows returned by the ranking query.
	DefaultQueryLimit = 5
)

var (
	// ErrParsing reports a configuration file or environment that cannot be decoded.
	ErrParsing = errors.New("error parsing configuration")
	// ErrInvalidConfig reports a configuration whose values cannot drive a run.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds every setting of a run.
type Config struct {
	SourceURL    string        `yaml:"sourceURL" env:"SOURCE_URL"`
	Selector     string        `yaml:"selector" env:"SELECTOR"`
	NameLabel    string        `yaml:"nameLabel" env:"NAME_LABEL"`
	CapLabel     string        `yaml:"capLabel" env:"CAP_LABEL"`
	FetchTimeout time.Duration `yaml:"fetchTimeout" env:"FETCH_TIMEOUT"`

	TopN       int      `yaml:"topN" env:"TOP_N"`
	RatesPath  string   `yaml:"ratesPath" env:"RATES_PATH"`
	Currencies []string `yaml:"currencies" env:"CURRENCIES" envSeparator:","`

	OutputPath string `yaml:"outputPath" env:"OUTPUT_PATH"`
	DBDriver   string `yaml:"dbDriver" env:"DB_DRIVER"`
	DBDSN      string `yaml:"dbDSN" env:"DB_DSN"`
	TableName  string `yaml:"tableName" env:"TABLE_NAME"`

	QueryLimit   int    `yaml:"queryLimit" env:"QUERY_LIMIT"`
	QueryOrderBy string `yaml:"queryOrderBy" env:"QUERY_ORDER_BY"`

	LogPath string `yaml:"logPath" env:"LOG_PATH"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		SourceURL:    DefaultSourceURL,
		Selector:     source.DefaultSelector,
		NameLabel:    extract.DefaultNameLabel,
		CapLabel:     extract.DefaultCapLabel,
		FetchTimeout: fetch.DefaultTimeout,
		TopN:         extract.DefaultTopN,
		RatesPath:    DefaultRatesPath,
		Currencies:   slices.Clone(table.DefaultCurrencies),
		OutputPath:   DefaultOutputPath,
		DBDriver:     database.DriverSQLite,
		DBDSN:        database.DefaultDSN,
		TableName:    database.DefaultTable,
		QueryLimit:   DefaultQueryLimit,
		LogPath:      progress.DefaultPath,
	}
}

// Load returns the defaults overridden by the YAML file at path, when path is not empty,
// and then by the environment variables starting with EnvPrefix.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if err := config.decodeFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsing, err)
	}

	return config, nil
}

func (c *Config) decodeFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrParsing, path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w %q: %w", ErrParsing, path, err)
	}

	return nil
}

// Schema returns the table schema for the configured currencies.
func (c *Config) Schema() table.Schema {
	return table.NewSchema(c.Currencies)
}

// OrderBy returns the column used to rank the query result.
func (c *Config) OrderBy() string {
	if c.QueryOrderBy == "" {
		return c.Schema().MetricColumn
	}
	return c.QueryOrderBy
}

// Validate reports every setting that cannot drive a run.
func (c *Config) Validate() error {
	problems := make([]string, 0)
	required := map[string]string{
		"sourceURL":  c.SourceURL,
		"nameLabel":  c.NameLabel,
		"capLabel":   c.CapLabel,
		"ratesPath":  c.RatesPath,
		"outputPath": c.OutputPath,
		"dbDSN":      c.DBDSN,
		"logPath":    c.LogPath,
	}
	for _, key := range slices.Sorted(maps.Keys(required)) {
		if strings.TrimSpace(required[key]) == "" {
			problems = append(problems, key+" is required")
		}
	}

	if c.FetchTimeout <= 0 {
		problems = append(problems, "fetchTimeout must be positive")
	}
	if c.TopN < 0 {
		problems = append(problems, "topN cannot be negative")
	}
	if c.QueryLimit < 0 {
		problems = append(problems, "queryLimit cannot be negative")
	}

	if len(c.Currencies) == 0 {
		problems = append(problems, "at least one currency is required")
	} else if err := c.Schema().Validate(); err != nil {
		problems = append(problems, "currencies: "+err.Error())
	} else if !c.Schema().IsNumeric(c.OrderBy()) {
		problems = append(problems, fmt.Sprintf("queryOrderBy %q is not a numeric column", c.OrderBy()))
	}

	if c.DBDriver != database.DriverSQLite && c.DBDriver != database.DriverPostgres {
		problems = append(problems, fmt.Sprintf("dbDriver %q is not supported", c.DBDriver))
	}
	if !database.ValidIdentifier(c.TableName) {
		problems = append(problems, fmt.Sprintf("tableName %q is not a valid identifier", c.TableName))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, ", "))
	}
	return nil
}
