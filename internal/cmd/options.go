// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/mia-platform/bankcap/internal/config"
	"github.com/mia-platform/bankcap/internal/destination"
	"github.com/mia-platform/bankcap/internal/destination/database"
	"github.com/mia-platform/bankcap/internal/destination/writer"
	"github.com/mia-platform/bankcap/internal/fetch"
	"github.com/mia-platform/bankcap/internal/logger"
	"github.com/mia-platform/bankcap/internal/pipeline"
	"github.com/mia-platform/bankcap/internal/source"
	"github.com/mia-platform/bankcap/internal/table"
)

const loggerName = "bankcap:cmd"

// options holds the resolved configuration of a command.
type options struct {
	config *config.Config
	out    io.Writer
	format writer.Format

	// reader and store replace the collaborators built from config when set.
	reader source.Reader
	store  destination.StoreOpener
}

// validate reports a configuration that cannot be used.
func (o *options) validate() error {
	if !slices.Contains(writer.Formats, o.format) {
		return fmt.Errorf("%w: unknown output format %q", config.ErrInvalidConfig, o.format)
	}

	return o.config.Validate()
}

// executeRun runs the whole pipeline and prints the query result.
func (o *options) executeRun(ctx context.Context) error {
	log := logger.FromContext(ctx).WithName(loggerName)
	fetcher := fetch.New(o.config.FetchTimeout)

	reader := o.reader
	if reader == nil {
		reader = source.NewHTMLReader(fetcher, o.config.SourceURL, o.config.Selector)
	}

	runner := pipeline.New(pipeline.Options{
		Reader:     reader,
		NameLabel:  o.config.NameLabel,
		CapLabel:   o.config.CapLabel,
		TopN:       o.config.TopN,
		Rates:      pipeline.RatesFrom(fetcher, o.config.RatesPath),
		Schema:     o.config.Schema(),
		OutputPath: o.config.OutputPath,
		Store:      o.storeOpener(),
		TableName:  o.config.TableName,
		QueryLimit: o.config.QueryLimit,
		OrderBy:    o.config.OrderBy(),
		LogPath:    o.config.LogPath,
	})

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	log.Debug("run completed", "run", result.RunID, "rows", len(result.Rows))
	return o.print(result.Top)
}

// executeQuery runs the ranking query against the configured table and prints the result.
func (o *options) executeQuery(ctx context.Context) error {
	store, err := o.storeOpener()(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", database.ErrQueryFailed, err)
	}
	defer store.Close()

	rows, err := store.TopK(ctx, o.config.TableName, o.config.Schema(), o.config.QueryLimit, o.config.OrderBy())
	if err != nil {
		return err
	}

	return o.print(rows)
}

func (o *options) storeOpener() destination.StoreOpener {
	if o.store != nil {
		return o.store
	}
	return database.Opener(o.config.DBDriver, o.config.DBDSN)
}

func (o *options) print(rows []table.Row) error {
	rowWriter, err := writer.New(o.out, o.format)
	if err != nil {
		return err
	}

	return rowWriter.WriteRows(o.config.Schema(), rows)
}
