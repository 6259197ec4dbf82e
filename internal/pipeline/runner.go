// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mia-platform/bankcap/internal/destination"
	"github.com/mia-platform/bankcap/internal/destination/file"
	"github.com/mia-platform/bankcap/internal/extract"
	"github.com/mia-platform/bankcap/internal/fetch"
	"github.com/mia-platform/bankcap/internal/logger"
	"github.com/mia-platform/bankcap/internal/progress"
	"github.com/mia-platform/bankcap/internal/rates"
	"github.com/mia-platform/bankcap/internal/source"
	"github.com/mia-platform/bankcap/internal/table"
	"github.com/mia-platform/bankcap/internal/transform"
)

const (
	loggerName = "bankcap:pipeline"
)

// RateLoader returns the exchange rates used by the transformation.
type RateLoader func(ctx context.Context) (rates.RateMap, error)

// RatesFrom returns a RateLoader reading the table at locator.
func RatesFrom(fetcher *fetch.Fetcher, locator string) RateLoader {
	return func(ctx context.Context) (rates.RateMap, error) {
		return rates.LoadFrom(ctx, fetcher, locator)
	}
}

// Options holds the collaborators and the settings of a Runner.
type Options struct {
	Reader    source.Reader
	NameLabel string
	CapLabel  string
	TopN      int

	Rates  RateLoader
	Schema table.Schema

	OutputPath string
	Store      destination.StoreOpener
	TableName  string

	QueryLimit int
	OrderBy    string

	LogPath string
	// Clock timestamps the audit log. time.Now when nil.
	Clock func() time.Time
	// NewRunID identifies a run. A random UUID when nil.
	NewRunID func() string
}

// Result is the outcome of a successful run.
type Result struct {
	RunID     string
	Extracted extract.Result
	Rows      []table.Row
	Top       []table.Row
	Report    progress.Report
}

// Runner executes the stages of a run in sequence.
type Runner struct {
	options Options

	lock  sync.RWMutex
	state Stage
}

func New(options Options) *Runner {
	if options.Clock == nil {
		options.Clock = time.Now
	}
	if options.NewRunID == nil {
		options.NewRunID = uuid.NewString
	}

	return &Runner{
		options: options,
		state:   StageIdle,
	}
}

// State returns the stage the runner is in.
func (r *Runner) State() Stage {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.state
}

func (r *Runner) setState(stage Stage) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.state = stage
}

// Run executes a whole run. A failed stage is returned as a *StageError and leaves the runner
// in StageFailed. The output file and table are replaced only when every stage succeeds; the
// audit log is closed on every path.
func (r *Runner) Run(ctx context.Context) (result *Result, err error) {
	runID := r.options.NewRunID()
	ctx = logger.WithRunID(ctx, runID)
	log := logger.FromContext(ctx).WithName(loggerName)

	auditLog, err := progress.Open(ctx, r.options.LogPath, progress.WithClock(r.options.Clock))
	if err != nil {
		r.setState(StageFailed)
		return nil, fmt.Errorf("%w: %w", ErrLogUnavailable, err)
	}
	defer func() {
		if closeErr := auditLog.Close(); closeErr != nil && err == nil {
			r.setState(StageFailed)
			result = nil
			err = &StageError{Stage: StageVerifying, Kind: KindLogVerificationFailed, Err: closeErr}
		}
	}()

	log.Debug("run started", "logPath", r.options.LogPath)
	result = &Result{RunID: runID}

	err = r.stage(ctx, auditLog, StageExtracting, KindSourceUnavailable, func(ctx context.Context) ([]interface{}, error) {
		sourceTable, err := r.options.Reader.Read(ctx)
		if err != nil {
			return nil, err
		}

		result.Extracted, err = extract.FromTable(sourceTable, r.options.NameLabel, r.options.CapLabel, r.options.TopN)
		if err != nil {
			return nil, err
		}

		for _, dropped := range result.Extracted.Dropped {
			log.Debug("record dropped", "name", dropped.Name, "value", dropped.CapRaw)
		}

		return []interface{}{
			"rows", len(sourceTable.Rows),
			"dropped", len(result.Extracted.Dropped),
			"kept", len(result.Extracted.WorkingSet),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, auditLog, StageTransforming, KindRateTableMalformed, func(ctx context.Context) ([]interface{}, error) {
		rateMap, err := r.options.Rates(ctx)
		if err != nil {
			return nil, err
		}

		result.Rows, err = transform.Transform(result.Extracted.WorkingSet, rateMap, r.options.Schema)
		if err != nil {
			return nil, err
		}

		return []interface{}{
			"rows", len(result.Rows),
			"currencies", strings.Join(r.options.Schema.Currencies, ","),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	enriched := table.Table{Schema: r.options.Schema, Rows: result.Rows}
	var staged *file.Staged
	defer func() {
		if staged != nil {
			if discardErr := staged.Discard(); discardErr != nil {
				log.Warn("staged file not removed", "error", discardErr.Error())
			}
		}
	}()

	err = r.stage(ctx, auditLog, StageLoadingFile, KindSinkWriteFailed, func(context.Context) ([]interface{}, error) {
		var err error
		staged, err = file.Stage(enriched, r.options.OutputPath)
		if err != nil {
			return nil, err
		}

		return []interface{}{"path", staged.Path(), "rows", len(enriched.Rows)}, nil
	})
	if err != nil {
		return nil, err
	}

	var store destination.Store
	var pending destination.Pending
	defer func() {
		if pending != nil {
			if rollbackErr := pending.Rollback(); rollbackErr != nil {
				log.Warn("pending table not rolled back", "error", rollbackErr.Error())
			}
		}
		if store != nil {
			closeStore(log, store)
		}
	}()

	err = r.stage(ctx, auditLog, StageLoadingStore, KindStoreWriteFailed, func(ctx context.Context) ([]interface{}, error) {
		opened, err := r.options.Store(ctx)
		if err != nil {
			return nil, err
		}
		store = opened

		pending, err = store.Begin(ctx, r.options.TableName, enriched)
		if err != nil {
			return nil, err
		}

		return []interface{}{"table", r.options.TableName, "rows", len(enriched.Rows)}, nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, auditLog, StageQuerying, KindQueryFailed, func(ctx context.Context) ([]interface{}, error) {
		var err error
		result.Top, err = pending.TopK(ctx, r.options.Schema, r.options.QueryLimit, r.options.OrderBy)
		if err != nil {
			return nil, err
		}

		return []interface{}{
			"orderBy", r.options.OrderBy,
			"rows", len(result.Top),
			"top", summarize(r.options.Schema, result.Top, r.options.OrderBy),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	// the new file and table become visible only once the log of this run reads back
	err = r.stage(ctx, auditLog, StageVerifying, KindLogVerificationFailed, func(context.Context) ([]interface{}, error) {
		var err error
		result.Report, err = progress.Verify(r.options.LogPath, runID)
		if err != nil {
			return nil, err
		}
		log.Debug("audit log content", "content", result.Report.Content)

		if err := pending.Commit(staged.Publish); err != nil {
			return nil, err
		}

		return []interface{}{
			"lines", result.Report.Lines,
			"runLines", result.Report.RunLines,
			"published", r.options.OutputPath,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	r.setState(StageDone)
	auditLog.Event(StageDone.String())
	return result, nil
}

// stage logs the entry of stage, runs fn and logs its completion with the facts fn returns,
// or its failure.
func (r *Runner) stage(ctx context.Context, auditLog *progress.Log, stage Stage, fallback Kind, fn func(context.Context) ([]interface{}, error)) error {
	r.setState(stage)
	auditLog.Event(stage.String() + " started")

	facts, err := fn(ctx)
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		kind := kindOf(err, fallback)
		auditLog.Failure(stage.String(), string(kind), err)
		r.setState(StageFailed)
		return &StageError{Stage: stage, Kind: kind, Err: err}
	}

	auditLog.Event(stage.String()+" completed", facts...)
	return nil
}

// summarize renders rows as name=value pairs, value being the orderBy column.
func summarize(schema table.Schema, rows []table.Row, orderBy string) string {
	pairs := make([]string, 0, len(rows))
	for _, row := range rows {
		value, _ := schema.Value(row, orderBy)
		pairs = append(pairs, row.Name+"="+table.FormatNumber(value))
	}

	return strings.Join(pairs, ", ")
}

func closeStore(log logger.Logger, store destination.Store) {
	if err := store.Close(); err != nil {
		log.Warn("store not closed", "error", err.Error())
	}
}
