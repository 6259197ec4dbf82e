// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/bankcap/internal/destination/database"
	fakedestination "github.com/mia-platform/bankcap/internal/destination/fake"
	"github.com/mia-platform/bankcap/internal/destination/file"
	"github.com/mia-platform/bankcap/internal/extract"
	"github.com/mia-platform/bankcap/internal/rates"
	"github.com/mia-platform/bankcap/internal/source"
	fakesource "github.com/mia-platform/bankcap/internal/source/fake"
	"github.com/mia-platform/bankcap/internal/table"
)

var testTime = time.Date(2026, time.October, 19, 10, 30, 0, 0, time.UTC)

func staticRates(rateMap rates.RateMap) RateLoader {
	return func(context.Context) (rates.RateMap, error) {
		return rateMap, nil
	}
}

func testOptions(t *testing.T, dir string) Options {
	t.Helper()

	return Options{
		Reader:     fakesource.NewFakeReader(t, fakesource.BanksTable([2]string{"A", "100"}, [2]string{"B", "bad"}, [2]string{"C", "50"}, [2]string{"D", "200"})),
		NameLabel:  extract.DefaultNameLabel,
		CapLabel:   extract.DefaultCapLabel,
		TopN:       extract.DefaultTopN,
		Rates:      staticRates(rates.RateMap{"GBP": 0.8, "EUR": 0.9, "INR": 82.95}),
		Schema:     table.DefaultSchema(),
		OutputPath: filepath.Join(dir, "Largest_banks_data.csv"),
		Store:      database.Opener(database.DriverSQLite, filepath.Join(dir, "Banks.db")),
		TableName:  database.DefaultTable,
		QueryLimit: 2,
		OrderBy:    "MC_USD_Billion",
		LogPath:    filepath.Join(dir, "code_log.txt"),
		Clock:      func() time.Time { return testTime },
		NewRunID:   func() string { return "run-1" },
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

func TestRunSucceeds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	options := testOptions(t, dir)
	runner := New(options)
	assert.Equal(t, StageIdle, runner.State())

	result, err := runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, StageDone, runner.State())

	expectedRows := []table.Row{
		{Name: "D", MarketCapBase: 200, Values: []float64{160, 180, 16590}},
		{Name: "A", MarketCapBase: 100, Values: []float64{80, 90, 8295}},
		{Name: "C", MarketCapBase: 50, Values: []float64{40, 45, 4147.5}},
	}
	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 3, result.Extracted.Valid)
	assert.Len(t, result.Extracted.Dropped, 1)
	assert.Equal(t, expectedRows, result.Rows)
	assert.Equal(t, expectedRows[:2], result.Top)
	assert.Equal(t, 11, result.Report.Lines)
	assert.Equal(t, 11, result.Report.RunLines)

	written, err := file.Read(options.OutputPath, table.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, expectedRows, written.Rows)

	store, err := database.Open(database.DriverSQLite, filepath.Join(dir, "Banks.db"))
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.TopK(t.Context(), database.DefaultTable, table.DefaultSchema(), 10, "MC_USD_Billion")
	require.NoError(t, err)
	assert.Equal(t, expectedRows, stored)

	lines := readLines(t, options.LogPath)
	require.Len(t, lines, 13)
	expectedEvents := []string{
		"Extracting started", "Extracting completed",
		"Transforming started", "Transforming completed",
		"Loading(File) started", "Loading(File) completed",
		"Loading(Store) started", "Loading(Store) completed",
		"Querying started", "Querying completed",
		"Verifying started", "Verifying completed",
		"Done",
	}
	for i, line := range lines {
		assert.True(t, strings.HasPrefix(line, "2026-Oct-19-10:30:00 [INFO]"), line)
		assert.Contains(t, line, expectedEvents[i])
		assert.Contains(t, line, "run=run-1")
	}
	assert.Contains(t, lines[1], "dropped=1")
	assert.Contains(t, lines[1], "kept=3")
	assert.Contains(t, lines[9], "D=200")
	assert.Contains(t, lines[9], "A=100")
	assert.Contains(t, lines[11], "published=")
}

func TestRunReplacesOutputsAndAppendsLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	options := testOptions(t, dir)
	_, err := New(options).Run(t.Context())
	require.NoError(t, err)

	options.Reader = fakesource.NewFakeReader(t, fakesource.BanksTable([2]string{"E", "10"}))
	options.NewRunID = func() string { return "run-2" }
	result, err := New(options).Run(t.Context())
	require.NoError(t, err)

	expectedRows := []table.Row{{Name: "E", MarketCapBase: 10, Values: []float64{8, 9, 829.5}}}
	assert.Equal(t, expectedRows, result.Top)

	written, err := file.Read(options.OutputPath, table.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, expectedRows, written.Rows)

	assert.Len(t, readLines(t, options.LogPath), 26)
	assert.Equal(t, 24, result.Report.Lines)
	assert.Equal(t, 11, result.Report.RunLines)
}

func TestRunFailures(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		modify        func(t *testing.T, options *Options)
		expectedStage Stage
		expectedKind  Kind
		expectedErr   error
		fileWritten   bool
	}{
		"source unavailable": {
			modify: func(t *testing.T, options *Options) {
				options.Reader = fakesource.NewFakeReaderWithError(t, fmt.Errorf("%w: timeout", source.ErrSourceUnavailable))
			},
			expectedStage: StageExtracting,
			expectedKind:  KindSourceUnavailable,
			expectedErr:   source.ErrSourceUnavailable,
		},
		"structure not found": {
			modify: func(_ *testing.T, options *Options) {
				options.CapLabel = "Market value"
			},
			expectedStage: StageExtracting,
			expectedKind:  KindStructureNotFound,
			expectedErr:   source.ErrStructureNotFound,
		},
		"malformed rate table": {
			modify: func(_ *testing.T, options *Options) {
				options.Rates = func(context.Context) (rates.RateMap, error) {
					return rates.Load(strings.NewReader("Currency,Rate\nGBP,x\n"))
				}
			},
			expectedStage: StageTransforming,
			expectedKind:  KindRateTableMalformed,
			expectedErr:   rates.ErrMalformed,
		},
		"missing currency": {
			modify: func(_ *testing.T, options *Options) {
				options.Rates = staticRates(rates.RateMap{"GBP": 0.8, "EUR": 0.9})
			},
			expectedStage: StageTransforming,
			expectedKind:  KindUnknownCurrency,
			expectedErr:   rates.ErrUnknownCurrency,
		},
		"output directory missing": {
			modify: func(_ *testing.T, options *Options) {
				options.OutputPath = filepath.Join(filepath.Dir(options.OutputPath), "missing", "out.csv")
			},
			expectedStage: StageLoadingFile,
			expectedKind:  KindSinkWriteFailed,
			expectedErr:   file.ErrWriteFailed,
		},
		"store cannot be opened": {
			modify: func(t *testing.T, options *Options) {
				fakeStore := fakedestination.NewFakeStore(t)
				fakeStore.OpenErr = errors.New("connection refused")
				options.Store = fakeStore.Opener()
			},
			expectedStage: StageLoadingStore,
			expectedKind:  KindStoreWriteFailed,
		},
		"store write fails": {
			modify: func(t *testing.T, options *Options) {
				fakeStore := fakedestination.NewFakeStore(t)
				fakeStore.ReplaceErr = fmt.Errorf("%w: disk full", database.ErrWriteFailed)
				options.Store = fakeStore.Opener()
			},
			expectedStage: StageLoadingStore,
			expectedKind:  KindStoreWriteFailed,
			expectedErr:   database.ErrWriteFailed,
		},
		"query fails after load": {
			modify: func(t *testing.T, options *Options) {
				fakeStore := fakedestination.NewFakeStore(t)
				fakeStore.QueryErr = fmt.Errorf("%w: locked", database.ErrQueryFailed)
				options.Store = fakeStore.Opener()
			},
			expectedStage: StageQuerying,
			expectedKind:  KindQueryFailed,
			expectedErr:   database.ErrQueryFailed,
		},
		"query ordered by a text column": {
			modify: func(_ *testing.T, options *Options) {
				options.OrderBy = "Name"
			},
			expectedStage: StageQuerying,
			expectedKind:  KindQueryFailed,
			expectedErr:   database.ErrQueryFailed,
		},
		"commit fails after verification": {
			modify: func(t *testing.T, options *Options) {
				fakeStore := fakedestination.NewFakeStore(t)
				fakeStore.CommitErr = fmt.Errorf("%w: commit refused", database.ErrWriteFailed)
				options.Store = fakeStore.Opener()
			},
			expectedStage: StageVerifying,
			expectedKind:  KindStoreWriteFailed,
			expectedErr:   database.ErrWriteFailed,
			fileWritten:   true,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			options := testOptions(t, dir)
			test.modify(t, &options)
			runner := New(options)

			result, err := runner.Run(t.Context())
			assert.Nil(t, result)
			require.Error(t, err)
			assert.Equal(t, StageFailed, runner.State())

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, test.expectedStage, stageErr.Stage)
			assert.Equal(t, test.expectedKind, stageErr.Kind)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
			}

			_, statErr := os.Stat(options.OutputPath)
			if test.fileWritten {
				assert.NoError(t, statErr)
			} else {
				assert.ErrorIs(t, statErr, os.ErrNotExist)
			}

			store, openErr := database.Open(database.DriverSQLite, filepath.Join(dir, "Banks.db"))
			require.NoError(t, openErr)
			defer store.Close()
			_, queryErr := store.TopK(t.Context(), database.DefaultTable, table.DefaultSchema(), 1, "MC_USD_Billion")
			assert.ErrorIs(t, queryErr, database.ErrQueryFailed)

			entries, readErr := os.ReadDir(dir)
			require.NoError(t, readErr)
			for _, entry := range entries {
				assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), entry.Name())
			}

			lines := readLines(t, options.LogPath)
			last := lines[len(lines)-1]
			assert.Contains(t, last, "[ERROR]")
			assert.Contains(t, last, "run=run-1")
			assert.Regexp(t, `stage="?`+regexp.QuoteMeta(test.expectedStage.String())+`"? `, last)
			assert.Contains(t, last, "kind="+string(test.expectedKind))
		})
	}
}

func TestRunKeepsPreviousOutputsOnStoreFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	options := testOptions(t, dir)
	_, err := New(options).Run(t.Context())
	require.NoError(t, err)
	previous, err := os.ReadFile(options.OutputPath)
	require.NoError(t, err)

	fakeStore := fakedestination.NewFakeStore(t)
	fakeStore.ReplaceErr = fmt.Errorf("%w: disk full", database.ErrWriteFailed)
	options.Store = fakeStore.Opener()
	options.Reader = fakesource.NewFakeReader(t, fakesource.BanksTable([2]string{"E", "10"}))

	_, err = New(options).Run(t.Context())
	assert.ErrorIs(t, err, database.ErrWriteFailed)
	assert.Equal(t, 1, fakeStore.Closed)

	current, err := os.ReadFile(options.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, string(previous), string(current))
}

func TestRunKeepsPreviousOutputsOnQueryFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	options := testOptions(t, dir)
	first, err := New(options).Run(t.Context())
	require.NoError(t, err)
	previous, err := os.ReadFile(options.OutputPath)
	require.NoError(t, err)

	options.Reader = fakesource.NewFakeReader(t, fakesource.BanksTable([2]string{"E", "10"}))
	options.OrderBy = table.DefaultNameColumn
	options.NewRunID = func() string { return "run-2" }
	_, err = New(options).Run(t.Context())
	assert.ErrorIs(t, err, database.ErrQueryFailed)

	current, err := os.ReadFile(options.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, string(previous), string(current))

	store, err := database.Open(database.DriverSQLite, filepath.Join(dir, "Banks.db"))
	require.NoError(t, err)
	defer store.Close()
	stored, err := store.TopK(t.Context(), database.DefaultTable, table.DefaultSchema(), 10, "MC_USD_Billion")
	require.NoError(t, err)
	assert.Equal(t, first.Rows, stored)
}

func TestRunRollsBackPendingTable(t *testing.T) {
	t.Parallel()

	options := testOptions(t, t.TempDir())
	fakeStore := fakedestination.NewFakeStore(t)
	fakeStore.QueryErr = fmt.Errorf("%w: locked", database.ErrQueryFailed)
	options.Store = fakeStore.Opener()

	_, err := New(options).Run(t.Context())
	assert.ErrorIs(t, err, database.ErrQueryFailed)
	assert.Empty(t, fakeStore.Tables)
	assert.Equal(t, 1, fakeStore.Opened)
	assert.Equal(t, 1, fakeStore.Closed)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	options := testOptions(t, t.TempDir())
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := New(options).Run(ctx)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageExtracting, stageErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunLogUnavailable(t *testing.T) {
	t.Parallel()

	options := testOptions(t, t.TempDir())
	options.LogPath = filepath.Join(options.LogPath, "missing", "code_log.txt")
	runner := New(options)

	_, err := runner.Run(t.Context())
	assert.ErrorIs(t, err, ErrLogUnavailable)
	assert.Equal(t, StageFailed, runner.State())
	assert.Equal(t, 0, options.Reader.(*fakesource.FakeReader).Calls)
}

func TestStageString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Loading(File)", StageLoadingFile.String())
	assert.Equal(t, "Stage(42)", Stage(42).String())
}
