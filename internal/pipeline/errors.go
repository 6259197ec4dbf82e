// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"errors"
	"fmt"

	"github.com/mia-platform/bankcap/internal/destination/database"
	"github.com/mia-platform/bankcap/internal/destination/file"
	"github.com/mia-platform/bankcap/internal/progress"
	"github.com/mia-platform/bankcap/internal/rates"
	"github.com/mia-platform/bankcap/internal/source"
)

// ErrLogUnavailable reports an audit log that cannot be opened; no stage is run.
var ErrLogUnavailable = errors.New("progress log unavailable")

// Kind classifies the cause of a failed stage.
type Kind string

const (
	KindSourceUnavailable     Kind = "SourceUnavailable"
	KindStructureNotFound     Kind = "StructureNotFound"
	KindRateTableMalformed    Kind = "RateTableMalformed"
	KindUnknownCurrency       Kind = "UnknownCurrency"
	KindSinkWriteFailed       Kind = "SinkWriteFailed"
	KindStoreWriteFailed      Kind = "StoreWriteFailed"
	KindQueryFailed           Kind = "QueryFailed"
	KindLogVerificationFailed Kind = "LogVerificationFailed"
)

// kinds is checked in order, the first sentinel found in the chain wins.
var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{source.ErrSourceUnavailable, KindSourceUnavailable},
	{source.ErrStructureNotFound, KindStructureNotFound},
	{rates.ErrMalformed, KindRateTableMalformed},
	{rates.ErrUnknownCurrency, KindUnknownCurrency},
	{file.ErrWriteFailed, KindSinkWriteFailed},
	{database.ErrWriteFailed, KindStoreWriteFailed},
	{database.ErrQueryFailed, KindQueryFailed},
	{progress.ErrVerificationFailed, KindLogVerificationFailed},
}

func kindOf(err error, fallback Kind) Kind {
	for _, candidate := range kinds {
		if errors.Is(err, candidate.sentinel) {
			return candidate.kind
		}
	}

	return fallback
}

// StageError reports the stage where a run failed and why.
type StageError struct {
	Stage Stage
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed with %s: %s", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
