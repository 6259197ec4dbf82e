// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import "strconv"

// Stage is a state of a run.
type Stage int

const (
	StageIdle Stage = iota
	StageExtracting
	StageTransforming
	StageLoadingFile
	StageLoadingStore
	StageQuerying
	StageVerifying
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StageIdle:         "Idle",
	StageExtracting:   "Extracting",
	StageTransforming: "Transforming",
	StageLoadingFile:  "Loading(File)",
	StageLoadingStore: "Loading(Store)",
	StageQuerying:     "Querying",
	StageVerifying:    "Verifying",
	StageDone:         "Done",
	StageFailed:       "Failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Stage(" + strconv.Itoa(int(s)) + ")"
}
