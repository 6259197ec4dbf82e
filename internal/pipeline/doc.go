// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pipeline runs the bank market capitalization ETL.
// A run goes through extraction, transformation, the two load targets, the ranking query and
// the verification of the audit log, strictly in this order. The first failure stops the run.
package pipeline
