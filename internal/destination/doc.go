// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package destination defines the contracts shared by the load targets of bankcap.
// Every target receives the same table.Table and replaces what a previous run left behind.
package destination
