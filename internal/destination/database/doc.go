// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package database persists the enriched table in a relational store through gorm and runs
// the ranking query against it. SQLite and PostgreSQL are supported.
package database
