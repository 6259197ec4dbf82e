// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mia-platform/bankcap/internal/logger"
)

const loggerName = "bankcap:database"

var _ gormlogger.Interface = gormLogger{}

// gormLogger forwards gorm messages to the logger found in the statement context.
type gormLogger struct{}

func newGormLogger() gormlogger.Interface {
	return gormLogger{}
}

func (l gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	logger.FromContext(ctx).WithName(loggerName).Debug(fmt.Sprintf(msg, args...))
}

func (gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	logger.FromContext(ctx).WithName(loggerName).Warn(fmt.Sprintf(msg, args...))
}

func (gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	logger.FromContext(ctx).WithName(loggerName).Error(fmt.Sprintf(msg, args...))
}

func (gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	sql, rows := fc()
	elapsed := time.Since(begin)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debug("statement failed", "sql", sql, "elapsed", elapsed.String(), "error", err.Error())
		return
	}

	log.Trace("statement executed", "sql", sql, "rows", rows, "elapsed", elapsed.String())
}
