package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// QueryObserver receives the statement verb, duration and outcome of every query
type QueryObserver func(operation string, elapsed time.Duration, err error)

// GormLoggerAdapter routes GORM's logging into a Logger.
// Statements are logged at TRACE, slow statements and failures at WARN.
type GormLoggerAdapter struct {
	logger        Logger
	slowThreshold time.Duration
	observer      QueryObserver
}

// NewGormLoggerAdapter creates the adapter. A zero slowThreshold disables slow query warnings.
func NewGormLoggerAdapter(l Logger, slowThreshold time.Duration, observer QueryObserver) *GormLoggerAdapter {
	if l == nil {
		l = NewNop()
	}
	return &GormLoggerAdapter{logger: l, slowThreshold: slowThreshold, observer: observer}
}

// LogMode is a no-op; levels come from the logging configuration.
func (a *GormLoggerAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

func (a *GormLoggerAdapter) Info(_ context.Context, msg string, data ...any) {
	a.logger.Debug(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Warn(_ context.Context, msg string, data ...any) {
	a.logger.Warn(fmt.Sprintf(msg, data...))
}

func (a *GormLoggerAdapter) Error(_ context.Context, msg string, data ...any) {
	a.logger.Error(fmt.Sprintf(msg, data...))
}

// Trace is called by GORM after every statement
func (a *GormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	op := statementVerb(sql)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = nil
	}
	if a.observer != nil {
		a.observer(op, elapsed, err)
	}

	log := a.logger.WithContext(ctx)
	switch {
	case err != nil:
		log.Warn("query failed",
			String("operation", op),
			String("sql", sql),
			Int64("rows_affected", rows),
			Int64("duration_ms", elapsed.Milliseconds()),
			Error(err))
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow query",
			String("operation", op),
			String("sql", sql),
			Int64("rows_affected", rows),
			Duration("threshold", a.slowThreshold),
			Int64("duration_ms", elapsed.Milliseconds()))
	default:
		log.Trace("sql query",
			String("sql", sql),
			Int64("rows_affected", rows),
			Int64("duration_ms", elapsed.Milliseconds()))
	}
}

// statementVerb returns the lower-cased first keyword of a SQL statement
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
