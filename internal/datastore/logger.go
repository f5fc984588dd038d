package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
)

// GormLogger routes GORM logging into the module logger
type GormLogger struct {
	log           logger.Logger
	SlowThreshold time.Duration
	LogLevel      gormlogger.LogLevel
}

// NewGormLogger returns a GORM logger writing to l
func NewGormLogger(l logger.Logger, slowThreshold time.Duration, level gormlogger.LogLevel) *GormLogger {
	return &GormLogger{log: l, SlowThreshold: slowThreshold, LogLevel: level}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.LogLevel >= gormlogger.Error {
		l.log.Error("gorm error", logger.String("msg", fmt.Sprintf(msg, data...)))
	}
}

// Trace implements gormlogger.Interface
func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= gormlogger.Error:
		sql, rows := fc()
		l.log.Error("database query failed",
			logger.Error(err),
			logger.String("sql", sql),
			logger.Duration("duration", elapsed),
			logger.Int64("rows_affected", rows))
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query detected",
			logger.String("sql", sql),
			logger.Duration("duration", elapsed),
			logger.Duration("threshold", l.SlowThreshold),
			logger.Int64("rows_affected", rows))
	case l.LogLevel >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("query executed",
			logger.String("sql", sql),
			logger.Duration("duration", elapsed),
			logger.Int64("rows_affected", rows))
	}
}
