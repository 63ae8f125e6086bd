package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"communityhub/internal/logger"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// GormZapLogger 将 GORM 日志写入 zap，并带上请求上下文中的 request_id
type GormZapLogger struct {
	ZapLogger                 *zap.Logger
	LogLevel                  gormLogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormZapLogger) with(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.ZapLogger
	}
	if id := logger.GetRequestID(ctx); id != "" {
		return l.ZapLogger.With(zap.String("request_id", id))
	}
	return l.ZapLogger
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		l.with(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		l.with(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		l.with(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace SQL 执行日志；记录不存在不算错误
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	notFound := errors.Is(err, gormLogger.ErrRecordNotFound)

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error && (!notFound || !l.IgnoreRecordNotFoundError):
		sql, rows := fc()
		l.with(ctx).Error("SQL 执行错误",
			zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows), zap.Error(err))
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		sql, rows := fc()
		l.with(ctx).Warn("SQL 慢查询",
			zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	case l.LogLevel >= gormLogger.Info:
		sql, rows := fc()
		l.with(ctx).Debug("SQL 执行",
			zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	}
}
