package telemetry

import (
	"fmt"

	"github.com/harborchat/harbor/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetLoggers builds the main application logger and a quieter
// database logger from the debug configuration. The database logger sits
// one level above the main one so query traces only show up when
// explicitly requested.
func GetLoggers(cfg *config.Debug) (*zap.Logger, *zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	dbLevel := level
	if dbLevel < zapcore.InfoLevel {
		dbLevel = zapcore.InfoLevel
	}

	dbCfg := zapCfg
	dbCfg.Level = zap.NewAtomicLevelAt(dbLevel)

	dbLogger, err := dbCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build database logger: %w", err)
	}

	return logger, dbLogger.Named("database"), nil
}
