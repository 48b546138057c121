package internal

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/config"
)

// NewLogger builds the process logger from the logging config. Console
// output goes to stderr so command output on stdout stays clean.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if !cfg.JSON {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	return zapCfg.Build()
}
