package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parcelpeer/authcore/internal/config"
)

// NewLogger builds the service logger from the loaded environment.
// An unparseable level falls back to info rather than failing startup.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level := new(zapcore.Level)
	if err := level.Set(cfg.LogLevel); err != nil {
		*level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(*level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zcfg.Build(
		zap.Fields(
			zap.String("service", cfg.AppName),
			zap.String("env", string(cfg.Env)),
		),
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}
