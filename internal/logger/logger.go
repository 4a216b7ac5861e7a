package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger and installs it as the zap global. Production gets JSON on
// stdout; every other env gets the development console encoder.
func New(env, service string) (*zap.Logger, error) {
	log, err := zap.NewDevelopment()
	if env == "production" {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.LevelKey = "severity"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		log, err = cfg.Build()
	}
	if err != nil {
		return nil, err
	}

	log = log.With(zap.String("env", env), zap.String("service_name", service))
	zap.ReplaceGlobals(log)
	return log, nil
}
