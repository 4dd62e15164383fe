package observability

import (
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger собирает JSON логгер; service попадает в каждую запись,
// чтобы в общем потоке логов различать booking/flight/payment.
func InitLogger(level, service string) *zap.SugaredLogger {
	logConfig := zap.NewProductionConfig()
	logConfig.Sampling = nil
	logConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	logConfig.DisableStacktrace = true

	logConfig.Level = zap.NewAtomicLevelAt(DetermineLogLevel(level))
	if service != "" {
		logConfig.InitialFields = map[string]interface{}{"service": service}
	}

	logger, err := logConfig.Build()
	if err != nil {
		log.Fatal(err)
	}

	return logger.Sugar()
}

func DetermineLogLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
