// Package logsink forwards protocol log entries to zap.
package logsink

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

// ZapSink writes protocol log entries as structured zap records.
type ZapSink struct {
	logger *zap.Logger
}

var _ repositories.LogSink = (*ZapSink)(nil)

// NewZapSink creates a sink writing to logger under the "protocol" name.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger.Named("protocol")}
}

// Log implements repositories.LogSink
func (s *ZapSink) Log(entry entities.LogEntry) {
	ce := s.logger.Check(Level(entry.Severity), entry.Message)
	if ce == nil {
		return
	}
	ce.Write(
		zap.String("severity", string(entry.Severity)),
		zap.Time("timestamp", entry.Timestamp),
	)
}

// Level maps a severity tag onto a zap level.
func Level(severity entities.Severity) zapcore.Level {
	switch severity {
	case entities.SeverityError:
		return zapcore.ErrorLevel
	case entities.SeverityDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
