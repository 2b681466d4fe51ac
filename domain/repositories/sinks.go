package repositories

import (
	"context"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// LogSink accepts protocol log entries.
type LogSink interface {
	Log(entry entities.LogEntry)
}

// LogExporter persists an exported message log.
type LogExporter interface {
	Export(ctx context.Context, filename, content string) error
}

// LogHistory lists archived exports, newest first.
type LogHistory interface {
	Recent(ctx context.Context, limit int64) ([]entities.LogExport, error)
}

// AudioFormat describes decoded PCM audio.
type AudioFormat struct {
	SampleRate  int
	Channels    int
	SampleWidth int
}

// AudioSink plays or stores decoded response audio and returns where it went.
type AudioSink interface {
	Play(ctx context.Context, audio []byte, format AudioFormat) (string, error)
}
