// Package exporter writes exported message logs to disk.
package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

// FileExporter writes each export as a text file in a directory.
type FileExporter struct {
	dir    string
	logger *zap.Logger
}

var _ repositories.LogExporter = (*FileExporter)(nil)

// NewFileExporter creates an exporter writing into dir.
func NewFileExporter(dir string, logger *zap.Logger) *FileExporter {
	return &FileExporter{dir: dir, logger: logger}
}

// Export implements repositories.LogExporter. The filename must not contain
// a directory component.
func (e *FileExporter) Export(ctx context.Context, filename, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filename == "" || filepath.Base(filename) != filename {
		return fmt.Errorf("invalid export filename %q", filename)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(e.dir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write log export: %w", err)
	}

	e.logger.Info("Message log exported", zap.String("path", path), zap.Int("bytes", len(content)))
	return nil
}
