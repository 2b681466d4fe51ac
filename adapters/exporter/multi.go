package exporter

import (
	"context"

	"go.uber.org/multierr"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

// Multi hands every export to each exporter in order. All exporters run even
// when one fails; the failures are combined.
type Multi []repositories.LogExporter

var _ repositories.LogExporter = Multi(nil)

// Export implements repositories.LogExporter.
func (m Multi) Export(ctx context.Context, filename, content string) error {
	var err error
	for _, e := range m {
		err = multierr.Append(err, e.Export(ctx, filename, content))
	}
	return err
}
