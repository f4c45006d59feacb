package ports

import (
	"context"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
)

// PipelineRunner is the inbound contract for one sequential ingestion
// run over a source folder.
type PipelineRunner interface {
	Run(ctx context.Context, dir, platform string) (*domain.RunReport, error)
}
