package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dropushan1/Video-Agent/internal/core/domain"
	"github.com/dropushan1/Video-Agent/internal/core/ports"
)

// Router dispatches a media file to the extractor that can read it:
// audio/video to the transcriber, images to OCR, documents by extension.
// It satisfies ports.TextExtractor so the pipeline sees one collaborator.
type Router struct {
	transcriber ports.TextExtractor
	ocr         ports.TextExtractor
	documents   map[string]ports.TextExtractor
}

func NewRouter(transcriber, ocr, pdf, xlsx, plain ports.TextExtractor) *Router {
	return &Router{
		transcriber: transcriber,
		ocr:         ocr,
		documents: map[string]ports.TextExtractor{
			".pdf":  pdf,
			".xlsx": xlsx,
			".txt":  plain,
		},
	}
}

func (r *Router) Extract(ctx context.Context, path string) (string, error) {
	switch domain.FileTypeForPath(path) {
	case domain.FileTypeVideo, domain.FileTypeAudio:
		return r.transcriber.Extract(ctx, path)
	case domain.FileTypeImage:
		return r.ocr.Extract(ctx, path)
	case domain.FileTypeDocument:
		ext := strings.ToLower(filepath.Ext(path))
		if sub, ok := r.documents[ext]; ok && sub != nil {
			return sub.Extract(ctx, path)
		}
	}
	return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("unsupported file %q", filepath.Base(path)))
}
