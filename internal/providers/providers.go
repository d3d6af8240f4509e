package providers

import (
	"context"

	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/models"
)

// Names accepted by the remover.provider setting.
const (
	Backend       = "backend"
	BackgroundCut = "backgroundcut"
)

// Remover defines the interface for a background-removal provider. It returns
// one result per processed image; an error means nothing usable came back.
type Remover interface {
	RemoveBackground(ctx context.Context, token string, images []capture.ImageRef) ([]models.ProcessedResult, error)
}
