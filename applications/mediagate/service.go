package mediagate

import (
	"context"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

type MediaService interface {
	Upload(ctx context.Context, candidate *domain.FileCandidate) (domain.MediaAsset, error)
	StartCapture(ctx context.Context, wantsVideo bool) error
	StopCapture(ctx context.Context) (domain.MediaAsset, error)
	CancelCapture(ctx context.Context) error
	CaptureState(ctx context.Context) domain.CaptureState
	Results(ctx context.Context) (domain.Results, error)
	ClearResults(ctx context.Context) error
}
