package interfaces

import (
	"context"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

// MediaStore holds the media currently shown by the results view.
type MediaStore interface {
	PutUploaded(ctx context.Context, asset domain.MediaAsset) error
	PutRecorded(ctx context.Context, asset domain.MediaAsset) error
	Get(ctx context.Context) (domain.Results, error)
	Clear(ctx context.Context) error
}
