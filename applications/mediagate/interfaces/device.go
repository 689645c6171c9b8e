package interfaces

import (
	"context"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

// Device grants access to a microphone and, optionally, a camera.
type Device interface {
	// RequestStream blocks until the user grants or denies access. Implementations return
	// domain.ErrPermissionDenied or domain.ErrDeviceUnavailable on failure.
	RequestStream(ctx context.Context, constraints domain.Constraints) (Stream, error)
}

// Stream is an acquired capture stream.
type Stream interface {
	// ContentType is the negotiated container type, e.g. "audio/webm". May be empty.
	ContentType() string
	// OnChunk registers the handler that receives recorded data in arrival order.
	OnChunk(fn func(chunk []byte))
	// Release stops every track of the stream.
	Release() error
}
