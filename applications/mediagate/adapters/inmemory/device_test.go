package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
)

func TestDeviceGrantsAndEmits(t *testing.T) {
	device := NewDevice("", log.NewNopLogger())

	s, err := device.RequestStream(context.Background(), domain.Constraints{Audio: true, Video: true})
	require.NoError(t, err)
	assert.Equal(t, "video/webm", s.ContentType())

	var got [][]byte
	s.OnChunk(func(chunk []byte) { got = append(got, chunk) })

	stream := device.Last()
	stream.Emit([]byte("1"))
	stream.Emit([]byte("2"))
	require.NoError(t, s.Release())
	stream.Emit([]byte("3"))

	assert.Equal(t, [][]byte{[]byte("1"), []byte("2")}, got)
	assert.Equal(t, 1, stream.Releases())
}

func TestDeviceFailure(t *testing.T) {
	device := NewDevice("audio/ogg", log.NewNopLogger())
	device.Fail(domain.ErrPermissionDenied)

	s, err := device.RequestStream(context.Background(), domain.Constraints{Audio: true})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
	assert.Nil(t, s)
	assert.Nil(t, device.Last())
}

func TestDeviceHoldHonoursContext(t *testing.T) {
	device := NewDevice("", log.NewNopLogger())
	resume := device.Hold()
	defer resume()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := device.RequestStream(ctx, domain.Constraints{Audio: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
