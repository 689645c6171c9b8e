package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
	"github.com/donmikel/mediagate/applications/mediagate/interfaces"
)

const recordingTimeLayout = "20060102T150405Z"

// ownedStream guarantees a stream is released at most once.
type ownedStream struct {
	interfaces.Stream
	once sync.Once
	err  error
}

func (o *ownedStream) release() error {
	o.once.Do(func() {
		o.err = o.Stream.Release()
	})
	return o.err
}

// Session drives one capture device through idle, requesting, active and finalizing.
//
// The device stream is the only resource a session owns. It is released exactly once: by Stop,
// by Cancel, or by Start itself when the attempt fails or was cancelled while requesting.
type Session struct {
	device interfaces.Device
	logger log.Logger
	now    func() time.Time

	mu            sync.Mutex
	state         domain.CaptureState
	attempt       uint64
	cancelRequest context.CancelFunc
	constraints   domain.Constraints
	stream        *ownedStream
	chunks        [][]byte
}

func NewSession(device interfaces.Device, logger log.Logger) *Session {
	return &Session{
		device: device,
		logger: logger,
		now:    time.Now,
		state:  domain.CaptureIdle,
	}
}

func (s *Session) State() domain.CaptureState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Start asks the device for a stream and blocks until it is granted, refused, cancelled or
// ctx ends. A refused attempt leaves the session denied; Start may be called again to retry.
func (s *Session) Start(ctx context.Context, wantsVideo bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != domain.CaptureIdle && s.state != domain.CaptureDenied {
		s.mu.Unlock()
		return domain.ErrCaptureBusy
	}
	s.attempt++
	attempt := s.attempt
	constraints := domain.Constraints{Audio: true, Video: wantsVideo}
	s.state = domain.CaptureRequesting
	s.cancelRequest = cancel
	s.constraints = constraints
	s.chunks = nil
	s.mu.Unlock()

	level.Debug(s.logger).Log("msg", "requesting capture stream",
		"audio", constraints.Audio,
		"video", constraints.Video,
	)

	raw, err := s.device.RequestStream(ctx, constraints)
	var stream *ownedStream
	if raw != nil {
		stream = &ownedStream{Stream: raw}
	}

	s.mu.Lock()
	if s.attempt != attempt {
		// cancelled while requesting
		s.mu.Unlock()
		s.releaseQuietly(stream)
		return &domain.CaptureError{Reason: domain.ReasonCancelled, Err: ctx.Err()}
	}
	s.cancelRequest = nil

	if err != nil {
		s.state = domain.CaptureDenied
		s.mu.Unlock()
		s.releaseQuietly(stream)

		captureErr := &domain.CaptureError{Reason: domain.ReasonDeviceUnavailable, Err: err}
		if errors.Is(err, domain.ErrPermissionDenied) {
			captureErr.Reason = domain.ReasonPermissionDenied
		}

		level.Info(s.logger).Log("msg", "capture stream refused",
			"reason", captureErr.Reason,
			"err", err,
		)

		return captureErr
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		s.state = domain.CaptureIdle
		s.attempt++
		s.mu.Unlock()
		s.releaseQuietly(stream)
		return &domain.CaptureError{Reason: domain.ReasonCancelled, Err: ctxErr}
	}

	s.state = domain.CaptureActive
	s.stream = stream
	s.mu.Unlock()

	stream.OnChunk(s.chunkHandler(attempt))

	s.mu.Lock()
	cancelled := s.attempt != attempt
	s.mu.Unlock()
	if cancelled {
		// Cancel already took and released the stream
		return &domain.CaptureError{Reason: domain.ReasonCancelled}
	}

	level.Info(s.logger).Log("msg", "capture started",
		"video", constraints.Video,
		"content_type", stream.ContentType(),
	)

	return nil
}

func (s *Session) chunkHandler(attempt uint64) func([]byte) {
	return func(chunk []byte) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.attempt != attempt || s.state != domain.CaptureActive {
			return
		}

		c := make([]byte, len(chunk))
		copy(c, chunk)
		s.chunks = append(s.chunks, c)
	}
}

// Stop finalizes the active capture into a MediaAsset. It fails with domain.ErrNotRecording
// unless the session is active.
func (s *Session) Stop() (domain.MediaAsset, error) {
	s.mu.Lock()
	if s.state != domain.CaptureActive {
		s.mu.Unlock()
		return domain.MediaAsset{}, domain.ErrNotRecording
	}
	s.state = domain.CaptureFinalizing
	stream := s.stream
	chunks := s.chunks
	constraints := s.constraints
	s.stream = nil
	s.chunks = nil
	s.mu.Unlock()

	payload := bytes.Join(chunks, nil)

	contentType := stream.ContentType()
	if contentType == "" {
		contentType = constraints.DefaultContentType()
	}

	if err := stream.release(); err != nil {
		level.Error(s.logger).Log("msg", "can't release capture stream", "err", err)
	}

	createdAt := s.now().UTC()
	name := fmt.Sprintf("recording-%s%s", createdAt.Format(recordingTimeLayout), domain.ExtensionForType(contentType))
	asset := domain.NewMediaAsset(domain.SourceRecording, name, contentType, payload, createdAt)

	s.mu.Lock()
	s.state = domain.CaptureIdle
	s.mu.Unlock()

	level.Info(s.logger).Log("msg", "capture finalized",
		"name", asset.Name,
		"chunks", len(chunks),
		"size", humanize.Bytes(uint64(asset.Size)),
	)

	return asset, nil
}

// Cancel abandons a requesting or active capture and releases the device. Accumulated chunks
// are discarded. It is a no-op in any other state.
func (s *Session) Cancel() error {
	s.mu.Lock()
	switch s.state {
	case domain.CaptureRequesting:
		s.attempt++
		s.state = domain.CaptureIdle
		cancelRequest := s.cancelRequest
		s.cancelRequest = nil
		s.mu.Unlock()

		if cancelRequest != nil {
			cancelRequest()
		}
		level.Info(s.logger).Log("msg", "capture request abandoned")
		return nil
	case domain.CaptureActive:
		s.attempt++
		stream := s.stream
		dropped := len(s.chunks)
		s.stream = nil
		s.chunks = nil
		s.state = domain.CaptureIdle
		s.mu.Unlock()

		level.Info(s.logger).Log("msg", "capture abandoned", "dropped_chunks", dropped)

		if err := stream.release(); err != nil {
			return fmt.Errorf("can't release capture stream: %w", err)
		}
		return nil
	default:
		s.mu.Unlock()
		return nil
	}
}

func (s *Session) releaseQuietly(stream *ownedStream) {
	if stream == nil {
		return
	}
	if err := stream.release(); err != nil {
		level.Error(s.logger).Log("msg", "can't release capture stream", "err", err)
	}
}
