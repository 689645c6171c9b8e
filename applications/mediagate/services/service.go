package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediagate/applications/mediagate"
	"github.com/donmikel/mediagate/applications/mediagate/domain"
	"github.com/donmikel/mediagate/applications/mediagate/interfaces"
)

const defaultRequestTimeout = 30 * time.Second

type service struct {
	gate           *Gate
	session        *Session
	store          interfaces.MediaStore
	requestTimeout time.Duration
	logger         log.Logger
}

type Option func(*service)

// WithRequestTimeout bounds how long StartCapture waits for the device to answer.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithClock replaces the clock used to stamp assets and recording names.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.gate.now = now
		s.session.now = now
	}
}

// Service is the media service plus Close, which releases any capture still holding the device.
type Service interface {
	mediagate.MediaService
	Close() error
}

func NewService(rule domain.ValidationRule, device interfaces.Device, store interfaces.MediaStore, logger log.Logger, opts ...Option) Service {
	s := &service{
		gate:           NewGate(rule),
		session:        NewSession(device, logger),
		store:          store,
		requestTimeout: defaultRequestTimeout,
		logger:         logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *service) Upload(ctx context.Context, candidate *domain.FileCandidate) (domain.MediaAsset, error) {
	asset, err := s.gate.Validate(candidate)
	if err != nil {
		level.Info(s.logger).Log("msg", "upload rejected", "err", err)
		return domain.MediaAsset{}, err
	}

	if err = s.store.PutUploaded(ctx, asset); err != nil {
		return domain.MediaAsset{}, fmt.Errorf("can't store uploaded media: %w", err)
	}

	level.Info(s.logger).Log("msg", "upload accepted",
		"name", asset.Name,
		"type", asset.MimeType,
		"size", humanize.Bytes(uint64(asset.Size)),
	)

	return asset, nil
}

func (s *service) StartCapture(ctx context.Context, wantsVideo bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	return s.session.Start(ctx, wantsVideo)
}

func (s *service) StopCapture(ctx context.Context) (domain.MediaAsset, error) {
	asset, err := s.session.Stop()
	if err != nil {
		return domain.MediaAsset{}, err
	}

	if err = s.store.PutRecorded(ctx, asset); err != nil {
		return domain.MediaAsset{}, fmt.Errorf("can't store recorded media: %w", err)
	}

	return asset, nil
}

func (s *service) CancelCapture(ctx context.Context) error {
	return s.session.Cancel()
}

func (s *service) CaptureState(ctx context.Context) domain.CaptureState {
	return s.session.State()
}

func (s *service) Results(ctx context.Context) (domain.Results, error) {
	return s.store.Get(ctx)
}

func (s *service) ClearResults(ctx context.Context) error {
	return s.store.Clear(ctx)
}

func (s *service) Close() error {
	return s.session.Cancel()
}
