package inmemory

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
	"github.com/donmikel/mediagate/applications/mediagate/interfaces"
)

// Device is an in-process capture device. It grants every request unless told otherwise and
// hands out streams whose chunks are pushed with Emit.
type Device struct {
	contentType string
	log         log.Logger

	mutex   sync.Mutex
	failure error
	gate    chan struct{}
	streams []*Stream
}

func NewDevice(contentType string, logger log.Logger) *Device {
	return &Device{
		contentType: contentType,
		log:         logger,
	}
}

// Fail makes the following requests return err. Pass nil to grant again.
func (d *Device) Fail(err error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.failure = err
}

// Hold makes the following requests block until the returned function is called.
func (d *Device) Hold() (resume func()) {
	gate := make(chan struct{})

	d.mutex.Lock()
	d.gate = gate
	d.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

func (d *Device) RequestStream(ctx context.Context, constraints domain.Constraints) (interfaces.Stream, error) {
	d.mutex.Lock()
	gate := d.gate
	d.mutex.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.failure != nil {
		return nil, d.failure
	}

	contentType := d.contentType
	if contentType == "" {
		contentType = constraints.DefaultContentType()
	}

	s := &Stream{contentType: contentType, constraints: constraints}
	d.streams = append(d.streams, s)

	level.Debug(d.log).Log("msg", "stream granted",
		"video", constraints.Video,
		"content_type", contentType,
	)

	return s, nil
}

// Streams returns every stream handed out so far.
func (d *Device) Streams() []*Stream {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return append([]*Stream(nil), d.streams...)
}

// Last returns the most recently granted stream or nil.
func (d *Device) Last() *Stream {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

type Stream struct {
	contentType string
	constraints domain.Constraints

	mutex    sync.Mutex
	handler  func([]byte)
	releases int
}

func (s *Stream) ContentType() string {
	return s.contentType
}

func (s *Stream) Constraints() domain.Constraints {
	return s.constraints
}

func (s *Stream) OnChunk(fn func(chunk []byte)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.handler = fn
}

// Emit delivers a chunk to the registered handler. Chunks emitted after release are dropped.
func (s *Stream) Emit(chunk []byte) {
	s.mutex.Lock()
	handler := s.handler
	released := s.releases > 0
	s.mutex.Unlock()

	if handler == nil || released {
		return
	}
	handler(chunk)
}

func (s *Stream) Release() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.releases++
	return nil
}

// Releases reports how many times Release was called.
func (s *Stream) Releases() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.releases
}
