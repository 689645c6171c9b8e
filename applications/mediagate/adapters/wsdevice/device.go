// Package wsdevice turns a browser connected over WebSocket into a capture device.
//
// The browser attaches by opening the device socket. When a capture starts the server sends
//
//	{"type":"request","audio":true,"video":false}
//
// and the browser, after asking the user for microphone/camera access, answers either
//
//	{"type":"grant","contentType":"audio/webm"}   or   {"type":"deny"}
//
// Once granted, every binary frame is a recorded chunk. Releasing the stream closes the socket.
package wsdevice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/websocket"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
	"github.com/donmikel/mediagate/applications/mediagate/interfaces"
)

const (
	messageRequest = "request"
	messageGrant   = "grant"
	messageDeny    = "deny"
)

const writeWait = 5 * time.Second

var ErrClosed = errors.New("device closed")

type message struct {
	Type        string `json:"type"`
	Audio       bool   `json:"audio,omitempty"`
	Video       bool   `json:"video,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

type attachment struct {
	conn    *websocket.Conn
	granted chan *stream
}

type Device struct {
	attachments chan *attachment
	closed      chan struct{}
	closeOnce   sync.Once
	log         log.Logger
}

func New(logger log.Logger) *Device {
	return &Device{
		attachments: make(chan *attachment),
		closed:      make(chan struct{}),
		log:         logger,
	}
}

// Attach offers conn to the next capture request and pumps its chunks once access is granted.
// It returns when the stream is released, the browser goes away, the request is denied, ctx
// ends or the device is closed. The connection is always closed on return.
func (d *Device) Attach(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	a := &attachment{
		conn:    conn,
		granted: make(chan *stream, 1),
	}

	select {
	case d.attachments <- a:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.closed:
		return ErrClosed
	}

	var s *stream
	select {
	case s = <-a.granted:
	case <-d.closed:
		return ErrClosed
	}

	if s == nil {
		return nil
	}

	return s.pump()
}

// Close rejects pending and future attachments.
func (d *Device) Close() {
	d.closeOnce.Do(func() {
		close(d.closed)
	})
}

func (d *Device) RequestStream(ctx context.Context, constraints domain.Constraints) (interfaces.Stream, error) {
	var a *attachment
	select {
	case a = <-d.attachments:
	case <-ctx.Done():
		return nil, fmt.Errorf("no browser attached: %w", domain.ErrDeviceUnavailable)
	case <-d.closed:
		return nil, fmt.Errorf("%v: %w", ErrClosed, domain.ErrDeviceUnavailable)
	}

	s, err := d.negotiate(ctx, a.conn, constraints)
	a.granted <- s
	if err != nil {
		return nil, err
	}

	level.Info(d.log).Log("msg", "browser granted capture",
		"remote", a.conn.RemoteAddr(),
		"content_type", s.contentType,
	)

	return s, nil
}

func (d *Device) negotiate(ctx context.Context, conn *websocket.Conn, constraints domain.Constraints) (*stream, error) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(message{
		Type:  messageRequest,
		Audio: constraints.Audio,
		Video: constraints.Video,
	})
	if err != nil {
		return nil, fmt.Errorf("can't send capture request: %v: %w", err, domain.ErrDeviceUnavailable)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	// a cancelled request must not wait for the browser to answer
	answered := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-answered:
		}
	}()

	var reply message
	err = conn.ReadJSON(&reply)
	close(answered)
	if err != nil {
		return nil, fmt.Errorf("can't read capture reply: %v: %w", err, domain.ErrDeviceUnavailable)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch reply.Type {
	case messageGrant:
		contentType := reply.ContentType
		if contentType == "" {
			contentType = constraints.DefaultContentType()
		}
		return &stream{conn: conn, contentType: contentType, log: d.log}, nil
	case messageDeny:
		return nil, domain.ErrPermissionDenied
	default:
		return nil, fmt.Errorf("unexpected reply %q: %w", reply.Type, domain.ErrDeviceUnavailable)
	}
}

type stream struct {
	conn        *websocket.Conn
	contentType string
	log         log.Logger

	mutex    sync.Mutex
	handler  func([]byte)
	pending  [][]byte
	released bool
	once     sync.Once
}

func (s *stream) ContentType() string {
	return s.contentType
}

// OnChunk registers fn and replays chunks that arrived before registration.
func (s *stream) OnChunk(fn func(chunk []byte)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.handler = fn
	for _, chunk := range s.pending {
		fn(chunk)
	}
	s.pending = nil
}

func (s *stream) deliver(chunk []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.released {
		return
	}
	if s.handler == nil {
		s.pending = append(s.pending, chunk)
		return
	}
	s.handler(chunk)
}

func (s *stream) pump() error {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mutex.Lock()
			released := s.released
			s.mutex.Unlock()

			if released || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("can't read chunk: %w", err)
		}

		if kind != websocket.BinaryMessage {
			level.Debug(s.log).Log("msg", "ignoring non-binary frame", "kind", kind)
			continue
		}

		s.deliver(data)
	}
}

func (s *stream) Release() error {
	var err error
	s.once.Do(func() {
		s.mutex.Lock()
		s.released = true
		s.pending = nil
		s.mutex.Unlock()

		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "capture finished"))
		err = s.conn.Close()
	})

	return err
}
