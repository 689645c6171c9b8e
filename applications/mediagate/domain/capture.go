package domain

// CaptureState is the lifecycle state of a capture session.
type CaptureState string

const (
	CaptureIdle       CaptureState = "idle"
	CaptureRequesting CaptureState = "requesting"
	CaptureActive     CaptureState = "active"
	CaptureFinalizing CaptureState = "finalizing"
	CaptureDenied     CaptureState = "denied"
)

// Constraints are the tracks asked from the capture device.
type Constraints struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// DefaultContentType is used when a device stream does not report its own content type.
func (c Constraints) DefaultContentType() string {
	if c.Video {
		return "video/webm"
	}
	return "audio/webm"
}
