package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotRecording = errors.New("no recording in progress")
	ErrCaptureBusy  = errors.New("another capture is already in progress")
	ErrNoAsset      = errors.New("no media asset")
)

type ValidationReason string

const (
	ReasonAbsent      ValidationReason = "absent"
	ReasonInvalidType ValidationReason = "invalid type"
	ReasonTooSmall    ValidationReason = "too small"
	ReasonTooLarge    ValidationReason = "too large"
	ReasonIncomplete  ValidationReason = "incomplete"
)

// ValidationError rejects an upload. Only the first failed check is reported.
type ValidationError struct {
	Reason  ValidationReason
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return e.Message
}

type CaptureReason string

const (
	ReasonPermissionDenied  CaptureReason = "permission denied"
	ReasonDeviceUnavailable CaptureReason = "device unavailable"
	ReasonCancelled         CaptureReason = "cancelled"
)

// CaptureError reports a failed attempt to acquire a capture device.
type CaptureError struct {
	Reason CaptureReason
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// ErrPermissionDenied is returned by devices when the user refuses access.
var ErrPermissionDenied = errors.New("permission denied by user")

// ErrDeviceUnavailable is returned by devices when no capture hardware can be reached.
var ErrDeviceUnavailable = errors.New("capture device unavailable")
