package domain

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

type Source string

const (
	SourceUpload    Source = "upload"
	SourceRecording Source = "recording"
)

// FileCandidate is a file handed over by the file chooser before validation.
type FileCandidate struct {
	Name     string
	MimeType string
	Size     int64
	Body     []byte
}

// MediaAsset is an accepted upload or a finalized recording.
// Assets are never mutated; a newer asset replaces an older one.
type MediaAsset struct {
	ID        string
	Name      string
	MimeType  string
	Size      int64
	Checksum  string
	Source    Source
	CreatedAt time.Time

	bytes []byte
}

func NewMediaAsset(source Source, name, mimeType string, payload []byte, createdAt time.Time) MediaAsset {
	data := make([]byte, len(payload))
	copy(data, payload)

	return MediaAsset{
		ID:        uuid.NewString(),
		Name:      name,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Checksum:  strconv.FormatUint(xxhash.Sum64(data), 16),
		Source:    source,
		CreatedAt: createdAt,
		bytes:     data,
	}
}

// Bytes returns a copy of the payload.
func (a MediaAsset) Bytes() []byte {
	data := make([]byte, len(a.bytes))
	copy(data, a.bytes)
	return data
}

type Results struct {
	Uploaded *MediaAsset
	Recorded *MediaAsset
}
