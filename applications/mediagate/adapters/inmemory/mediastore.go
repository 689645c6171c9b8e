package inmemory

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/donmikel/mediagate/applications/mediagate/domain"
	"github.com/donmikel/mediagate/applications/mediagate/interfaces"
)

type inMemoryMediaStore struct {
	uploaded *domain.MediaAsset
	recorded *domain.MediaAsset
	log      log.Logger
	mutex    sync.RWMutex
}

func NewMediaStore(logger log.Logger) interfaces.MediaStore {
	return &inMemoryMediaStore{
		log: logger,
	}
}

func (m *inMemoryMediaStore) PutUploaded(ctx context.Context, asset domain.MediaAsset) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.uploaded = &asset
	m.logPut(asset)

	return nil
}

func (m *inMemoryMediaStore) PutRecorded(ctx context.Context, asset domain.MediaAsset) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.recorded = &asset
	m.logPut(asset)

	return nil
}

func (m *inMemoryMediaStore) Get(ctx context.Context) (domain.Results, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return domain.Results{
		Uploaded: m.uploaded,
		Recorded: m.recorded,
	}, nil
}

func (m *inMemoryMediaStore) Clear(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.uploaded = nil
	m.recorded = nil

	level.Info(m.log).Log("msg", "media cleared")

	return nil
}

func (m *inMemoryMediaStore) logPut(asset domain.MediaAsset) {
	level.Info(m.log).Log("msg", "media published",
		"source", asset.Source,
		"name", asset.Name,
		"size", humanize.Bytes(uint64(asset.Size)),
	)
}
