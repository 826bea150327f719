package persistence

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/nhoover/coderoom/types"
)

// CachedStore fronts a Store with an ARC cache of recently loaded documents.
// Writes invalidate, so the backend stays authoritative; the cache only spares
// repeated backend reads on join churn.
type CachedStore struct {
	backend Store
	cache   *lru.ARCCache
}

func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	c, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{backend: backend, cache: c}, nil
}

func (s *CachedStore) Load(roomID string) (*types.Document, error) {
	if v, ok := s.cache.Get(roomID); ok {
		return v.(*types.Document).Clone(), nil
	}
	doc, err := s.backend.Load(roomID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(roomID, doc.Clone())
	return doc, nil
}

func (s *CachedStore) Save(roomID, content string) error {
	s.cache.Remove(roomID)
	return s.backend.Save(roomID, content)
}

func (s *CachedStore) ListVersions(roomID string) ([]types.VersionInfo, error) {
	return s.backend.ListVersions(roomID)
}

func (s *CachedStore) Restore(roomID string, index int) (string, error) {
	s.cache.Remove(roomID)
	return s.backend.Restore(roomID, index)
}

func (s *CachedStore) Rooms() ([]string, error) {
	return s.backend.Rooms()
}

func (s *CachedStore) Close() error {
	return s.backend.Close()
}
