package persistence

import (
	"sync"
	"time"

	"github.com/nhoover/coderoom/types"
)

// MemoryStore is the fallback store used when no persistent backend is
// reachable at startup. Rooms held here do not survive a restart.
type MemoryStore struct {
	docs map[string]*types.Document
	sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*types.Document)}
}

func (s *MemoryStore) Load(roomID string) (*types.Document, error) {
	s.Lock()
	defer s.Unlock()
	doc, ok := s.docs[roomID]
	if !ok {
		doc = types.NewDocument(roomID)
		s.docs[roomID] = doc
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Save(roomID, content string) error {
	s.Lock()
	defer s.Unlock()
	doc, ok := s.docs[roomID]
	if !ok {
		doc = types.NewDocument(roomID)
		s.docs[roomID] = doc
	}
	doc.SetContent(content, time.Now().UTC())
	return nil
}

func (s *MemoryStore) ListVersions(roomID string) ([]types.VersionInfo, error) {
	s.RLock()
	defer s.RUnlock()
	doc, ok := s.docs[roomID]
	if !ok {
		return []types.VersionInfo{}, nil
	}
	return doc.VersionInfos(), nil
}

func (s *MemoryStore) Restore(roomID string, index int) (string, error) {
	s.Lock()
	defer s.Unlock()
	doc, ok := s.docs[roomID]
	if !ok {
		return "", types.ErrVersionNotFound
	}
	return doc.RestoreVersion(index, time.Now().UTC())
}

func (s *MemoryStore) Rooms() ([]string, error) {
	s.RLock()
	defer s.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
