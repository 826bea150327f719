package persistence

import (
	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/types"
	"github.com/pkg/errors"
)

// Store is the document store adapter: authoritative per-room content plus the
// bounded snapshot history. All backends share these semantics:
//
//   - Load creates an unseen room with the template content.
//   - Save overwrites the content and appends a snapshot (FIFO-capped at
//     types.MaxVersions); an unseen room is created with the saved content as
//     both current content and sole initial snapshot.
//   - Restore sets the content to the addressed snapshot and appends a new
//     snapshot recording the restore; it returns types.ErrVersionNotFound for
//     an out-of-range index. It never rewinds history.
//   - ListVersions returns snapshot metadata oldest first; an unseen room has
//     no versions, which is not an error.
type Store interface {
	Load(roomID string) (*types.Document, error)
	Save(roomID, content string) error
	ListVersions(roomID string) ([]types.VersionInfo, error)
	Restore(roomID string, index int) (string, error)
	Rooms() ([]string, error)
	Close() error
}

// NewBackend constructs the configured persistent backend. It returns
// (nil, nil) when no backend is configured and an error when the configured
// backend is unreachable.
func NewBackend(cfg *config.Config) (Store, error) {
	switch cfg.PersistenceConfig.Type {
	case "sqlite", "postgres":
		return NewGormStore(cfg)
	case "buntdb":
		return NewBuntStore(cfg)
	case "mongo":
		return NewMongoStore(cfg)
	case "", "memory":
		return nil, nil
	}
	return nil, errors.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}

// NewStore resolves the storage capability once at process start: the
// configured backend if it is reachable, the in-memory store otherwise. The
// decision is not re-evaluated; a backend that becomes unavailable mid-session
// is not failed over.
func NewStore(cfg *config.Config) Store {
	backend, err := NewBackend(cfg)
	if err != nil {
		globals.AppLogger.Warn("persistent backend unavailable, using in-memory store",
			"type", cfg.PersistenceConfig.Type, "error", err)
		return NewMemoryStore()
	}
	if backend == nil {
		globals.AppLogger.Info("no persistence configured, using in-memory store")
		return NewMemoryStore()
	}
	return backend
}
