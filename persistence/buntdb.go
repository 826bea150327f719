package persistence

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/types"
	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

const roomKeyPrefix = "room:"

// BuntStore keeps each room as one JSON document under "room:<id>".
type BuntStore struct {
	db *buntdb.DB
}

func NewBuntStore(cfg *config.Config) (Store, error) {
	db, err := setupBuntDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the backend
	}
	return &BuntStore{db: db}, nil
}

func setupBuntDB(cfg *config.Config) (*buntdb.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	db, err := buntdb.Open(cfg.PersistenceConfig.DSN)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func getDocumentTx(tx *buntdb.Tx, roomID string) (*types.Document, error) {
	raw, err := tx.Get(roomKeyPrefix + roomID)
	if err != nil {
		return nil, err
	}
	doc := &types.Document{}
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func setDocumentTx(tx *buntdb.Tx, doc *types.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, _, err = tx.Set(roomKeyPrefix+doc.RoomID, string(raw), nil)
	return err
}

func (s *BuntStore) Load(roomID string) (*types.Document, error) {
	var doc *types.Document
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var err error
		doc, err = getDocumentTx(tx, roomID)
		if err == buntdb.ErrNotFound {
			doc = types.NewDocument(roomID)
			return setDocumentTx(tx, doc)
		}
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "load room")
	}
	return doc, nil
}

func (s *BuntStore) Save(roomID, content string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		doc, err := getDocumentTx(tx, roomID)
		if err == buntdb.ErrNotFound {
			now := time.Now().UTC()
			doc = &types.Document{
				RoomID:    roomID,
				Content:   content,
				Versions:  make(types.VersionList, 0),
				CreatedAt: now,
				UpdatedAt: now,
			}
		} else if err != nil {
			return err
		}
		doc.SetContent(content, time.Now().UTC())
		return setDocumentTx(tx, doc)
	})
	return errors.Wrap(err, "save room")
}

func (s *BuntStore) ListVersions(roomID string) ([]types.VersionInfo, error) {
	infos := []types.VersionInfo{}
	err := s.db.View(func(tx *buntdb.Tx) error {
		doc, err := getDocumentTx(tx, roomID)
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		infos = doc.VersionInfos()
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list versions")
	}
	return infos, nil
}

func (s *BuntStore) Restore(roomID string, index int) (string, error) {
	var content string
	err := s.db.Update(func(tx *buntdb.Tx) error {
		doc, err := getDocumentTx(tx, roomID)
		if err == buntdb.ErrNotFound {
			return types.ErrVersionNotFound
		}
		if err != nil {
			return err
		}
		content, err = doc.RestoreVersion(index, time.Now().UTC())
		if err != nil {
			return err
		}
		return setDocumentTx(tx, doc)
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (s *BuntStore) Rooms() ([]string, error) {
	ids := make([]string, 0)
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(roomKeyPrefix+"*", func(key, _ string) bool {
			ids = append(ids, strings.TrimPrefix(key, roomKeyPrefix))
			return true
		})
	})
	return ids, err
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
