package persistence

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/types"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ driver.Valuer = types.VersionList{}

// roomRecord is the persisted shape per room: one row holding the current
// content and the capped snapshot history as a JSON column.
type roomRecord struct {
	Id        string `gorm:"primaryKey"`
	Content   string
	Versions  types.VersionList
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (roomRecord) TableName() string {
	return "rooms"
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(cfg *config.Config) (Store, error) {
	db, err := setupGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, nil // no or wrong configuration, ignore the backend
	}
	return &GormStore{db: db}, nil
}

func setupGormDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, nil
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.Migrator().AutoMigrate(&roomRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}

func recordToDocument(rec *roomRecord) *types.Document {
	versions := rec.Versions
	if versions == nil {
		versions = make(types.VersionList, 0)
	}
	return &types.Document{
		RoomID:    rec.Id,
		Content:   rec.Content,
		Versions:  versions,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func documentToRecord(doc *types.Document) *roomRecord {
	return &roomRecord{
		Id:        doc.RoomID,
		Content:   doc.Content,
		Versions:  doc.Versions,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func (s *GormStore) Load(roomID string) (*types.Document, error) {
	var doc *types.Document
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec := roomRecord{Id: roomID}
		err := tx.First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			doc = types.NewDocument(roomID)
			return tx.Create(documentToRecord(doc)).Error
		}
		if err != nil {
			return err
		}
		doc = recordToDocument(&rec)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load room")
	}
	return doc, nil
}

func (s *GormStore) Save(roomID, content string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		doc, err := loadOrNewTx(tx, roomID, content)
		if err != nil {
			return err
		}
		doc.SetContent(content, time.Now().UTC())
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(documentToRecord(doc)).Error
	})
	return errors.Wrap(err, "save room")
}

// loadOrNewTx fetches the room row inside tx, creating a new document when the
// room is unseen. For an unseen room the saved content becomes the current
// content, so the first snapshot equals it.
func loadOrNewTx(tx *gorm.DB, roomID, initialContent string) (*types.Document, error) {
	rec := roomRecord{Id: roomID}
	err := tx.First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := time.Now().UTC()
		return &types.Document{
			RoomID:    roomID,
			Content:   initialContent,
			Versions:  make(types.VersionList, 0),
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return recordToDocument(&rec), nil
}

func (s *GormStore) ListVersions(roomID string) ([]types.VersionInfo, error) {
	rec := roomRecord{Id: roomID}
	err := s.db.First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []types.VersionInfo{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "list versions")
	}
	return recordToDocument(&rec).VersionInfos(), nil
}

func (s *GormStore) Restore(roomID string, index int) (string, error) {
	var content string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec := roomRecord{Id: roomID}
		err := tx.First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrVersionNotFound
		}
		if err != nil {
			return err
		}
		doc := recordToDocument(&rec)
		content, err = doc.RestoreVersion(index, time.Now().UTC())
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(documentToRecord(doc)).Error
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (s *GormStore) Rooms() ([]string, error) {
	ids := make([]string, 0)
	err := s.db.Model(&roomRecord{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) Close() error {
	return nil
}
