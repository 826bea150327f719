package types

import (
	"errors"
	"fmt"
	"time"
)

// MaxVersions caps the retained snapshot history per room, oldest evicted first.
const MaxVersions = 20

// ErrVersionNotFound is returned when a restore index does not address a
// retained snapshot.
var ErrVersionNotFound = errors.New("version not found")

// TemplateContent is the seed content of a room created on first join.
func TemplateContent(roomID string) string {
	return fmt.Sprintf("// Welcome to room: %s\n// Start coding together!", roomID)
}

// Version is an immutable, timestamped copy of a room's content. It is created
// on every save and every restore and never mutated afterwards.
type Version struct {
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// VersionInfo is the metadata exposed by version listings.
type VersionInfo struct {
	Index     int       `json:"index"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int       `json:"size"`
}

// Document is the authoritative per-room state as held by the store: one
// current content string plus the bounded snapshot history.
type Document struct {
	RoomID    string      `json:"roomId"`
	Content   string      `json:"content"`
	Versions  VersionList `json:"versions"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// NewDocument creates a fresh document seeded with the room template. The
// template itself is not a snapshot; history starts with the first save.
func NewDocument(roomID string) *Document {
	now := time.Now().UTC()
	return &Document{
		RoomID:    roomID,
		Content:   TemplateContent(roomID),
		Versions:  make(VersionList, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetContent overwrites the current content and appends a snapshot, evicting
// the oldest one beyond MaxVersions.
func (d *Document) SetContent(content string, now time.Time) {
	d.Content = content
	d.UpdatedAt = now
	d.Versions = append(d.Versions, Version{Content: content, CreatedAt: now})
	if len(d.Versions) > MaxVersions {
		d.Versions = append(VersionList(nil), d.Versions[len(d.Versions)-MaxVersions:]...)
	}
}

// RestoreVersion sets the current content to the index-th retained snapshot and
// records the restore as a new snapshot. History is never rewound.
func (d *Document) RestoreVersion(index int, now time.Time) (string, error) {
	if index < 0 || index >= len(d.Versions) {
		return "", ErrVersionNotFound
	}
	content := d.Versions[index].Content
	d.SetContent(content, now)
	return content, nil
}

// VersionInfos lists the retained snapshots oldest first.
func (d *Document) VersionInfos() []VersionInfo {
	infos := make([]VersionInfo, len(d.Versions))
	for i, v := range d.Versions {
		infos[i] = VersionInfo{Index: i, CreatedAt: v.CreatedAt, Size: len(v.Content)}
	}
	return infos
}

// Clone returns a deep copy, so callers can hand documents out of a shared
// cache without aliasing the version slice.
func (d *Document) Clone() *Document {
	out := *d
	out.Versions = append(VersionList(nil), d.Versions...)
	return &out
}
