package types

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocument(t *testing.T) {
	doc := NewDocument("r1")
	assert.Equal(t, "r1", doc.RoomID)
	assert.Contains(t, doc.Content, "r1")
	assert.Len(t, doc.Versions, 0)
}

func TestSetContentEviction(t *testing.T) {
	doc := NewDocument("r1")
	now := time.Now().UTC()
	for i := 1; i <= MaxVersions+5; i++ {
		doc.SetContent(fmt.Sprintf("content %d", i), now.Add(time.Duration(i)*time.Second))
	}
	require.Len(t, doc.Versions, MaxVersions)
	assert.Equal(t, fmt.Sprintf("content %d", MaxVersions+5), doc.Content)
	assert.Equal(t, doc.Content, doc.Versions[MaxVersions-1].Content)
	// the oldest retained snapshot is the 6th save
	assert.Equal(t, "content 6", doc.Versions[0].Content)
}

func TestRestoreVersion(t *testing.T) {
	doc := NewDocument("r1")
	now := time.Now().UTC()
	doc.SetContent("first", now)
	doc.SetContent("second", now.Add(time.Second))

	content, err := doc.RestoreVersion(0, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "first", content)
	assert.Equal(t, "first", doc.Content)
	// the restore itself is recorded as a new snapshot
	require.Len(t, doc.Versions, 3)
	assert.Equal(t, "first", doc.Versions[2].Content)

	_, err = doc.RestoreVersion(3, now)
	assert.ErrorIs(t, err, ErrVersionNotFound)
	_, err = doc.RestoreVersion(-1, now)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestVersionInfos(t *testing.T) {
	doc := NewDocument("r1")
	now := time.Now().UTC()
	doc.SetContent("a", now)
	doc.SetContent("bcd", now.Add(time.Second))
	infos := doc.VersionInfos()
	require.Len(t, infos, 2)
	assert.Equal(t, 0, infos[0].Index)
	assert.Equal(t, 1, infos[0].Size)
	assert.Equal(t, 1, infos[1].Index)
	assert.Equal(t, 3, infos[1].Size)
}

func TestClone(t *testing.T) {
	doc := NewDocument("r1")
	doc.SetContent("original", time.Now().UTC())
	clone := doc.Clone()
	clone.SetContent("changed", time.Now().UTC())
	assert.Equal(t, "original", doc.Content)
	assert.Len(t, doc.Versions, 1)
	assert.Len(t, clone.Versions, 2)
}
