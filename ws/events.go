package ws

import (
	"time"

	"github.com/nhoover/coderoom/types"
)

// The closed set of events processed by the hub loop. Every mutation of room
// registry state goes through exactly one of these variants.
type event interface {
	isEvent()
}

// evJoin attaches a connection to a room. The document content has already
// been loaded by the sender, so a failed load never reaches the registry.
type evJoin struct {
	client  *Client
	roomID  string
	nick    string
	content string
}

// evChanges relays a delta verbatim to the other participants. It is never
// applied to the authoritative content.
type evChanges struct {
	client *Client
	roomID string
	delta  types.Delta
}

type evCursor struct {
	client *Client
	roomID string
	offset int
}

type evChat struct {
	client  *Client
	roomID  string
	message string
}

type evSave struct {
	client  *Client
	roomID  string
	content string
}

// evFlushSave fires when a room's save debounce window expires.
type evFlushSave struct {
	roomID string
}

type evShareFolder struct {
	client   *Client
	roomID   string
	rootPath string
	tree     *types.FileNode
}

type evRequestFile struct {
	client *Client
	roomID string
	path   string
}

type evFileContent struct {
	client  *Client
	payload types.FileContentPayload
}

// evPushContent broadcasts new authoritative content to a whole room, used
// after a version restore.
type evPushContent struct {
	roomID  string
	content string
}

// evSweep expires file requests that stayed unanswered too long.
type evSweep struct {
	now time.Time
}

func (evJoin) isEvent()        {}
func (evChanges) isEvent()     {}
func (evCursor) isEvent()      {}
func (evChat) isEvent()        {}
func (evSave) isEvent()        {}
func (evFlushSave) isEvent()   {}
func (evShareFolder) isEvent() {}
func (evRequestFile) isEvent() {}
func (evFileContent) isEvent() {}
func (evPushContent) isEvent() {}
func (evSweep) isEvent()       {}
