package types

import (
	"encoding/json"
	"time"
)

// Event names received from clients.
const (
	EventJoin         = "join"
	EventSendChanges  = "send-changes"
	EventCursorUpdate = "cursor-update"
	EventChatMessage  = "chat-message"
	EventSaveDocument = "save-document"
	EventShareFolder  = "share-folder"
	EventRequestFile  = "request-file"
	EventFileContent  = "file-content"
)

// Event names sent to clients. Cursor, chat and file-content events reuse the
// inbound names.
const (
	EventLoadDocument   = "load-document"
	EventReceiveChanges = "receive-changes"
	EventUsers          = "users"
	EventUserCount      = "user-count"
	EventSharedFolder   = "shared-folder"
	EventFileRequest    = "file-request"
	EventError          = "error"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket connection
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MarshalWebsocketMessage wraps a payload into the wire envelope.
func MarshalWebsocketMessage(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: data})
}

// The closed set of inbound payload variants, decoded with mapstructure after
// the envelope is unwrapped.

type JoinPayload struct {
	RoomId   string `json:"roomId" mapstructure:"roomId"`
	Username string `json:"username" mapstructure:"username"`
}

type ChangesPayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	Delta  *Delta `json:"delta" mapstructure:"delta"`
}

type CursorPayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	Offset int    `json:"offset" mapstructure:"offset"`
}

type ChatPayload struct {
	RoomId   string `json:"roomId" mapstructure:"roomId"`
	Username string `json:"username" mapstructure:"username"`
	Message  string `json:"message" mapstructure:"message"`
}

type SavePayload struct {
	RoomId  string `json:"roomId" mapstructure:"roomId"`
	Content string `json:"content" mapstructure:"content"`
}

type ShareFolderPayload struct {
	RoomId   string    `json:"roomId" mapstructure:"roomId"`
	RootPath string    `json:"rootPath" mapstructure:"rootPath"`
	Tree     *FileNode `json:"tree" mapstructure:"tree"`
}

type RequestFilePayload struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
	Path   string `json:"path" mapstructure:"path"`
}

// FileContentPayload is sent by the owner in answer to a forwarded file
// request and relayed verbatim to the original requester. Either Content or
// Error is set.
type FileContentPayload struct {
	Path        string `json:"path" mapstructure:"path"`
	Content     string `json:"content,omitempty" mapstructure:"content"`
	Error       string `json:"error,omitempty" mapstructure:"error"`
	RequesterId string `json:"requesterId,omitempty" mapstructure:"requesterId"`
}

// Outbound payloads.

// RosterEntry is one participant in the users broadcast.
type RosterEntry struct {
	ClientId string `json:"clientId"`
	Username string `json:"username"`
}

// SharedFolderInfo announces the live folder and its owner to a room.
type SharedFolderInfo struct {
	Tree     *FileNode `json:"tree"`
	RootPath string    `json:"rootPath"`
	Owner    string    `json:"owner"`
	OwnerId  string    `json:"ownerId"`
	SharedAt time.Time `json:"sharedAt"`
}

// FileRequestNotice is what the owner receives for a forwarded file request.
type FileRequestNotice struct {
	Path          string `json:"path"`
	RequesterId   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
}

// ErrorMessage reports a failed operation to the connection that issued it.
type ErrorMessage struct {
	Message string `json:"message"`
}
