package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/folkengine/goname"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/types"
	"github.com/oklog/ulid/v2"
)

const (
	maxMessageSize  = 1024 * 1024
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 256

	defaultRoomID = "default"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. Never closed; the write loop
	// exits on connection errors instead.
	Send chan []byte

	// Id identifies this connection for its lifetime.
	Id string

	// nick and room are owned by the hub loop and must not be touched from
	// the read/write loops after registration.
	nick string
	room string
}

// ServeWs upgrades an HTTP request and registers the new connection with the
// hub. Room membership is established later via the join event, as a
// connection may move between rooms.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	client := &Client{
		hub:  hub,
		conn: conn,
		Send: make(chan []byte, sendChannelSize),
		Id:   ulid.Make().String(),
	}
	hub.Register <- client

	go client.WriteLoop()
	go client.ReadLoop()
}

// ReadLoop pumps messages from the websocket connection to the hub.
//
// The application runs ReadLoop in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Debug("ws closed unexpected", "client", c.Id, "error", err)
			}
			return
		}
		message := types.WebsocketMessage{}
		if err := json.Unmarshal(raw, &message); err != nil {
			globals.AppLogger.Debug("could not unmarshal ws message", "client", c.Id, "error", err)
			c.sendError("malformed message")
			continue
		}
		c.dispatch(&message)
	}
}

// dispatch validates one inbound event at the boundary and posts it to the hub
// loop. Failed operations are reported to this connection only.
func (c *Client) dispatch(message *types.WebsocketMessage) {
	payload := make(map[string]interface{})
	if len(message.Data) > 0 {
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			c.sendError("malformed payload")
			return
		}
	}

	switch message.Event {
	case types.EventJoin:
		join := types.JoinPayload{}
		if err := mapstructure.WeakDecode(payload, &join); err != nil {
			c.sendError("malformed join payload")
			return
		}
		if join.RoomId == "" {
			join.RoomId = defaultRoomID
		}
		nick := join.Username
		if nick == "" {
			nick = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
		}
		// Load before any roster mutation, so a failed join leaves the
		// connection exactly where it was.
		doc, err := c.hub.store.Load(join.RoomId)
		if err != nil {
			globals.AppLogger.Error("could not load document", "room", join.RoomId, "error", err)
			c.sendError("Failed to load document")
			return
		}
		c.hub.events <- evJoin{client: c, roomID: join.RoomId, nick: nick, content: doc.Content}

	case types.EventSendChanges:
		changes := types.ChangesPayload{}
		if err := mapstructure.WeakDecode(payload, &changes); err != nil || changes.Delta == nil {
			c.sendError("malformed delta payload")
			return
		}
		if err := changes.Delta.Validate(-1); err != nil {
			c.sendError(err.Error())
			return
		}
		c.hub.events <- evChanges{client: c, roomID: changes.RoomId, delta: *changes.Delta}

	case types.EventCursorUpdate:
		cursor := types.CursorPayload{}
		if err := mapstructure.WeakDecode(payload, &cursor); err != nil {
			c.sendError("malformed cursor payload")
			return
		}
		c.hub.events <- evCursor{client: c, roomID: cursor.RoomId, offset: cursor.Offset}

	case types.EventChatMessage:
		chat := types.ChatPayload{}
		if err := mapstructure.WeakDecode(payload, &chat); err != nil {
			c.sendError("malformed chat payload")
			return
		}
		c.hub.events <- evChat{client: c, roomID: chat.RoomId, message: chat.Message}

	case types.EventSaveDocument:
		save := types.SavePayload{}
		if err := mapstructure.WeakDecode(payload, &save); err != nil {
			c.sendError("malformed save payload")
			return
		}
		c.hub.events <- evSave{client: c, roomID: save.RoomId, content: save.Content}

	case types.EventShareFolder:
		share := types.ShareFolderPayload{}
		if err := mapstructure.WeakDecode(payload, &share); err != nil || share.Tree == nil {
			c.sendError("malformed share-folder payload")
			return
		}
		c.hub.events <- evShareFolder{client: c, roomID: share.RoomId, rootPath: share.RootPath, tree: share.Tree}

	case types.EventRequestFile:
		request := types.RequestFilePayload{}
		if err := mapstructure.WeakDecode(payload, &request); err != nil || request.Path == "" {
			c.sendError("malformed request-file payload")
			return
		}
		c.hub.events <- evRequestFile{client: c, roomID: request.RoomId, path: request.Path}

	case types.EventFileContent:
		content := types.FileContentPayload{}
		if err := mapstructure.WeakDecode(payload, &content); err != nil {
			c.sendError("malformed file-content payload")
			return
		}
		c.hub.events <- evFileContent{client: c, payload: content}

	default:
		globals.AppLogger.Debug("unknown event", "event", message.Event, "client", c.Id)
		c.sendError("unknown event: " + message.Event)
	}
}

func (c *Client) sendError(message string) {
	raw, err := types.MarshalWebsocketMessage(types.EventError, types.ErrorMessage{Message: message})
	if err != nil {
		return
	}
	select {
	case c.Send <- raw:
	default:
		globals.AppLogger.Warn("send buffer full, dropping error message", "client", c.Id)
	}
}

// WriteLoop pumps messages from the hub to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
