package ws

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/persistence"
	"github.com/nhoover/coderoom/types"
	"github.com/robfig/cron/v3"
)

const eventChannelSize = 1000

// Hub owns the active room registry: which connections belong to which room,
// per-room owners and shared folders, pending file requests and save debounce
// state. All of it is mutated exclusively by the Run loop, so the registry
// needs no locking. Only the calls into the store are asynchronous.
type Hub struct {
	cfg   *config.Config
	store persistence.Store

	// Registered connections, joined or not.
	clients map[*Client]struct{}

	// Active rooms. A room is dropped from here (not from the store) as soon
	// as its last participant leaves.
	rooms map[string]*roomState

	// Register a new client connection.
	Register chan *Client

	// Unregister a client connection.
	Unregister chan *Client

	events chan event

	clientCount int64
	roomCount   int64
}

type roomState struct {
	id      string
	clients map[*Client]struct{}

	// owner is whoever last published a shared folder, nil once that
	// connection leaves. At most one owner/folder pair per room.
	owner   *Client
	ownerId string
	folder  *types.SharedFolder

	// pending file requests, keyed by requester identity and path.
	pending map[pendingKey]*pendingRequest

	// debounced save state
	saveTimer    *time.Timer
	pendingSave  *string
	pendingSaver *Client
}

type pendingKey struct {
	requesterId string
	path        string
}

type pendingRequest struct {
	requester *Client
	created   time.Time
}

func NewHub(cfg *config.Config, store persistence.Store) *Hub {
	return &Hub{
		cfg:        cfg,
		store:      store,
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]*roomState),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan event, eventChannelSize),
	}
}

// Run is the main hub event loop handling register, unregister and room events.
func (h *Hub) Run() {
	cronRunner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if spec := h.cfg.BrokerConfig.SweepSpec; spec != "" {
		if _, err := cronRunner.AddFunc(spec, func() {
			h.events <- evSweep{now: time.Now()}
		}); err != nil {
			globals.AppLogger.Error("could not schedule request sweep", "spec", spec, "error", err)
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	for {
		select {
		case client := <-h.Register:
			h.clients[client] = struct{}{}
			atomic.StoreInt64(&h.clientCount, int64(len(h.clients)))
			globals.AppLogger.Debug("client connected", "client", client.Id)

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			atomic.StoreInt64(&h.clientCount, int64(len(h.clients)))
			h.detach(client)
			globals.AppLogger.Debug("client disconnected", "client", client.Id)

		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) handleEvent(ev event) {
	switch ev := ev.(type) {
	case evJoin:
		h.handleJoin(ev)
	case evChanges:
		h.handleChanges(ev)
	case evCursor:
		h.handleCursor(ev)
	case evChat:
		h.handleChat(ev)
	case evSave:
		h.handleSave(ev)
	case evFlushSave:
		h.handleFlushSave(ev)
	case evShareFolder:
		h.handleShareFolder(ev)
	case evRequestFile:
		h.handleRequestFile(ev)
	case evFileContent:
		h.handleFileContent(ev)
	case evPushContent:
		h.handlePushContent(ev)
	case evSweep:
		h.handleSweep(ev)
	}
}

// PushContent delivers new authoritative content to every participant of a
// room, used by the restore endpoint.
func (h *Hub) PushContent(roomID, content string) {
	h.events <- evPushContent{roomID: roomID, content: content}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(atomic.LoadInt64(&h.clientCount))
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	return int(atomic.LoadInt64(&h.roomCount))
}

func (h *Hub) handleJoin(ev evJoin) {
	if _, ok := h.clients[ev.client]; !ok {
		// disconnected while the document was loading
		return
	}
	h.detach(ev.client)

	rs, ok := h.rooms[ev.roomID]
	if !ok {
		rs = &roomState{
			id:      ev.roomID,
			clients: make(map[*Client]struct{}),
			pending: make(map[pendingKey]*pendingRequest),
		}
		h.rooms[ev.roomID] = rs
		atomic.StoreInt64(&h.roomCount, int64(len(h.rooms)))
	}
	rs.clients[ev.client] = struct{}{}
	ev.client.room = ev.roomID
	ev.client.nick = ev.nick

	h.sendEvent(ev.client, types.EventLoadDocument, ev.content)
	if rs.folder != nil {
		h.sendEvent(ev.client, types.EventSharedFolder, h.folderInfo(rs))
	}
	h.broadcastRoster(rs)
	globals.AppLogger.Info("client joined room", "client", ev.client.Id, "nick", ev.nick, "room", ev.roomID, "participants", len(rs.clients))
}

// detach removes the client from its current room, if any. Dropping the last
// participant removes the room from the active registry (persistent content
// is untouched) after flushing a still-debounced save.
func (h *Hub) detach(c *Client) {
	if c.room == "" {
		return
	}
	rs, ok := h.rooms[c.room]
	c.room = ""
	if !ok {
		return
	}
	delete(rs.clients, c)
	h.dropRequester(rs, c)
	if rs.owner == c {
		h.dropOwner(rs)
	}
	if len(rs.clients) == 0 {
		if rs.saveTimer != nil {
			rs.saveTimer.Stop()
		}
		h.flush(rs)
		delete(h.rooms, rs.id)
		atomic.StoreInt64(&h.roomCount, int64(len(h.rooms)))
		globals.AppLogger.Info("room is now empty", "room", rs.id)
		return
	}
	h.broadcastRoster(rs)
}

func (h *Hub) handleChanges(ev evChanges) {
	if ev.client.room != ev.roomID {
		return
	}
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	h.broadcastEvent(rs, ev.client, types.EventReceiveChanges, ev.delta)
}

func (h *Hub) handleCursor(ev evCursor) {
	if ev.client.room != ev.roomID {
		return
	}
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	update := types.CursorUpdate{
		Nick:     ev.client.nick,
		ClientId: ev.client.Id,
		Offset:   ev.offset,
	}
	h.broadcastEvent(rs, ev.client, types.EventCursorUpdate, update)
}

func (h *Hub) handleChat(ev evChat) {
	if ev.client.room != ev.roomID || ev.message == "" {
		return
	}
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	msg := types.ChatMessage{
		Nick:      ev.client.nick,
		Timestamp: time.Now(),
		Message:   ev.message,
	}
	if err := msg.CreateId(); err != nil {
		globals.AppLogger.Error("could not hash chat message", "error", err)
		return
	}
	// local echo included: clients render only what the server fans out
	h.broadcastEvent(rs, nil, types.EventChatMessage, msg)
}

func (h *Hub) handleSave(ev evSave) {
	if ev.client.room != ev.roomID {
		return
	}
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	content := ev.content
	rs.pendingSave = &content
	rs.pendingSaver = ev.client
	debounce := h.cfg.EditorConfig.SaveDebounce
	if debounce <= 0 {
		h.flush(rs)
		return
	}
	if rs.saveTimer != nil {
		rs.saveTimer.Stop()
	}
	roomID := ev.roomID
	rs.saveTimer = time.AfterFunc(debounce, func() {
		h.events <- evFlushSave{roomID: roomID}
	})
}

func (h *Hub) handleFlushSave(ev evFlushSave) {
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	h.flush(rs)
}

// flush hands the pending content to the store. The write itself is
// asynchronous and not serialized per room: of two racing saves the one whose
// write completes last wins.
func (h *Hub) flush(rs *roomState) {
	if rs.pendingSave == nil {
		return
	}
	content := *rs.pendingSave
	saver := rs.pendingSaver
	rs.pendingSave = nil
	rs.pendingSaver = nil
	roomID := rs.id
	go func() {
		if err := h.store.Save(roomID, content); err != nil {
			globals.AppLogger.Error("could not save document", "room", roomID, "error", err)
			if saver != nil {
				h.sendEvent(saver, types.EventError, types.ErrorMessage{Message: "Failed to save document"})
			}
			return
		}
		globals.AppLogger.Debug("document saved", "room", roomID, "size", len(content))
	}()
}

func (h *Hub) handlePushContent(ev evPushContent) {
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	h.broadcastEvent(rs, nil, types.EventLoadDocument, ev.content)
}

func (h *Hub) broadcastRoster(rs *roomState) {
	roster := make([]types.RosterEntry, 0, len(rs.clients))
	for c := range rs.clients {
		roster = append(roster, types.RosterEntry{ClientId: c.Id, Username: c.nick})
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].Username != roster[j].Username {
			return roster[i].Username < roster[j].Username
		}
		return roster[i].ClientId < roster[j].ClientId
	})
	h.broadcastEvent(rs, nil, types.EventUsers, roster)
	h.broadcastEvent(rs, nil, types.EventUserCount, len(rs.clients))
}

// sendEvent delivers one event to one connection. The send never blocks the
// hub loop; a client that cannot keep up loses messages instead.
func (h *Hub) sendEvent(c *Client, event string, payload interface{}) {
	raw, err := types.MarshalWebsocketMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal ws message", "event", event, "error", err)
		return
	}
	select {
	case c.Send <- raw:
	default:
		globals.AppLogger.Warn("send buffer full, dropping message", "client", c.Id, "event", event)
	}
}

func (h *Hub) broadcastEvent(rs *roomState, skip *Client, event string, payload interface{}) {
	raw, err := types.MarshalWebsocketMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal ws message", "event", event, "error", err)
		return
	}
	for c := range rs.clients {
		if c == skip {
			continue
		}
		select {
		case c.Send <- raw:
		default:
			globals.AppLogger.Warn("send buffer full, dropping message", "client", c.Id, "event", event)
		}
	}
}
