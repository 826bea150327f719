package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nhoover/coderoom/config"
	"github.com/nhoover/coderoom/persistence"
	"github.com/nhoover/coderoom/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T, cfg *config.Config) (*Hub, persistence.Store) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	store := persistence.NewMemoryStore()
	h := NewHub(cfg, store)
	go h.Run()
	return h, store
}

func newTestClient(h *Hub, id string) *Client {
	c := &Client{
		hub:  h,
		Send: make(chan []byte, sendChannelSize),
		Id:   id,
	}
	h.Register <- c
	return c
}

// join mirrors the read-loop dispatch: load first, then hand the content to
// the hub loop.
func join(t *testing.T, h *Hub, store persistence.Store, c *Client, roomID, nick string) {
	t.Helper()
	doc, err := store.Load(roomID)
	require.NoError(t, err)
	h.events <- evJoin{client: c, roomID: roomID, nick: nick, content: doc.Content}
}

func nextMessage(t *testing.T, c *Client) types.WebsocketMessage {
	t.Helper()
	select {
	case raw := <-c.Send:
		msg := types.WebsocketMessage{}
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return types.WebsocketMessage{}
}

func expectEvent(t *testing.T, c *Client, event string) json.RawMessage {
	t.Helper()
	msg := nextMessage(t, c)
	require.Equal(t, event, msg.Event)
	return msg.Data
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func TestJoinDeliversDocumentAndRoster(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	join(t, h, store, c1, "r1", "alice")

	var content string
	require.NoError(t, json.Unmarshal(expectEvent(t, c1, types.EventLoadDocument), &content))
	assert.Contains(t, content, "r1")

	var roster []types.RosterEntry
	require.NoError(t, json.Unmarshal(expectEvent(t, c1, types.EventUsers), &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "alice", roster[0].Username)

	var count int
	require.NoError(t, json.Unmarshal(expectEvent(t, c1, types.EventUserCount), &count))
	assert.Equal(t, 1, count)

	c2 := newTestClient(h, "c2")
	join(t, h, store, c2, "r1", "bob")

	// everyone, joiner included, gets the updated roster exactly once
	require.NoError(t, json.Unmarshal(expectEvent(t, c1, types.EventUsers), &roster))
	require.Len(t, roster, 2)
	assert.Equal(t, "alice", roster[0].Username)
	assert.Equal(t, "bob", roster[1].Username)

	expectEvent(t, c2, types.EventLoadDocument)
	require.NoError(t, json.Unmarshal(expectEvent(t, c2, types.EventUsers), &roster))
	require.Len(t, roster, 2)
}

func TestRoomSwitch(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	c2 := newTestClient(h, "c2")
	join(t, h, store, c1, "a", "alice")
	join(t, h, store, c2, "a", "bob")
	drain(c1)
	drain(c2)

	join(t, h, store, c1, "b", "alice")

	// the old room sees the departure
	var roster []types.RosterEntry
	require.NoError(t, json.Unmarshal(expectEvent(t, c2, types.EventUsers), &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].Username)

	// the mover gets the new room's document
	var content string
	require.NoError(t, json.Unmarshal(expectEvent(t, c1, types.EventLoadDocument), &content))
	assert.Contains(t, content, "b")
}

func TestEmptyRoomDropped(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	join(t, h, store, c1, "r1", "alice")
	require.Eventually(t, func() bool { return h.RoomCount() == 1 }, time.Second, 10*time.Millisecond)

	h.Unregister <- c1
	require.Eventually(t, func() bool { return h.RoomCount() == 0 && h.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestChangesRelayedToOthersOnly(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	c2 := newTestClient(h, "c2")
	join(t, h, store, c1, "r1", "alice")
	join(t, h, store, c2, "r1", "bob")
	drain(c1)
	drain(c2)

	delta := types.Delta{Start: 3, End: 5, Text: "xyz"}
	h.events <- evChanges{client: c1, roomID: "r1", delta: delta}

	var got types.Delta
	require.NoError(t, json.Unmarshal(expectEvent(t, c2, types.EventReceiveChanges), &got))
	assert.Equal(t, delta, got)
	assert.Len(t, c1.Send, 0)

	// a delta for a room the sender is not in is dropped
	h.events <- evChanges{client: c1, roomID: "other", delta: delta}
	h.events <- evChat{client: c1, roomID: "r1", message: "sync"}
	expectEvent(t, c2, types.EventChatMessage)
	assert.Equal(t, 1, len(c1.Send)) // only the chat echo
}

func TestChatIncludesSender(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	c2 := newTestClient(h, "c2")
	join(t, h, store, c1, "r1", "alice")
	join(t, h, store, c2, "r1", "bob")
	drain(c1)
	drain(c2)

	h.events <- evChat{client: c1, roomID: "r1", message: "hi there"}

	for _, c := range []*Client{c1, c2} {
		var msg types.ChatMessage
		require.NoError(t, json.Unmarshal(expectEvent(t, c, types.EventChatMessage), &msg))
		assert.Equal(t, "alice", msg.Nick)
		assert.Equal(t, "hi there", msg.Message)
		assert.NotEmpty(t, msg.Id)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestCursorRelay(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	c2 := newTestClient(h, "c2")
	join(t, h, store, c1, "r1", "alice")
	join(t, h, store, c2, "r1", "bob")
	drain(c1)
	drain(c2)

	h.events <- evCursor{client: c1, roomID: "r1", offset: 42}

	var update types.CursorUpdate
	require.NoError(t, json.Unmarshal(expectEvent(t, c2, types.EventCursorUpdate), &update))
	assert.Equal(t, "alice", update.Nick)
	assert.Equal(t, "c1", update.ClientId)
	assert.Equal(t, 42, update.Offset)
	assert.Len(t, c1.Send, 0)
}

func TestSaveFlushesImmediatelyWithoutDebounce(t *testing.T) {
	h, store := newTestHub(t, &config.Config{})
	c1 := newTestClient(h, "c1")
	join(t, h, store, c1, "r1", "alice")
	drain(c1)

	h.events <- evSave{client: c1, roomID: "r1", content: "saved now"}
	require.Eventually(t, func() bool {
		doc, err := store.Load("r1")
		return err == nil && doc.Content == "saved now"
	}, time.Second, 10*time.Millisecond)
}

func TestSaveDebounceCoalesces(t *testing.T) {
	cfg := &config.Config{}
	cfg.EditorConfig.SaveDebounce = 50 * time.Millisecond
	h, store := newTestHub(t, cfg)
	c1 := newTestClient(h, "c1")
	join(t, h, store, c1, "r1", "alice")
	drain(c1)

	h.events <- evSave{client: c1, roomID: "r1", content: "v1"}
	h.events <- evSave{client: c1, roomID: "r1", content: "v2"}

	require.Eventually(t, func() bool {
		doc, err := store.Load("r1")
		return err == nil && doc.Content == "v2"
	}, time.Second, 10*time.Millisecond)

	// only the last content in the window was written
	versions, err := store.ListVersions("r1")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestPendingSaveFlushedOnRoomDrop(t *testing.T) {
	cfg := &config.Config{}
	cfg.EditorConfig.SaveDebounce = time.Hour
	h, store := newTestHub(t, cfg)
	c1 := newTestClient(h, "c1")
	join(t, h, store, c1, "r1", "alice")
	drain(c1)

	h.events <- evSave{client: c1, roomID: "r1", content: "last words"}
	h.Unregister <- c1

	require.Eventually(t, func() bool {
		doc, err := store.Load("r1")
		return err == nil && doc.Content == "last words"
	}, time.Second, 10*time.Millisecond)
}

func TestPushContentBroadcast(t *testing.T) {
	h, store := newTestHub(t, nil)
	c1 := newTestClient(h, "c1")
	c2 := newTestClient(h, "c2")
	join(t, h, store, c1, "r1", "alice")
	join(t, h, store, c2, "r1", "bob")
	drain(c1)
	drain(c2)

	h.PushContent("r1", "restored content")
	for _, c := range []*Client{c1, c2} {
		var content string
		require.NoError(t, json.Unmarshal(expectEvent(t, c, types.EventLoadDocument), &content))
		assert.Equal(t, "restored content", content)
	}
}
