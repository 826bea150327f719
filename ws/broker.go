package ws

import (
	"time"

	"github.com/nhoover/coderoom/globals"
	"github.com/nhoover/coderoom/types"
)

// Folder sharing and file requests. The server never sees file bodies ahead of
// time: it relays a content-free tree on share and brokers point-to-point
// requests between a requester and the room's owner, correlated by requester
// identity and path.

func (h *Hub) handleShareFolder(ev evShareFolder) {
	if ev.client.room != ev.roomID {
		return
	}
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	// republishing replaces folder and owner, no merge
	rs.owner = ev.client
	rs.ownerId = ev.client.Id
	rs.folder = &types.SharedFolder{
		Tree:     ev.tree,
		RootPath: ev.rootPath,
		SharedBy: ev.client.nick,
		SharedAt: time.Now(),
	}
	h.broadcastEvent(rs, nil, types.EventSharedFolder, h.folderInfo(rs))
	globals.AppLogger.Info("folder shared", "room", ev.roomID, "owner", ev.client.nick, "root", ev.rootPath)
}

func (h *Hub) folderInfo(rs *roomState) types.SharedFolderInfo {
	return types.SharedFolderInfo{
		Tree:     rs.folder.Tree,
		RootPath: rs.folder.RootPath,
		Owner:    rs.folder.SharedBy,
		OwnerId:  rs.ownerId,
		SharedAt: rs.folder.SharedAt,
	}
}

func (h *Hub) handleRequestFile(ev evRequestFile) {
	if ev.client.room != ev.roomID {
		return
	}
	rs, ok := h.rooms[ev.roomID]
	if !ok {
		return
	}
	if rs.owner == nil {
		h.sendEvent(ev.client, types.EventFileContent, types.FileContentPayload{
			Path:  ev.path,
			Error: "no shared folder owner is online",
		})
		return
	}
	key := pendingKey{requesterId: ev.client.Id, path: ev.path}
	if _, outstanding := rs.pending[key]; outstanding {
		// one outstanding request per requester/path pair
		return
	}
	rs.pending[key] = &pendingRequest{requester: ev.client, created: time.Now()}
	h.sendEvent(rs.owner, types.EventFileRequest, types.FileRequestNotice{
		Path:          ev.path,
		RequesterId:   ev.client.Id,
		RequesterName: ev.client.nick,
	})
}

// handleFileContent relays the owner's answer to the original requester only,
// never to the rest of the room.
func (h *Hub) handleFileContent(ev evFileContent) {
	rs, ok := h.rooms[ev.client.room]
	if !ok || rs.owner != ev.client {
		return
	}
	key := pendingKey{requesterId: ev.payload.RequesterId, path: ev.payload.Path}
	req, ok := rs.pending[key]
	if !ok {
		return
	}
	delete(rs.pending, key)
	h.sendEvent(req.requester, types.EventFileContent, types.FileContentPayload{
		Path:    ev.payload.Path,
		Content: ev.payload.Content,
		Error:   ev.payload.Error,
	})
}

// handleSweep expires requests whose owner never answered within the
// configured timeout and reports the failure to the requester.
func (h *Hub) handleSweep(ev evSweep) {
	timeout := h.cfg.BrokerConfig.RequestTimeout
	if timeout <= 0 {
		return
	}
	for _, rs := range h.rooms {
		for key, req := range rs.pending {
			if ev.now.Sub(req.created) < timeout {
				continue
			}
			delete(rs.pending, key)
			h.sendEvent(req.requester, types.EventFileContent, types.FileContentPayload{
				Path:  key.path,
				Error: "file request timed out",
			})
		}
	}
}

// dropRequester forgets the pending requests a leaving participant issued.
func (h *Hub) dropRequester(rs *roomState, c *Client) {
	for key, req := range rs.pending {
		if req.requester == c {
			delete(rs.pending, key)
		}
	}
}

// dropOwner clears the owner of a room when that connection leaves. Requests
// already forwarded to it can never be answered, so they fail immediately
// instead of waiting for the sweep. The published tree stays visible; new
// requests are rejected until someone shares again.
func (h *Hub) dropOwner(rs *roomState) {
	rs.owner = nil
	rs.ownerId = ""
	for key, req := range rs.pending {
		delete(rs.pending, key)
		h.sendEvent(req.requester, types.EventFileContent, types.FileContentPayload{
			Path:  key.path,
			Error: "the folder owner disconnected",
		})
	}
}
