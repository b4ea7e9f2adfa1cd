package websocket

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/models"
)

// Hub fans chunk changes out to subscribed viewers. Its listener methods and
// HandleFrame are called from the frame loop.
type Hub struct {
	mutex    sync.RWMutex
	managers []*chunks.Manager
	clients  map[uint32]*hubClient
	pending  map[uint32]*hubClient
	ids      models.SequentialIDGenerator
}

// hubClient is a subscription. Ids are reused once a client is dropped, so
// cancel matches the subscription and not only its id.
type hubClient struct {
	ResponseSender
}

// AddManager makes the hub listen to the chunks of the given manager.
func (h *Hub) AddManager(m *chunks.Manager) {
	h.mutex.Lock()
	h.managers = append(h.managers, m)
	h.mutex.Unlock()

	m.AddListener(h)
}

// Subscribe registers a viewer. It starts receiving chunk messages on the
// next frame, beginning with every chunk that has a mesh.
func (h *Hub) Subscribe(client ResponseSender) (cancel func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.pending == nil {
		h.pending = make(map[uint32]*hubClient)
		h.clients = make(map[uint32]*hubClient)
	}

	id := h.ids.New()
	sub := &hubClient{ResponseSender: client}
	h.pending[id] = sub

	return func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()

		switch {
		case h.pending[id] == sub:
			delete(h.pending, id)
		case h.clients[id] == sub:
			delete(h.clients, id)
		default:
			return
		}

		h.ids.Reuse(id)
		instrumentHubClients(len(h.clients))
	}
}

// ClientCount returns the number of viewers receiving chunk messages.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

// HandleFrame sends the current chunks to the viewers that subscribed since
// the last frame.
func (h *Hub) HandleFrame() {
	h.mutex.Lock()
	pending := h.pending
	if len(pending) == 0 {
		h.mutex.Unlock()
		return
	}
	h.pending = make(map[uint32]*hubClient)
	managers := h.managers
	h.mutex.Unlock()

	var msgs []Msg
	for _, m := range managers {
		for _, c := range m.Chunks() {
			msgs = append(msgs, chunkReadyMsg(c))
		}
	}

	for id, client := range pending {
		ok := true
		for _, msg := range msgs {
			if ok = client.Send(msg); !ok {
				break
			}
		}

		if !ok {
			logs.WithTag("client", id).Debug("viewer dropped during sync")
			h.ids.Reuse(id)
			continue
		}

		h.mutex.Lock()
		h.clients[id] = client
		instrumentHubClients(len(h.clients))
		h.mutex.Unlock()
	}
}

func (h *Hub) ChunkReady(c *chunks.Chunk) {
	h.broadcast(chunkReadyMsg(c))
}

func (h *Hub) ChunkRemoved(c *chunks.Chunk) {
	h.broadcast(Msg{
		Type:      MsgTypeChunkRemoved,
		Timestamp: time.Now(),
		Chunk: &ChunkMsg{
			Body:  c.Body.ID,
			Index: c.Index,
			ID:    c.ID,
		},
	})
}

// ChunkPainted sends the new colors of a chunk mesh.
func (h *Hub) ChunkPainted(c *chunks.Chunk, painted []int) {
	res := c.Result()
	if res == nil {
		return
	}

	h.broadcast(Msg{
		Type:      MsgTypeChunkPainted,
		Timestamp: time.Now(),
		Chunk: &ChunkMsg{
			Body:    c.Body.ID,
			Index:   c.Index,
			ID:      c.ID,
			Painted: painted,
			Colors:  append([]geometry.Color(nil), res.Mesh.Colors...),
		},
	})
}

func (h *Hub) broadcast(msg Msg) {
	h.mutex.RLock()
	dropped := make(map[uint32]*hubClient)
	for id, client := range h.clients {
		if !client.Send(msg) {
			dropped[id] = client
		}
	}
	h.mutex.RUnlock()

	if len(dropped) == 0 {
		return
	}

	h.mutex.Lock()
	for id, client := range dropped {
		if h.clients[id] != client {
			continue
		}
		delete(h.clients, id)
		h.ids.Reuse(id)
	}
	instrumentHubClients(len(h.clients))
	h.mutex.Unlock()
}

// chunkReadyMsg copies the mutable parts of the chunk mesh so that the
// message can be encoded outside of the frame loop.
func chunkReadyMsg(c *chunks.Chunk) Msg {
	res := c.Result()
	mesh := *res.Mesh
	mesh.Colors = append([]geometry.Color(nil), res.Mesh.Colors...)

	return Msg{
		Type:      MsgTypeChunkReady,
		Timestamp: time.Now(),
		Chunk: &ChunkMsg{
			Body:  c.Body.ID,
			Index: c.Index,
			ID:    c.ID,
			Cells: res.Cells,
			Mesh:  &mesh,
		},
	}
}
