package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/models"
	"github.com/aukilabs/hexsphere/octree"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeBadMessage = "bad_message"
	ErrTypeSlowClient = "slow_client"
)

type MsgType string

const (
	// Sent by viewers.
	MsgTypePOV       MsgType = "pov"
	MsgTypeSubscribe MsgType = "subscribe"
	MsgTypePing      MsgType = "ping"

	// Sent by the server.
	MsgTypePong         MsgType = "pong"
	MsgTypeSyncClock    MsgType = "sync_clock"
	MsgTypeChunkReady   MsgType = "chunk_ready"
	MsgTypeChunkRemoved MsgType = "chunk_removed"
	MsgTypeChunkPainted MsgType = "chunk_painted"
	MsgTypeError        MsgType = "error"
)

// Msg is a message exchanged with viewers.
type Msg struct {
	Type      MsgType   `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID uint32    `json:"request_id,omitempty"`

	POV   *models.POV `json:"pov,omitempty"`
	Chunk *ChunkMsg   `json:"chunk,omitempty"`
	Error string      `json:"error,omitempty"`
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// ChunkMsg describes a chunk of a body. Only the fields relevant to the
// message type are set.
type ChunkMsg struct {
	Body  string       `json:"body"`
	Index octree.Index `json:"index"`
	ID    uint32       `json:"id,omitempty"`

	// The global cell ids of the chunk.
	Cells []int `json:"cells,omitempty"`

	Mesh *geometry.Mesh `json:"mesh,omitempty"`

	// The painted cells and the mesh colors after painting.
	Painted []int            `json:"painted,omitempty"`
	Colors  []geometry.Color `json:"colors,omitempty"`
}

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender sends messages to a connected client. Send never blocks and
// returns false when the message is dropped.
type ResponseSender interface {
	Send(Msg) bool
}

// Receive reads a message from the connection.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, len(data), errors.New("decoding message failed").
			WithType(ErrTypeBadMessage).
			Wrap(err)
	}
	return msg, len(data), nil
}

// Send writes a message to the connection as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.New("encoding message failed").
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(data)); err != nil {
		return 0, err
	}
	return len(data), nil
}
