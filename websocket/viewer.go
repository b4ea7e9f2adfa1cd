package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/hexsphere/models"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the header where viewers pass their id.
const HeaderClientID = "X-Client-ID"

// ViewerHandler represents a service that streams the chunks of the scene to
// a viewer and forwards its point of view to the camera.
type ViewerHandler struct {
	// The interval between each sync clock message sent to the connected
	// client.
	ClientSyncClockInterval time.Duration

	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The camera updated by the viewer.
	Camera *models.Camera

	// The hub that sends chunk messages.
	Hub *Hub

	conn        *websocket.Conn
	clientID    string
	unsubscribe func()
}

func (h *ViewerHandler) HandleConnect(conn *websocket.Conn) {
	h.conn = conn

	if req := conn.Request(); req != nil {
		h.clientID = req.Header.Get(HeaderClientID)
	}
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
}

func (h *ViewerHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(Msg{
		Type:      MsgTypePong,
		Timestamp: time.Now(),
		RequestID: msg.RequestID,
	})
	return nil
}

func (h *ViewerHandler) HandlePOV(ctx context.Context, respond ResponseSender, msg Msg) error {
	if msg.POV == nil || !h.Camera.Set(*msg.POV) {
		respond.Send(Msg{
			Type:      MsgTypeError,
			Timestamp: time.Now(),
			RequestID: msg.RequestID,
			Error:     "invalid point of view",
		})
	}
	return nil
}

func (h *ViewerHandler) HandleSubscribe(ctx context.Context, respond ResponseSender, msg Msg) error {
	if h.unsubscribe == nil {
		h.unsubscribe = h.Hub.Subscribe(respond)
	}
	return nil
}

func (h *ViewerHandler) HandleDisconnect(_ error) {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

func (h *ViewerHandler) SendSyncClock(ctx context.Context, respond ResponseSender) error {
	respond.Send(Msg{
		Type:      MsgTypeSyncClock,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *ViewerHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *ViewerHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *ViewerHandler) Close() {
}

func (h *ViewerHandler) SyncClockInterval() time.Duration {
	return h.ClientSyncClockInterval
}

func (h *ViewerHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ViewerHandler) GetClientID() string {
	return h.clientID
}
