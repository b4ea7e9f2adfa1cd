package websocket

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/geometry"
	"github.com/aukilabs/hexsphere/models"
	"github.com/stretchr/testify/require"
)

func TestHandlerWithLogsPOV(t *testing.T) {
	t.Run("point of view is logged", func(t *testing.T) {
		logged := captureLogs(t)
		camera := models.NewCamera(models.DefaultPOV)

		h := HandlerWithLogs(&ViewerHandler{clientID: "viewer-1", Camera: camera}, time.Hour)
		defer h.Close()

		pov := models.POV{Position: geometry.NewVector3f(0, 0, 2), FOV: 1}
		err := h.HandlePOV(context.Background(), &testResponseSender{}, Msg{
			Type: MsgTypePOV,
			POV:  &pov,
		})
		require.NoError(t, err)
		require.Equal(t, pov, camera.POV())

		entry, ok := logged.find("point of view received")
		require.True(t, ok)
		require.Equal(t, logs.DebugLevel, entry.Level())
		require.Equal(t, "viewer-1", entry.Tags()[logs.ClientIDTag])
		require.Equal(t, &pov, entry.Tags()["pov"])
	})

	t.Run("missing point of view is not logged", func(t *testing.T) {
		logged := captureLogs(t)
		camera := models.NewCamera(models.DefaultPOV)

		h := HandlerWithLogs(&ViewerHandler{clientID: "viewer-1", Camera: camera}, time.Hour)
		defer h.Close()

		respond := &testResponseSender{}
		err := h.HandlePOV(context.Background(), respond, Msg{Type: MsgTypePOV})
		require.NoError(t, err)
		require.Len(t, respond.Msgs(), 1)
		require.Equal(t, MsgTypeError, respond.Msgs()[0].Type)

		_, ok := logged.find("point of view received")
		require.False(t, ok)
	})
}

func TestHandlerWithLogsDisconnect(t *testing.T) {
	t.Run("closed connection has no reason", func(t *testing.T) {
		logged := captureLogs(t)
		hub := &Hub{}

		h := HandlerWithLogs(&ViewerHandler{clientID: "viewer-1", Hub: hub}, time.Hour)
		defer h.Close()

		err := h.HandleSubscribe(context.Background(), &testResponseSender{}, Msg{Type: MsgTypeSubscribe})
		require.NoError(t, err)
		require.Equal(t, 1, hub.ids.InUse())

		entry, ok := logged.find("viewer subscribed to chunks")
		require.True(t, ok)
		require.Equal(t, "viewer-1", entry.Tags()[logs.ClientIDTag])

		h.HandleDisconnect(io.EOF)
		require.Zero(t, hub.ids.InUse())

		entry, ok = logged.find("viewer disconnected")
		require.True(t, ok)
		require.Equal(t, logs.InfoLevel, entry.Level())
		require.NotContains(t, entry.Tags(), "reason")
		require.NotContains(t, entry.Tags(), "error_type")
	})

	t.Run("canceled context has no reason", func(t *testing.T) {
		logged := captureLogs(t)

		h := HandlerWithLogs(&ViewerHandler{clientID: "viewer-1"}, time.Hour)
		defer h.Close()

		h.HandleDisconnect(context.Canceled)

		entry, ok := logged.find("viewer disconnected")
		require.True(t, ok)
		require.NotContains(t, entry.Tags(), "reason")
	})

	t.Run("slow viewer is tagged", func(t *testing.T) {
		logged := captureLogs(t)

		h := HandlerWithLogs(&ViewerHandler{clientID: "viewer-2"}, time.Hour)
		defer h.Close()

		h.HandleDisconnect(errors.New("viewer is too slow").WithType(ErrTypeSlowClient))

		entry, ok := logged.find("viewer disconnected")
		require.True(t, ok)
		require.Equal(t, "viewer-2", entry.Tags()[logs.ClientIDTag])
		require.Equal(t, ErrTypeSlowClient, entry.Tags()["error_type"])
		require.Contains(t, entry.Tags()["reason"], "viewer is too slow")
	})
}

func TestHandlerWithLogsSummary(t *testing.T) {
	t.Run("received messages are counted per type", func(t *testing.T) {
		logged := captureLogs(t)

		h := HandlerWithLogs(&ViewerHandler{clientID: "viewer-1"}, time.Hour).(*handlerWithLogs)
		defer h.Close()

		h.incCounter(string(MsgTypePOV))
		h.incCounter(string(MsgTypePOV))
		h.incCounter(string(MsgTypeSubscribe))
		h.logSummary()
		require.Empty(t, h.counter)

		entry, ok := logged.find("inbound message summary")
		require.True(t, ok)
		require.Equal(t, 2, entry.Tags()[string(MsgTypePOV)])
		require.Equal(t, 1, entry.Tags()[string(MsgTypeSubscribe)])
		require.Equal(t, "viewer-1", entry.Tags()[logs.ClientIDTag])
	})

	t.Run("nothing received is not logged", func(t *testing.T) {
		logged := captureLogs(t)

		h := HandlerWithLogs(&ViewerHandler{}, time.Hour).(*handlerWithLogs)
		defer h.Close()

		h.logSummary()
		_, ok := logged.find("inbound message summary")
		require.False(t, ok)
	})

	t.Run("summary is logged periodically", func(t *testing.T) {
		logged := captureLogs(t)

		h := HandlerWithLogs(&ViewerHandler{}, time.Millisecond).(*handlerWithLogs)
		defer h.Close()

		h.incCounter(string(MsgTypePing))
		require.Eventually(t, func() bool {
			_, ok := logged.find("inbound message summary")
			return ok
		}, time.Second*5, time.Millisecond*10)
	})
}

type testLogs struct {
	mutex   sync.Mutex
	entries []logs.Entry
}

// captureLogs records the log entries of a test, debug level included.
func captureLogs(t *testing.T) *testLogs {
	l := &testLogs{}
	logs.SetLogger(func(e logs.Entry) {
		l.mutex.Lock()
		defer l.mutex.Unlock()

		l.entries = append(l.entries, e)
	})
	logs.SetLevel(logs.DebugLevel)

	t.Cleanup(func() {
		logs.SetLogger(func(e logs.Entry) { fmt.Println(e) })
	})
	return l
}

func (l *testLogs) find(msg string) (logs.Entry, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, e := range l.entries {
		if strings.Contains(e.String(), msg) {
			return e, true
		}
	}
	return nil, false
}
