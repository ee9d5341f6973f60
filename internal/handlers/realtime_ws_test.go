package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
)

type wireFrame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func dialRealtime(t *testing.T, ctx context.Context, srv *httptest.Server, token string, subprotocols ...string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", "auth_token="+token)
	}
	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/realtime/ws", &websocket.DialOptions{
		Subprotocols: subprotocols,
		HTTPHeader:   header,
	})
	require.NoError(t, err)
	return c
}

func readFrame(t *testing.T, ctx context.Context, c *websocket.Conn) wireFrame {
	t.Helper()
	var f wireFrame
	require.NoError(t, wsjson.Read(ctx, c, &f))
	return f
}

func TestRealtimeUnreadCount(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	me := uuid.New()
	s.source.set(2)
	c := dialRealtime(t, ctx, srv, tokenFor(t, me), realtimeSubprotocol)
	defer c.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, c, realtime.Request{Type: "subscribe", Topic: realtime.TopicUnreadCount}))
	assert.Equal(t, realtime.FrameSubscribed, readFrame(t, ctx, c).Type)

	snap := readFrame(t, ctx, c)
	assert.Equal(t, realtime.FrameSnapshot, snap.Type)
	assert.JSONEq(t, `{"count":2}`, string(snap.Data))

	// an incoming message for me refreshes the count
	s.source.set(3)
	e, err := realtime.NewEvent("messages", realtime.Insert,
		models.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: me, Content: "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Hub.Dispatch(e))

	snap = readFrame(t, ctx, c)
	assert.Equal(t, realtime.FrameSnapshot, snap.Type)
	assert.JSONEq(t, `{"count":3}`, string(snap.Data))

	// a message for someone else is not delivered
	e, err = realtime.NewEvent("messages", realtime.Insert,
		models.Message{ID: uuid.New(), SenderID: me, ReceiverID: uuid.New(), Content: "yo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Hub.Dispatch(e))
}

func TestRealtimeRejectsForeignFilter(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialRealtime(t, ctx, srv, tokenFor(t, uuid.New()), realtimeSubprotocol)
	defer c.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, c, realtime.Request{
		Type:   "subscribe",
		Topic:  realtime.TopicChanges,
		Event:  "*",
		Table:  "messages",
		Filter: "receiver_id=eq." + uuid.NewString(),
	}))
	f := readFrame(t, ctx, c)
	assert.Equal(t, realtime.FrameError, f.Type)
	assert.Contains(t, f.Message, "own rows")

	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("{not json")))
	f = readFrame(t, ctx, c)
	assert.Equal(t, realtime.FrameError, f.Type)
}

func TestRealtimeCloseCodes(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("no session", func(t *testing.T) {
		c := dialRealtime(t, ctx, srv, "", realtimeSubprotocol)
		_, _, err := c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), websocket.CloseStatus(err))
	})
	t.Run("no subprotocol", func(t *testing.T) {
		c := dialRealtime(t, ctx, srv, tokenFor(t, uuid.New()))
		_, _, err := c.Read(ctx)
		assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
	})
}
