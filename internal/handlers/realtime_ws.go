// internal/handlers/realtime_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/campus/internal/auth"
	"github.com/jason-s-yu/campus/internal/middleware"
	"github.com/jason-s-yu/campus/internal/realtime"
)

const (
	realtimeSubprotocol = "realtime"
	pingInterval        = 30 * time.Second
	outboundBuffer      = 32
)

// RealtimeWSHandler upgrades to the realtime subprotocol and runs one realtime.Session.
// Browsers that cannot send the cookie may pass ?token=.
func (s *Server) RealtimeWSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{realtimeSubprotocol},
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.Logger.Warnf("websocket accept error: %v", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "handler finished")

	if c.Subprotocol() != realtimeSubprotocol {
		c.Close(BadSubprotocolError, "client must speak the realtime subprotocol")
		return
	}

	token := sessionToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	userID, err := auth.AuthenticateJWT(token)
	if err != nil {
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}

	middleware.LogWebSocketConnect(s.Logger, r.RemoteAddr, r.URL.Path)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan realtime.Frame, outboundBuffer)
	send := func(f realtime.Frame) bool {
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		default:
			return false
		}
	}
	session := realtime.NewSession(ctx, userID, s.Hub, s.Source, send, s.Logger)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writePump(ctx, c, out, s.Logger, userID)
		cancel()
	}()
	err = readPump(ctx, c, session, send, s.Logger, userID)

	cancel()
	<-writerDone
	session.Close()
	middleware.LogWebSocketDisconnect(s.Logger, r.RemoteAddr, r.URL.Path, err)
	c.Close(websocket.StatusNormalClosure, "")
}

// readPump feeds client frames to the session until the connection closes.
// A normal close or a cancelled context returns nil.
func readPump(ctx context.Context, c *websocket.Conn, session *realtime.Session, send func(realtime.Frame) bool, logger *logrus.Logger, userID uuid.UUID) error {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("realtime: non-text frame from user %v ignored", userID)
			continue
		}

		var req realtime.Request
		if err := json.Unmarshal(data, &req); err != nil {
			send(realtime.Frame{Type: realtime.FrameError, Message: "invalid JSON format"})
			continue
		}
		session.Handle(req)
	}
}

// writePump writes queued frames and pings the client every pingInterval.
func writePump(ctx context.Context, c *websocket.Conn, out <-chan realtime.Frame, logger *logrus.Logger, userID uuid.UUID) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, c, f)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("realtime: failed to write to user %v: %v", userID, err)
				}
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("realtime: ping to user %v failed: %v", userID, err)
				}
				return
			}
		}
	}
}

// originPatterns turns the allowed CORS origins into the host patterns websocket.Accept expects.
func (s *Server) originPatterns() []string {
	if s.Config == nil {
		return nil
	}
	var out []string
	for _, o := range s.Config.AllowedOrigins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
