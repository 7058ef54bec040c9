package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/steemburnpool/burnboard/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "snapshot", "ping"
	Payload interface{} `json:"payload"` // Event-specific data
}

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// HandleWebSocket upgrades the connection and streams a snapshot after every
// store mutation, starting with the current one. Clients that fall behind
// have intermediate snapshots dropped; the next delivered one is always the
// latest.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if cerr := conn.Close(); cerr != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(cerr))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	send := make(chan ServerMessage, 16)

	// Seed the stream before subscribing so the client always has a frame.
	send <- ServerMessage{Type: "snapshot", Payload: c.App.Store.GetData()}

	unsubscribe := c.App.Store.Subscribe(func(snap store.Snapshot) {
		select {
		case send <- ServerMessage{Type: "snapshot", Payload: snap}:
		default:
			// Slow client: drop, a newer snapshot will follow.
		}
	})
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in WebSocket writer goroutine",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", r.RemoteAddr))
			}
			cancel()
		}()
		c.writeMessages(ctx, conn, send)
	}()

	// Read until the client disconnects; incoming frames are ignored.
	for {
		if _, _, rerr := conn.ReadMessage(); rerr != nil {
			break
		}
	}

	cancel()
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

// writeMessages is the single writer for the connection: snapshots from the
// send channel interleaved with keep-alive pings.
func (c *Controller) writeMessages(ctx context.Context, conn *websocket.Conn, send <-chan ServerMessage) {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			ping := ServerMessage{
				Type:    "ping",
				Payload: map[string]int64{"timestamp": time.Now().UnixMilli()},
			}
			if err := conn.WriteJSON(ping); err != nil {
				return
			}
		}
	}
}
