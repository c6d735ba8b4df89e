package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	vapi "github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/server/handlers/api"
)

const maxMessageSize = 64 * 1024

// WebsocketHub fans change notifications out to the connected clients of each user
type WebsocketHub struct {
	clients  map[string]*WebsocketClient // ConnID -> client
	register chan *WebsocketClient

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

func NewHub() *WebsocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebsocketHub{
		clients:  make(map[string]*WebsocketClient),
		register: make(chan *WebsocketClient),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (h *WebsocketHub) Run(ctx context.Context) {
	slog.Info("wshub started")
	defer slog.Info("wshub stopped")

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConnID] = client
			slog.Debug("wshub registered", "connId", client.ConnID, "user", client.Info.User, "active", len(h.clients))
			h.mu.Unlock()

			h.wg.Add(1)
			client.Start(h.ctx)
			go func() {
				<-client.Closed

				h.mu.Lock()
				delete(h.clients, client.ConnID)
				slog.Debug("wshub removed", "connId", client.ConnID, "user", client.Info.User, "active", len(h.clients))
				h.mu.Unlock()
				h.wg.Done()
			}()

		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every client and waits for them to go away
func (h *WebsocketHub) Shutdown() {
	h.cancel()

	h.mu.RLock()
	for _, client := range h.clients {
		client.Close()
	}
	h.mu.RUnlock()

	h.wg.Wait()
	slog.Info("wshub shutdown")
}

// NotifyUser tells every client of user that its tree changed at version
func (h *WebsocketHub) NotifyUser(user string, version uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	event := &vapi.Event{Type: vapi.EventTypeUpdates, Version: version}
	sent := 0
	for _, client := range h.clients {
		if client.Info.User != user {
			continue
		}
		select {
		case client.MsgTx <- event:
			sent++
		default:
			slog.Warn("wshub send buffer full", "connId", client.ConnID, "user", user)
		}
	}
	return sent
}

// WebsocketHandler upgrades the request and registers the client with the hub
func (h *WebsocketHub) WebsocketHandler(ctx *gin.Context) {
	user := ctx.GetString("user")
	if user == "" {
		api.AbortWithError(ctx, http.StatusUnauthorized, vapi.CodeAccessDenied, fmt.Errorf("user missing"))
		return
	}

	conn, err := websocket.Accept(ctx.Writer, ctx.Request, nil)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, vapi.CodeInvalidRequest, fmt.Errorf("websocket accept failed: %w", err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := NewWebsocketClient(conn, &ClientInfo{
		User:    user,
		IPAddr:  ctx.ClientIP(),
		Headers: ctx.Request.Header.Clone(),
		Version: ctx.GetHeader("X-Syft-Version"),
	})

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusGoingAway, shutdownReason)
	}
}
