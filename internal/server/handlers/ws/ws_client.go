package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/openmined/syftvault/internal/api"
)

const (
	writeTimeout   = 20 * time.Second
	shutdownReason = "shutdown"
	sendBufferSize = 32
)

// WebsocketClient is one connected events subscriber. The server only
// pushes, anything the client sends is read and discarded.
type WebsocketClient struct {
	ConnID string
	Info   *ClientInfo
	MsgTx  chan *api.Event
	Closed chan struct{}

	conn      *websocket.Conn
	wsDone    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWebsocketClient(conn *websocket.Conn, info *ClientInfo) *WebsocketClient {
	return &WebsocketClient{
		ConnID: uuid.NewString()[:8],
		Info:   info,
		MsgTx:  make(chan *api.Event, sendBufferSize),
		Closed: make(chan struct{}),
		wsDone: make(chan struct{}),
		conn:   conn,
	}
}

func (c *WebsocketClient) Start(ctx context.Context) {
	slog.Debug("wsclient start", "connId", c.ConnID, "user", c.Info.User)
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx)
}

func (c *WebsocketClient) Close() {
	c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
}

func (c *WebsocketClient) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.wsDone)
		c.conn.Close(status, reason)

		go func() {
			c.wg.Wait()
			close(c.Closed)
			slog.Debug("wsclient closed", "connId", c.ConnID)
		}()
	})
}

func (c *WebsocketClient) readLoop(ctx context.Context) {
	defer func() {
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	}()

	for {
		var discard any
		err := wsjson.Read(ctx, c.conn, &discard)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				// connection closed by client
			} else if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && status != websocket.StatusNoStatusRcvd {
				slog.Warn("wsclient reader", "error", err, "connId", c.ConnID)
			}
			return
		}
	}
}

func (c *WebsocketClient) writeLoop(ctx context.Context) {
	defer func() {
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, shutdownReason)
	}()

	for {
		select {
		case event := <-c.MsgTx:
			ctxWrite, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(ctxWrite, c.conn, event)
			cancel()
			if err != nil {
				slog.Error("wsclient writer", "connId", c.ConnID, "type", event.Type, "error", err)
				return
			}

		case <-c.wsDone:
			return

		case <-ctx.Done():
			return
		}
	}
}
