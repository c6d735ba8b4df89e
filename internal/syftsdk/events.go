package syftsdk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/utils"
	"github.com/openmined/syftvault/internal/version"
)

const (
	eventsBufferSize        = 16
	eventsReconnectDelay    = 1 * time.Second
	eventsMaxReconnectDelay = 30 * time.Second
	eventsReconnectTimeout  = 10 * time.Second
	eventsPingPeriod        = 15 * time.Second
	eventsPingTimeout       = 5 * time.Second
	eventsMaxMessageSize    = 64 * 1024
	eventsPath              = "/api/v1/events"
)

// EventsAPI receives change notifications from the server. Once connected it
// reconnects on its own until closed.
type EventsAPI struct {
	config    *SyftSDKConfig
	messages  chan *api.Event
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	started   bool
}

func newEventsAPI(config *SyftSDKConfig) *EventsAPI {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventsAPI{
		config:   config,
		messages: make(chan *api.Event, eventsBufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect dials the events socket and keeps it alive in the background
func (e *EventsAPI) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	conn, err := e.dial(ctx)
	if err != nil {
		return fmt.Errorf("sdk: events: connect failed: %w", err)
	}
	e.conn = conn
	e.connected = true
	e.started = true

	go e.manageConnection(conn)
	return nil
}

func (e *EventsAPI) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// Get returns the channel of received events. Events are dropped when it is full.
func (e *EventsAPI) Get() <-chan *api.Event {
	return e.messages
}

func (e *EventsAPI) Close() {
	e.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		e.conn.Close(websocket.StatusNormalClosure, "shutdown")
		e.conn = nil
	}
	e.connected = false
}

func (e *EventsAPI) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := e.fullURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set(HeaderSyftUser, e.config.User)
	headers.Set(HeaderSyftVersion, version.Version)
	headers.Set(HeaderSyftDeviceId, utils.HWID)
	headers.Set(HeaderUserAgent, SyftVaultUserAgent)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	conn.SetReadLimit(eventsMaxMessageSize)
	slog.Info("events connected", "url", wsURL)
	return conn, nil
}

// manageConnection reads conn until it drops, then reconnects
func (e *EventsAPI) manageConnection(conn *websocket.Conn) {
	for {
		e.readLoop(conn)

		e.mu.Lock()
		if e.conn == conn {
			e.conn = nil
			e.connected = false
		}
		e.mu.Unlock()

		if e.ctx.Err() != nil {
			return
		}
		slog.Info("events disconnected, will reconnect")

		conn = e.reconnectWithBackoff()
		if conn == nil {
			return
		}
	}
}

func (e *EventsAPI) readLoop(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()
	go e.pingLoop(ctx, conn)

	for {
		var event api.Event
		if err := wsjson.Read(ctx, conn, &event); err != nil {
			if !isWSExpectedCloseError(err) {
				slog.Warn("events read", "error", err)
			}
			conn.CloseNow()
			return
		}

		slog.Debug("events rx", "type", event.Type, "version", event.Version)
		select {
		case e.messages <- &event:
		default:
			slog.Warn("events buffer full, dropped", "type", event.Type, "version", event.Version)
		}
	}
}

func (e *EventsAPI) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, eventsPingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.Debug("events ping failed", "error", err)
				conn.CloseNow()
				return
			}
		}
	}
}

// reconnectWithBackoff retries with exponential backoff and jitter, nil once closed
func (e *EventsAPI) reconnectWithBackoff() *websocket.Conn {
	delay := eventsReconnectDelay

	for attempt := 1; ; attempt++ {
		select {
		case <-e.ctx.Done():
			return nil
		case <-time.After(delay):
		}

		slog.Info("events attempting reconnection", "attempt", attempt, "delay", delay)
		ctx, cancel := context.WithTimeout(e.ctx, eventsReconnectTimeout)
		conn, err := e.dial(ctx)
		cancel()

		if err == nil {
			e.mu.Lock()
			if e.ctx.Err() != nil {
				e.mu.Unlock()
				conn.CloseNow()
				return nil
			}
			e.conn = conn
			e.connected = true
			e.mu.Unlock()
			return conn
		}
		slog.Debug("events reconnect failed", "error", err)

		delay = min(delay*2, eventsMaxReconnectDelay)
		jitterFactor := 0.75 + (rand.Float64() * 0.5)
		delay = time.Duration(float64(delay) * jitterFactor)
	}
}

func (e *EventsAPI) fullURL() (string, error) {
	baseURL, err := url.JoinPath(e.config.BaseURL, eventsPath)
	if err != nil {
		return "", fmt.Errorf("failed to join path: %w", err)
	}
	return toWebsocketURL(baseURL), nil
}

// toWebsocketURL converts an HTTP URL to a WebSocket URL
func toWebsocketURL(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + url[8:]
	} else if strings.HasPrefix(url, "http://") {
		return "ws://" + url[7:]
	}
	return url
}

func isWSExpectedCloseError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}
