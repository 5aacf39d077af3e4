package widget

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Conn is a Handle backed by a websocket connection.
type Conn struct {
	ws     *websocket.Conn
	kind   Kind
	logger *logging.Logger

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn, kind Kind, logger *logging.Logger) *Conn {
	if ws == nil {
		panic("widget: websocket connection required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Conn{
		ws:     ws,
		kind:   kind,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *Conn) Post(msg Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// Listen reads frames until the peer disconnects. Frames that do not decode
// are logged and skipped.
func (c *Conn) Listen(ctx context.Context, fn func(Message)) error {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.keepAlive(ctx)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("widget: connection dropped", "widget", c.kind, "error", err)
				return err
			}
			c.logger.Debug("widget: connection closed", "widget", c.kind, "error", err)
			return nil
		}
		msg, err := Decode(raw)
		if err != nil {
			c.logger.Warn("widget: invalid frame", "widget", c.kind, "error", err)
			continue
		}
		fn(msg)
	}
}

func (c *Conn) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.logger.Debug("widget: ping failed", "widget", c.kind, "error", err)
				return
			}
		}
	}
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
