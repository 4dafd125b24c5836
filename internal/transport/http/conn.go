package http

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"live-quiz-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// wsConn is the app.Sink for one websocket. Only writeLoop writes to the socket.
type wsConn struct {
	id   string
	ws   *websocket.Conn
	send chan domain.Event
	done chan struct{}
	once sync.Once
	log  *slog.Logger
}

func newWSConn(id string, ws *websocket.Conn, buffer int, log *slog.Logger) *wsConn {
	return &wsConn{
		id:   id,
		ws:   ws,
		send: make(chan domain.Event, buffer),
		done: make(chan struct{}),
		log:  log,
	}
}

// Deliver never blocks; a full buffer means the client is too slow and gets dropped.
func (c *wsConn) Deliver(ev domain.Event) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close stops the writer after it flushes what is already queued.
func (c *wsConn) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsConn) writeLoop(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				c.log.Debug("ws write failed", "err", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsConn) flush() {
	for {
		select {
		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(ev domain.Event) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(ev)
}
