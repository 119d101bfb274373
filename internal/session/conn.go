package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

const (
	writeWait     = 5 * time.Second
	sendQueueSize = 32
)

// wsConn wraps one websocket connection with a buffered outbound
// queue. A full queue fails the send instead of blocking the caller.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}
}

func (c *wsConn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsConn) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "session").Msg("writePump ctx done")
			return
		case frame, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "session").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "session").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "session").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump delivers inbound frames to handle until the connection
// dies, then reports the read error.
func (c *wsConn) readPump(ctx context.Context, handle func([]byte)) error {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, frame, err := c.conn.ReadMessage()
			if err != nil {
				return err
			}
			handle(frame)
		}
	}
}
