package session

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ghostedit/ghostedit/pkg/protocol"
)

// Conn is the engine's view of one protocol session. Inbound yields the
// browser's text updates and is closed when the remote side goes away, for
// any reason; Err distinguishes a transport failure from a clean close
// after the fact. The engine treats both the same for cleanup.
type Conn interface {
	Inbound() <-chan protocol.TextUpdate
	Send(protocol.TextSync) error
	Close() error
	Err() error
}

// WSConn adapts a gorilla WebSocket connection to the Conn interface.
type WSConn struct {
	ws      *websocket.Conn
	inbound chan protocol.TextUpdate
	done    chan struct{}

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an upgraded WebSocket connection and starts its read
// loop.
func NewWSConn(ws *websocket.Conn) *WSConn {
	c := &WSConn{
		ws:      ws,
		inbound: make(chan protocol.TextUpdate, 8),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *WSConn) readLoop() {
	defer close(c.inbound)

	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setErr(err)
			}
			return
		}
		if kind != websocket.TextMessage {
			log.Debug().Int("kind", kind).Msg("ignoring non-text frame")
			continue
		}

		var update protocol.TextUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			log.Warn().Err(err).Msg("ignoring unparseable frame")
			continue
		}
		select {
		case c.inbound <- update:
		case <-c.done:
			return
		}
	}
}

func (c *WSConn) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Inbound implements Conn.
func (c *WSConn) Inbound() <-chan protocol.TextUpdate {
	return c.inbound
}

// Send implements Conn.
func (c *WSConn) Send(sync protocol.TextSync) error {
	data, err := json.Marshal(sync)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close implements Conn. A close frame is attempted first so well-behaved
// clients see a normal closure.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// Err implements Conn.
func (c *WSConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}
