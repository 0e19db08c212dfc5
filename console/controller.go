package console

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var (
	errControllerActive = errors.New("console already has a controller")
	errConsoleClosed    = errors.New("console is shutting down")
)

// controlSlot admits one controlling websocket at a time. The http server does
// not track hijacked connections, so the slot closes the active one itself on
// shutdown.
type controlSlot struct {
	mu     sync.Mutex
	held   bool
	closed bool
	conn   *websocket.Conn
}

// acquire reserves the slot before the upgrade so a second browser can be
// turned away with a plain http error.
func (c *controlSlot) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConsoleClosed
	}
	if c.held {
		return errControllerActive
	}
	c.held = true
	return nil
}

// attach records the upgraded connection. It fails if the console closed
// while the upgrade was in flight.
func (c *controlSlot) attach(ws *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConsoleClosed
	}
	c.conn = ws
	return nil
}

func (c *controlSlot) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = false
	c.conn = nil
}

// close drops the active controller and refuses new ones.
func (c *controlSlot) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
