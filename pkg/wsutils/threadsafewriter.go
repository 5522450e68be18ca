package wsutils

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ThreadSafeWriter serializes writes to a websocket connection. Gorilla
// connections support one concurrent writer only, but a signaling peer may
// be written to by its own read loop and by the other participant's loop at
// the same time.
type ThreadSafeWriter struct {
	*websocket.Conn
	mu sync.Mutex
}

func NewThreadSafeWriter(conn *websocket.Conn) *ThreadSafeWriter {
	return &ThreadSafeWriter{Conn: conn}
}

func (t *ThreadSafeWriter) WriteJSON(val any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.Conn.WriteJSON(val)
}

func (t *ThreadSafeWriter) Close() error {
	return t.Conn.Close()
}
