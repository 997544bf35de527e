package synthesis

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4 * 1024 * 1024
)

// session is one live websocket to the backend.
type session struct {
	id        string
	conn      *websocket.Conn
	writeMu   sync.Mutex
	detached  atomic.Bool
	closeOnce sync.Once

	// closeErr is set under Manager.mu when the session is detached.
	closeErr *CloseError
}

func newSession(id string, conn *websocket.Conn) *session {
	conn.SetReadLimit(maxMessageSize)
	return &session{id: id, conn: conn}
}

// sendPair writes both frames back to back so a request's config and text
// frames are never split by another writer.
func (s *session) sendPair(first, second []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, first); err != nil {
		return fmt.Errorf("config frame: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, second); err != nil {
		return fmt.Errorf("text frame: %w", err)
	}
	return nil
}

// close sends a close frame when graceful is set and then drops the socket.
func (s *session) close(code int, reason string, graceful bool) {
	s.closeOnce.Do(func() {
		if graceful {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		}
		_ = s.conn.Close()
	})
}

// closeDetails reports remote as true when the backend sent a close frame.
func closeDetails(err error) (code int, reason string, remote bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return websocket.CloseAbnormalClosure, err.Error(), false
}
