package status

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// handleStream pushes a status snapshot on connect, whenever it changes,
// and at least every PushInterval.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read side only detects the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("status stream read error", "error", err)
				}
				return
			}
		}
	}()

	poll := time.NewTicker(max(s.cfg.PushInterval/4, time.Millisecond))
	defer poll.Stop()

	var last []byte
	var lastSent time.Time
	for {
		data, err := json.Marshal(s.src.Status())
		if err != nil {
			s.logger.Warn("status marshal failed", "error", err)
			return
		}
		if !bytes.Equal(data, last) || time.Since(lastSent) >= s.cfg.PushInterval {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			last = data
			lastSent = time.Now()
		}

		select {
		case <-done:
			return
		case <-poll.C:
		}
	}
}
