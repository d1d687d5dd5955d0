package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/gptdash-sub001/internal/game"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 120 * time.Second
	pingPeriod        = 30 * time.Second
	maxMessageSize    = 16 << 10
	outboundQueueSize = 64
)

// Client is one websocket connection. id stays zero until the join
// handshake binds it; it is guarded by the hub mutex.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   game.Identity
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, outboundQueueSize),
	}
}

// readPump decodes inbound commands until the connection dies, then
// releases the identity exactly once.
func (c *Client) readPump(s *Server) {
	defer func() {
		id, joined := s.hub.forget(c)
		if joined {
			s.session.Disconnected(id)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.hub.send(c, errorMsg{T: kindError, Code: "bad_message", Message: "could not parse message"})
			continue
		}
		s.dispatch(c, msg)
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with pings. It exits when the queue is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
