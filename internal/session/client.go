package session

import "absorbchess/internal/logging"

// Client pairs a client_id with its live Conn and an outbound buffer,
// grounded on the teacher's celebrity.go Client (conn + buffered send
// channel drained by a dedicated writePump goroutine).
type Client struct {
	ID   string
	conn Conn
	send chan []byte
}

func newClient(id string, conn Conn) *Client {
	return &Client{ID: id, conn: conn, send: make(chan []byte, 16)}
}

// enqueue buffers data for delivery, dropping the client (closing it out of
// the hub) if its outbound buffer is still full, mirroring celebrity.go's
// non-blocking send-or-evict.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		logging.Warnf("session: client %s send buffer full, dropping connection", c.ID)
		_ = c.conn.Close()
	}
}

// writePump drains c.send onto the wire until the channel is closed or a
// write fails.
func (c *Client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(data); err != nil {
			return
		}
	}
}

// ReadPump blocks reading frames off conn and hands each to srv for
// dispatch, until the connection errors out (remote close, transport
// error). Runs on the goroutine that owns the Conn; internal/transport/ws
// calls this directly from its HTTP handler goroutine.
func (c *Client) ReadPump(srv *Server) {
	defer func() {
		close(c.send)
		srv.handleDisconnect(c)
	}()
	for {
		raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		srv.HandleInbound(c.ID, raw)
	}
}
