// Package ws adapts gorilla/websocket to internal/session's transport-
// agnostic Conn interface, grounded on the teacher's celebrity.go upgrader
// and playerID cookie pattern (crypto/rand id, HttpOnly SameSite cookie),
// repurposed here to carry a reconnection token instead of a raw player id.
package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	"absorbchess/internal/logging"
	"absorbchess/internal/session"
)

const reconnectCookieName = "absorbchess_reconnect"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// conn adapts *websocket.Conn to session.Conn, framing every message as a
// single text frame (the protocol is JSON objects, one per frame).
type conn struct {
	ws *websocket.Conn
}

func (c *conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *conn) WriteMessage(data []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) Close() error { return c.ws.Close() }

// Handler upgrades an inbound HTTP request to a WebSocket and hands the
// connection to srv, reading any reconnect_token cookie the client
// presents from an earlier session_established event.
func Handler(srv *session.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnf("ws: upgrade failed: %v", err)
			return
		}

		token := ""
		if c, err := r.Cookie(reconnectCookieName); err == nil {
			token = c.Value
		}

		// The reconnect token for this session is delivered to the client in
		// the session_established event, not a cookie: Set-Cookie after
		// Upgrade's handshake response has already been written would be a
		// no-op, so the client is responsible for replaying it in the
		// absorbchess_reconnect cookie on the next connection (the only
		// place this handler reads it from).
		sessConn := &conn{ws: wsConn}
		client := srv.Accept(sessConn, token)
		client.ReadPump(srv)
	}
}
