package session

// Conn is the minimal transport surface the Session Layer needs from a
// live socket: read one framed message, write one, close. internal/session
// never imports gorilla/websocket directly so it can be driven by a fake in
// tests; internal/transport/ws supplies the real implementation.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
