package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"absorbchess/internal/app"
	"absorbchess/internal/logging"
)

// Hub tracks every connected Client and which lobby code each one belongs
// to, and turns app.Events into wire JSON. Grounded on the teacher's
// celebrity.go Hub (register/unregister + broadcast-to-room), generalized
// from a single fixed room to a lobby-code-keyed set of rooms.
type Hub struct {
	mu           sync.Mutex
	clients      map[string]*Client
	lobbyMembers map[string]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		lobbyMembers: make(map[string]map[string]bool),
	}
}

// Register attaches a freshly-connected Client under clientID, replacing
// whatever connection (if any) was previously registered for it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes clientID's Client only if it still points at c, so a
// stale unregister racing a reconnect can't evict the new connection.
// Reports whether the registration was actually removed; false means a newer
// connection already took over the id and the caller should treat the
// disconnect as stale.
func (h *Hub) Unregister(clientID string, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.clients[clientID]; ok && existing == c {
		delete(h.clients, clientID)
		return true
	}
	return false
}

// Join adds clientID to a lobby's broadcast membership.
func (h *Hub) Join(lobbyCode, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.lobbyMembers[lobbyCode]
	if !ok {
		members = make(map[string]bool)
		h.lobbyMembers[lobbyCode] = members
	}
	members[clientID] = true
}

// Leave removes clientID from a lobby's broadcast membership, cleaning up
// the membership set entirely once it's empty.
func (h *Hub) Leave(lobbyCode, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.lobbyMembers[lobbyCode]
	delete(members, clientID)
	if len(members) == 0 {
		delete(h.lobbyMembers, lobbyCode)
	}
}

// Send delivers event to one client by id. Satisfies match.Broadcaster and
// clock.Broadcaster's sibling requirement.
func (h *Hub) Send(clientID string, event app.Event) {
	data, err := encodeEvent(event)
	if err != nil {
		logging.Errorf("session: encode event %s: %v", event.Kind, err)
		return
	}
	h.mu.Lock()
	c := h.clients[clientID]
	h.mu.Unlock()
	if c != nil {
		c.enqueue(data)
	}
}

// Broadcast delivers event to every client registered under lobbyCode.
// Satisfies both match.Broadcaster and clock.Broadcaster.
func (h *Hub) Broadcast(lobbyCode string, event app.Event) {
	data, err := encodeEvent(event)
	if err != nil {
		logging.Errorf("session: encode event %s: %v", event.Kind, err)
		return
	}
	h.mu.Lock()
	var targets []*Client
	for id := range h.lobbyMembers[lobbyCode] {
		if c := h.clients[id]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()
	for _, c := range targets {
		c.enqueue(data)
	}
}

// encodeEvent marshals event.Payload and splices in the "type" field from
// event.Kind, so callers never have to embed Type on every payload struct.
func encodeEvent(event app.Event) ([]byte, error) {
	var fields map[string]json.RawMessage
	if event.Payload != nil {
		raw, err := json.Marshal(event.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("payload is not a JSON object: %w", err)
		}
	} else {
		fields = make(map[string]json.RawMessage)
	}
	typeJSON, err := json.Marshal(string(event.Kind))
	if err != nil {
		return nil, err
	}
	fields["type"] = typeJSON
	return json.Marshal(fields)
}
