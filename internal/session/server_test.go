package session

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"absorbchess/internal/app"
	"absorbchess/internal/bot"
	"absorbchess/internal/lobby"
	"absorbchess/internal/match"
)

// fakeConn is an in-memory Conn a test can both feed (via push) and drain
// (via recv), standing in for internal/transport/ws's real socket the way
// spec.md's §5 "duplex, ordered, message-oriented channel" is described
// independent of any transport.
type fakeConn struct {
	mu     sync.Mutex
	inbox  [][]byte
	outbox chan []byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{outbox: make(chan []byte, 64)}
}

func (c *fakeConn) push(msg map[string]any) {
	data, _ := json.Marshal(msg)
	c.mu.Lock()
	c.inbox = append(c.inbox, data)
	c.mu.Unlock()
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, errClosed
		}
		if len(c.inbox) > 0 {
			msg := c.inbox[0]
			c.inbox = c.inbox[1:]
			c.mu.Unlock()
			return msg, nil
		}
		c.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.outbox <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

type closedError string

func (e closedError) Error() string { return string(e) }

const errClosed = closedError("fakeConn: closed")

// next blocks briefly for the next outbound frame of the given type,
// failing the test if none arrives in time.
func next(t *testing.T, c *fakeConn, wantType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-c.outbox:
			var msg map[string]any
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("malformed outbound frame: %v", err)
			}
			if msg["type"] == wantType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", wantType)
		}
	}
}

func newTestServer() *Server {
	hub := NewHub()
	var agent *bot.Agent
	return NewServer(hub, lobby.NewRegistry(), lobby.NewQueue(), match.NewRegistry(), app.NewService(), nil, nil, agent, Config{GraceMs: 40_000, PromotionCancelAllowed: true})
}

func acceptAndPump(srv *Server, conn *fakeConn) *Client {
	c := srv.Accept(conn, "")
	go c.ReadPump(srv)
	return c
}

func TestValidateServerHandshake(t *testing.T) {
	srv := newTestServer()
	conn := newFakeConn()
	acceptAndPump(srv, conn)
	next(t, conn, "session_established")

	conn.push(map[string]any{"type": "validate_server"})
	msg := next(t, conn, "validate_server_response")
	if msg["isChessServer"] != true {
		t.Fatalf("expected isChessServer=true, got %v", msg)
	}
}

func TestUnknownTypeRepliesError(t *testing.T) {
	srv := newTestServer()
	conn := newFakeConn()
	acceptAndPump(srv, conn)
	next(t, conn, "session_established")

	conn.push(map[string]any{"type": "not_a_real_type"})
	msg := next(t, conn, "error")
	if msg["reason"] != "unknown type" {
		t.Fatalf("unexpected error reason: %v", msg)
	}
}

func TestCreateJoinAndStartGameFlow(t *testing.T) {
	srv := newTestServer()
	ownerConn, joinerConn := newFakeConn(), newFakeConn()
	acceptAndPump(srv, ownerConn)
	acceptAndPump(srv, joinerConn)
	next(t, ownerConn, "session_established")
	next(t, joinerConn, "session_established")

	ownerConn.push(map[string]any{
		"type":        "create_lobby",
		"player_name": "Alice",
		"settings":    map[string]any{"time_minutes": 10, "time_increment_seconds": 0},
	})
	created := next(t, ownerConn, "lobby_created")
	code, _ := created["lobby_code"].(string)
	if code == "" {
		t.Fatalf("expected a lobby_code, got %+v", created)
	}

	joinerConn.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, joinerConn, "lobby_joined")
	next(t, ownerConn, "lobby_update")

	ownerConn.push(map[string]any{"type": "start_game"})
	started := next(t, ownerConn, "game_started")
	if started["your_color"] != "white" {
		t.Fatalf("expected owner to play white, got %v", started["your_color"])
	}
	joinerStarted := next(t, joinerConn, "game_started")
	if joinerStarted["your_color"] != "black" {
		t.Fatalf("expected joiner to play black, got %v", joinerStarted["your_color"])
	}
}

func TestMovePieceBroadcastsToBothSeatsAndRejectsInvalidMove(t *testing.T) {
	srv := newTestServer()
	ownerConn, joinerConn := newFakeConn(), newFakeConn()
	acceptAndPump(srv, ownerConn)
	acceptAndPump(srv, joinerConn)
	next(t, ownerConn, "session_established")
	next(t, joinerConn, "session_established")

	ownerConn.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, ownerConn, "lobby_created")
	code := created["lobby_code"].(string)

	joinerConn.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, joinerConn, "lobby_joined")
	next(t, ownerConn, "lobby_update")

	ownerConn.push(map[string]any{"type": "start_game"})
	next(t, ownerConn, "game_started")
	next(t, joinerConn, "game_started")

	ownerConn.push(map[string]any{"type": "move_piece", "from": []int{6, 4}, "to": []int{4, 4}})
	ownerMove := next(t, ownerConn, "move_made")
	next(t, joinerConn, "move_made")
	state, ok := ownerMove["game_state"].(map[string]any)
	if !ok || state["current_turn"] != "black" {
		t.Fatalf("expected current_turn=black after the move, got %+v", ownerMove)
	}

	// Black attempts to move white's piece: rejected, and only to the sender.
	joinerConn.push(map[string]any{"type": "move_piece", "from": []int{6, 3}, "to": []int{5, 3}})
	invalid := next(t, joinerConn, "invalid_move")
	if invalid["reason"] == "" || invalid["reason"] == nil {
		t.Fatalf("expected a reason on invalid_move, got %+v", invalid)
	}
}

func TestResignEndsGameOver(t *testing.T) {
	srv := newTestServer()
	ownerConn, joinerConn := newFakeConn(), newFakeConn()
	acceptAndPump(srv, ownerConn)
	acceptAndPump(srv, joinerConn)
	next(t, ownerConn, "session_established")
	next(t, joinerConn, "session_established")

	ownerConn.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, ownerConn, "lobby_created")
	code := created["lobby_code"].(string)
	joinerConn.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, joinerConn, "lobby_joined")
	next(t, ownerConn, "lobby_update")
	ownerConn.push(map[string]any{"type": "start_game"})
	next(t, ownerConn, "game_started")
	next(t, joinerConn, "game_started")

	ownerConn.push(map[string]any{"type": "resign"})
	over := next(t, ownerConn, "game_over")
	if over["reason"] != "resign" || over["winner"] != "black" {
		t.Fatalf("unexpected game_over payload: %+v", over)
	}
}

func TestSearchGamePairsTwoClients(t *testing.T) {
	srv := newTestServer()
	aConn, bConn := newFakeConn(), newFakeConn()
	acceptAndPump(srv, aConn)
	acceptAndPump(srv, bConn)
	next(t, aConn, "session_established")
	next(t, bConn, "session_established")

	aConn.push(map[string]any{"type": "search_game", "player_name": "Alice"})
	next(t, aConn, "search_started")

	bConn.push(map[string]any{"type": "search_game", "player_name": "Bob"})
	next(t, bConn, "search_started")

	aFound := next(t, aConn, "search_game_found")
	bFound := next(t, bConn, "search_game_found")
	if aFound["player_color"] == bFound["player_color"] {
		t.Fatalf("expected mirrored colors, got a=%v b=%v", aFound["player_color"], bFound["player_color"])
	}

	next(t, aConn, "game_started")
	next(t, bConn, "game_started")
}

func TestSearchGameRejectsClientAlreadyInActiveLobby(t *testing.T) {
	srv := newTestServer()
	ownerConn, joinerConn := newFakeConn(), newFakeConn()
	acceptAndPump(srv, ownerConn)
	acceptAndPump(srv, joinerConn)
	next(t, ownerConn, "session_established")
	next(t, joinerConn, "session_established")

	ownerConn.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, ownerConn, "lobby_created")
	code := created["lobby_code"].(string)
	joinerConn.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, joinerConn, "lobby_joined")
	next(t, ownerConn, "lobby_update")

	// Still Forming (never started): search_game must be rejected outright.
	ownerConn.push(map[string]any{"type": "search_game", "player_name": "Alice"})
	msg := next(t, ownerConn, "error")
	if msg["reason"] != "already in an active lobby" {
		t.Fatalf("unexpected rejection reason: %+v", msg)
	}

	ownerConn.push(map[string]any{"type": "start_game"})
	next(t, ownerConn, "game_started")
	next(t, joinerConn, "game_started")

	// Now Running: search_game must still be rejected.
	ownerConn.push(map[string]any{"type": "search_game", "player_name": "Alice"})
	msg = next(t, ownerConn, "error")
	if msg["reason"] != "already in an active lobby" {
		t.Fatalf("unexpected rejection reason once running: %+v", msg)
	}
}

func TestSearchGameSilentlyLeavesEndedLobby(t *testing.T) {
	srv := newTestServer()
	ownerConn, joinerConn := newFakeConn(), newFakeConn()
	acceptAndPump(srv, ownerConn)
	acceptAndPump(srv, joinerConn)
	next(t, ownerConn, "session_established")
	next(t, joinerConn, "session_established")

	ownerConn.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, ownerConn, "lobby_created")
	code := created["lobby_code"].(string)
	joinerConn.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, joinerConn, "lobby_joined")
	next(t, ownerConn, "lobby_update")
	ownerConn.push(map[string]any{"type": "start_game"})
	next(t, ownerConn, "game_started")
	next(t, joinerConn, "game_started")

	ownerConn.push(map[string]any{"type": "resign"})
	next(t, ownerConn, "game_over")
	next(t, joinerConn, "game_over")

	// The match has ended: search_game must silently leave the old lobby
	// and let the owner queue fresh, instead of rejecting.
	ownerConn.push(map[string]any{"type": "search_game", "player_name": "Alice"})
	next(t, ownerConn, "search_started")
}
