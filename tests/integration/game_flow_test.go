// Package integration drives multi-step scenarios end to end through
// internal/session's public entry points (Accept/HandleInbound), the way
// the teacher's integration suite drives a full hand through its own
// session layer rather than unit-testing one collaborator at a time.
package integration

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"absorbchess/internal/app"
	"absorbchess/internal/bot"
	"absorbchess/internal/lobby"
	"absorbchess/internal/match"
	"absorbchess/internal/session"
)

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

type closedErr string

func (e closedErr) Error() string { return string(e) }

func (c *fakeConn) ReadMessage() ([]byte, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, closedErr("closed")
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
			t.Fatalf("timed out waiting for %q (last seen nothing matching)", wantType)
		}
	}
}

func newServer(graceMs int64) *session.Server {
	hub := session.NewHub()
	signer := session.NewReconnectSigner([]byte("test-secret-test-secret-123456"), time.Hour)
	var agent *bot.Agent
	return session.NewServer(hub, lobby.NewRegistry(), lobby.NewQueue(), match.NewRegistry(), app.NewService(), nil, signer, agent,
		session.Config{GraceMs: graceMs, PromotionCancelAllowed: true})
}

// TestAbsorptionThenCaptureGainsNoNewAbilityFromAPawn exercises spec.md's
// literal scenario 1: e4, d5, exd5 leaves the capturing white pawn with
// abilities={pawn} since the captured piece was itself only a pawn.
func TestAbsorptionThenCaptureGainsNoNewAbilityFromAPawn(t *testing.T) {
	srv := newServer(40_000)
	white, black := newFakeConn(), newFakeConn()
	go func() { c := srv.Accept(white, ""); c.ReadPump(srv) }()
	go func() { c := srv.Accept(black, ""); c.ReadPump(srv) }()
	next(t, white, "session_established")
	next(t, black, "session_established")

	white.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, white, "lobby_created")
	code := created["lobby_code"].(string)

	black.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, black, "lobby_joined")
	next(t, white, "lobby_update")

	white.push(map[string]any{"type": "start_game"})
	next(t, white, "game_started")
	next(t, black, "game_started")

	white.push(map[string]any{"type": "move_piece", "from": []int{6, 4}, "to": []int{4, 4}}) // e2-e4
	next(t, white, "move_made")
	next(t, black, "move_made")

	black.push(map[string]any{"type": "move_piece", "from": []int{1, 3}, "to": []int{3, 3}}) // d7-d5
	next(t, black, "move_made")
	next(t, white, "move_made")

	white.push(map[string]any{"type": "move_piece", "from": []int{4, 4}, "to": []int{3, 3}}) // exd5
	moveMade := next(t, white, "move_made")
	next(t, black, "move_made")

	move, ok := moveMade["move"].(map[string]any)
	if !ok {
		t.Fatalf("expected a move object, got %+v", moveMade)
	}
	if move["captured_kind"] != "pawn" {
		t.Fatalf("expected captured_kind=pawn, got %v", move["captured_kind"])
	}
	if gained, ok := move["abilities_gained"]; ok && gained != nil {
		t.Fatalf("expected no new ability gained capturing a pawn, got %v", gained)
	}

	state := moveMade["game_state"].(map[string]any)
	board := state["board"].([]any)
	row3 := board[3].([]any)
	cell := row3[3].(map[string]any)
	abilities := cell["abilities"].([]any)
	if len(abilities) != 1 || abilities[0] != "pawn" {
		t.Fatalf("expected abilities=[pawn] on the capturing pawn, got %v", abilities)
	}
}

// TestDisconnectGraceAndReconnect exercises spec.md's scenario 5: a closed
// socket starts the grace timer, broadcasting player_disconnected; the same
// client_id reattaching with its reconnect_token before the grace period
// elapses cancels the auto-resign and broadcasts player_reconnected instead.
func TestDisconnectGraceAndReconnect(t *testing.T) {
	srv := newServer(150) // 150ms grace period
	white, black := newFakeConn(), newFakeConn()
	go func() { c := srv.Accept(white, ""); c.ReadPump(srv) }()
	go func() { c := srv.Accept(black, ""); c.ReadPump(srv) }()
	whiteEstablished := next(t, white, "session_established")
	next(t, black, "session_established")
	whiteToken := whiteEstablished["reconnect_token"].(string)

	white.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, white, "lobby_created")
	code := created["lobby_code"].(string)
	black.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, black, "lobby_joined")
	next(t, white, "lobby_update")
	white.push(map[string]any{"type": "start_game"})
	next(t, white, "game_started")
	next(t, black, "game_started")

	white.Close()
	disconnected := next(t, black, "player_disconnected")
	if disconnected["color"] != "white" {
		t.Fatalf("expected white reported disconnected, got %+v", disconnected)
	}

	white2 := newFakeConn()
	go func() { c := srv.Accept(white2, whiteToken); c.ReadPump(srv) }()
	next(t, white2, "session_established")
	next(t, black, "player_reconnected")
}

// TestDisconnectWithoutReconnectAutoResigns exercises the tail of scenario
// 5: if the disconnected seat never reattaches, the grace timer expires
// into an auto-resignation in the opponent's favor.
func TestDisconnectWithoutReconnectAutoResigns(t *testing.T) {
	srv := newServer(60)
	white, black := newFakeConn(), newFakeConn()
	go func() { c := srv.Accept(white, ""); c.ReadPump(srv) }()
	go func() { c := srv.Accept(black, ""); c.ReadPump(srv) }()
	next(t, white, "session_established")
	next(t, black, "session_established")

	white.push(map[string]any{"type": "create_lobby", "player_name": "Alice"})
	created := next(t, white, "lobby_created")
	code := created["lobby_code"].(string)
	black.push(map[string]any{"type": "join_lobby", "lobby_code": code, "player_name": "Bob"})
	next(t, black, "lobby_joined")
	next(t, white, "lobby_update")
	white.push(map[string]any{"type": "start_game"})
	next(t, white, "game_started")
	next(t, black, "game_started")

	white.Close()
	next(t, black, "player_disconnected")

	over := next(t, black, "game_over")
	if over["reason"] != "disconnect" || over["winner"] != "black" {
		t.Fatalf("expected disconnect auto-resignation favoring black, got %+v", over)
	}
}
