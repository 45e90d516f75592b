// Package storage implements the Durable Snapshot (spec.md §4.10): a
// best-effort crash-recovery aid that upserts lobby rows so a restart can
// rebuild in-memory state from still-connected sockets. The server is
// always authoritative on live state; nothing here is read back during
// normal play. Grounded on other_examples' BrownNPC-chess-api use of
// modernc.org/sqlite as a pure-Go embedded driver (no cgo toolchain
// needed), queried through stdlib database/sql exactly as any sql.DB
// consumer would.
package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// LobbyRow is one row of the `lobbies` table: enough to rebuild a Lobby and
// its in-flight Game after a restart.
type LobbyRow struct {
	Code         string
	OwnerID      string
	GameJSON     []byte
	SettingsJSON []byte
	CreatedAt    time.Time
}

// ClientLobbyRow is one row of `client_lobby_map`: which lobby, seat color,
// and display name a client_id was last seated under, used both to reattach
// a reconnecting socket to the right seat and to rebuild the seat itself
// after a restart.
type ClientLobbyRow struct {
	ClientID    string
	LobbyCode   string
	Color       string
	DisplayName string
}

// Store is a single sqlite connection backing the four tables spec.md
// §6/§4.10 name. All writes are best-effort from the Match Controller's
// point of view: a failure is logged by the caller and retried on the next
// state change, never fatal.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) the sqlite file at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// sqlite serializes writers itself; a single open connection avoids
	// "database is locked" errors under modernc.org/sqlite's driver.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lobbies (
			lobby_code TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			game_state_json BLOB,
			settings_json BLOB NOT NULL,
			created_at_iso TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS client_lobby_map (
			client_id TEXT PRIMARY KEY,
			lobby_code TEXT NOT NULL,
			player_color TEXT NOT NULL,
			display_name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS server_secret (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			secret BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS searching_players (
			client_id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS draw_offer_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			offerer_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			offered_at_iso TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// UpsertLobby writes (or overwrites) a lobby row. gameState may be nil
// before a match has started.
func (s *Store) UpsertLobby(code, ownerID string, gameState, settings any, createdAt time.Time) error {
	gameJSON, err := json.Marshal(gameState)
	if err != nil {
		return fmt.Errorf("storage: marshal game_state: %w", err)
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("storage: marshal settings: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO lobbies (lobby_code, owner_id, game_state_json, settings_json, created_at_iso)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(lobby_code) DO UPDATE SET
			owner_id = excluded.owner_id,
			game_state_json = excluded.game_state_json,
			settings_json = excluded.settings_json
	`, code, ownerID, gameJSON, settingsJSON, createdAt.UTC().Format(time.RFC3339Nano))
	return err
}

// DeleteLobby removes a lobby row (and its client seating rows) once the
// lobby is destroyed.
func (s *Store) DeleteLobby(code string) error {
	if _, err := s.db.Exec(`DELETE FROM client_lobby_map WHERE lobby_code = ?`, code); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM lobbies WHERE lobby_code = ?`, code)
	return err
}

// UpsertClientSeat records which lobby/color/display name a client is
// seated under.
func (s *Store) UpsertClientSeat(clientID, lobbyCode, color, displayName string) error {
	_, err := s.db.Exec(`
		INSERT INTO client_lobby_map (client_id, lobby_code, player_color, display_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			lobby_code = excluded.lobby_code,
			player_color = excluded.player_color,
			display_name = excluded.display_name
	`, clientID, lobbyCode, color, displayName)
	return err
}

// RemoveClientSeat deletes a client's seating row (on leave or lobby
// destruction).
func (s *Store) RemoveClientSeat(clientID string) error {
	_, err := s.db.Exec(`DELETE FROM client_lobby_map WHERE client_id = ?`, clientID)
	return err
}

// AllLobbies reads every persisted lobby row, used only on cold start.
func (s *Store) AllLobbies() ([]LobbyRow, error) {
	rows, err := s.db.Query(`SELECT lobby_code, owner_id, game_state_json, settings_json, created_at_iso FROM lobbies`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LobbyRow
	for rows.Next() {
		var r LobbyRow
		var createdAt string
		if err := rows.Scan(&r.Code, &r.OwnerID, &r.GameJSON, &r.SettingsJSON, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllClientSeats reads every persisted client->lobby seating row, used
// only on cold start to let still-connected sockets reattach.
func (s *Store) AllClientSeats() ([]ClientLobbyRow, error) {
	rows, err := s.db.Query(`SELECT client_id, lobby_code, player_color, display_name FROM client_lobby_map`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientLobbyRow
	for rows.Next() {
		var r ClientLobbyRow
		if err := rows.Scan(&r.ClientID, &r.LobbyCode, &r.Color, &r.DisplayName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadOrCreateSecret returns the HMAC secret used to sign reconnect tokens,
// generating and persisting a fresh random one on first use. Without this,
// a restart would mint a new secret every time and invalidate every
// previously-issued reconnect_token, defeating the point of rebuilding
// Lobbies from the snapshot in the first place.
func (s *Store) LoadOrCreateSecret() ([]byte, error) {
	var secret []byte
	err := s.db.QueryRow(`SELECT secret FROM server_secret WHERE id = 1`).Scan(&secret)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	secret = make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`INSERT INTO server_secret (id, secret) VALUES (1, ?)`, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// RecordSearching upserts a waiting matchmaking entry.
func (s *Store) RecordSearching(clientID, name string) error {
	_, err := s.db.Exec(`
		INSERT INTO searching_players (client_id, name) VALUES (?, ?)
		ON CONFLICT(client_id) DO UPDATE SET name = excluded.name
	`, clientID, name)
	return err
}

// RemoveSearching deletes a matchmaking entry (paired or cancelled).
func (s *Store) RemoveSearching(clientID string) error {
	_, err := s.db.Exec(`DELETE FROM searching_players WHERE client_id = ?`, clientID)
	return err
}

// RecordDrawOffer appends to the append-only draw-offer audit log. This is
// distinct from the in-memory rolling rate-limit window (spec.md §4.3);
// it is never read back to reconstruct that window (SPEC_FULL §C.5) - a
// restart simply resets the live limiter.
func (s *Store) RecordDrawOffer(offererID, targetID string, at time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO draw_offer_history (offerer_id, target_id, offered_at_iso) VALUES (?, ?, ?)
	`, offererID, targetID, at.UTC().Format(time.RFC3339Nano))
	return err
}
