package match

import (
	"absorbchess/internal/app"
	"absorbchess/internal/lobby"
)

var (
	// ErrNotForming is returned when a Forming-only action (swap_colors,
	// start_game, ...) arrives after the match has already started or
	// ended.
	ErrNotForming   = errorString("lobby is not accepting this action right now")
	ErrSeatsNotFull = errorString("start_game requires exactly two seats")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// LobbyState snapshots a Lobby into the wire-shaped payload shared by
// lobby_created/lobby_joined/lobby_update. Exported so internal/session can
// build those events straight after calling into lobby.Registry's own
// Join/Leave (which mutate the same *lobby.Lobby a Match wraps).
func LobbyState(l *lobby.Lobby) app.LobbyStatePayload {
	payload := app.LobbyStatePayload{
		LobbyCode: l.Code,
		OwnerID:   l.OwnerID,
		Settings: app.LobbySettings{
			TimeMinutes:            l.Settings.TimeMinutes,
			TimeIncrementSeconds:   l.Settings.TimeIncrementSeconds,
			PromotionCancelAllowed: l.Settings.PromotionCancelAllowed,
			WithBot:                l.Settings.VsBot,
		},
	}
	for _, s := range l.Seats {
		if s == nil || !s.Occupied {
			continue
		}
		payload.Seats = append(payload.Seats, app.LobbySeat{
			ClientID:    s.ClientID,
			DisplayName: s.DisplayName,
			Color:       s.Color.String(),
			IsBot:       s.IsBot,
		})
	}
	return payload
}

// Created builds the lobby_created reply sent to the owner right after
// NewMatch.
func (m *Match) Created() app.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return app.Event{Kind: app.EventLobbyCreated, Payload: LobbyState(m.Lobby), Recipients: []string{m.Lobby.OwnerID}}
}

// SwapColors flips both seats' colors; owner-only, Forming-only.
func (m *Match) SwapColors(clientID string) ([]app.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != Forming {
		return nil, ErrNotForming
	}
	if err := m.Lobby.SwapColors(clientID); err != nil {
		return nil, err
	}
	return []app.Event{{Kind: app.EventLobbyUpdate, Payload: LobbyState(m.Lobby)}}, nil
}

// RandomizeColors coin-flips seat colors; owner-only, Forming-only.
func (m *Match) RandomizeColors(clientID string) ([]app.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != Forming {
		return nil, ErrNotForming
	}
	if err := m.Lobby.RandomizeColors(clientID); err != nil {
		return nil, err
	}
	return []app.Event{{Kind: app.EventLobbyUpdate, Payload: LobbyState(m.Lobby)}}, nil
}

// CanStart reports whether clientID may call start_game right now: they
// must own the lobby, it must still be Forming, and both seats must be
// occupied.
func (m *Match) CanStart(clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Status != Forming {
		return ErrNotForming
	}
	if clientID != m.Lobby.OwnerID {
		return lobby.ErrNotOwner
	}
	for _, s := range m.Lobby.Seats {
		if s == nil || !s.Occupied {
			return ErrSeatsNotFull
		}
	}
	return nil
}
