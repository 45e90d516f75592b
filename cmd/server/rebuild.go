package main

import (
	"encoding/json"
	"fmt"

	"absorbchess/internal/app"
	"absorbchess/internal/bot"
	"absorbchess/internal/domain"
	"absorbchess/internal/lobby"
	"absorbchess/internal/logging"
	"absorbchess/internal/match"
	"absorbchess/internal/storage"
)

// rebuildFromSnapshot repopulates fresh, empty registries from the durable
// snapshot (spec.md §4.10's "reads are used only on cold start") before the
// Session Layer ever accepts a connection. It returns the client_id->lobby
// index and the lobbies whose match came back Running, so the caller can
// finish wiring a freshly-constructed *session.Server via
// session.Server.ResumeAfterRestart.
func rebuildFromSnapshot(store *storage.Store, lobbies *lobby.Registry, matches *match.Registry, svc *app.Service, agent *bot.Agent) (map[string]string, []*lobby.Lobby, error) {
	rows, err := store.AllLobbies()
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild: load lobbies: %w", err)
	}
	seatRows, err := store.AllClientSeats()
	if err != nil {
		return nil, nil, fmt.Errorf("rebuild: load client seats: %w", err)
	}
	seatsByLobby := make(map[string][]storage.ClientLobbyRow, len(seatRows))
	for _, s := range seatRows {
		seatsByLobby[s.LobbyCode] = append(seatsByLobby[s.LobbyCode], s)
	}

	clientLobby := make(map[string]string, len(seatRows))
	var restoredRunning []*lobby.Lobby

	for _, row := range rows {
		var settings lobby.Settings
		if err := json.Unmarshal(row.SettingsJSON, &settings); err != nil {
			logging.Warnf("rebuild: lobby %s: bad settings, skipping: %v", row.Code, err)
			continue
		}

		game, err := decodeGame(row.GameJSON)
		if err != nil {
			logging.Warnf("rebuild: lobby %s: bad game state, skipping: %v", row.Code, err)
			continue
		}

		l := lobby.NewRestoredLobby(row.Code, row.OwnerID, settings, row.CreatedAt, game != nil)
		for _, seatRow := range seatsByLobby[row.Code] {
			color, ok := domain.ParseColor(seatRow.Color)
			if !ok {
				logging.Warnf("rebuild: lobby %s: unknown seat color %q, skipping seat", row.Code, seatRow.Color)
				continue
			}
			if idx := l.OpenSeatIndex(); idx != -1 {
				l.Seats[idx] = &lobby.Seat{ClientID: seatRow.ClientID, DisplayName: seatRow.DisplayName, Color: color, Occupied: true}
				clientLobby[seatRow.ClientID] = row.Code
			}
		}
		lobbies.Restore(l)

		if game == nil {
			continue
		}
		var b match.Bot
		if agent != nil {
			b = agent
		}
		matches.Put(match.Restore(l, svc, b, game))
		restoredRunning = append(restoredRunning, l)
		logging.Infof("rebuild: restored running match %s from snapshot", row.Code)
	}

	return clientLobby, restoredRunning, nil
}

// decodeGame returns the *domain.Game a lobby row's game_state_json
// encodes, or nil if the lobby's match never started (game_state_json is
// NULL before the first Start, same as the zero value UpsertLobby writes).
func decodeGame(raw []byte) (*domain.Game, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var gs domain.GameState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, err
	}
	return domain.LoadGameState(&gs)
}
