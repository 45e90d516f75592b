// Package session is the duplex Session Layer (spec.md §4.7): it turns raw
// Conns into client_id-addressed participants, decodes/encodes the wire
// protocol, dispatches inbound messages to the Lobby Registry, Matchmaking
// Queue, or a running Match, and runs the disconnect grace-period
// auto-resign scheduler. Grounded on the teacher's WebSocket session
// handling (celebrity.go's Hub/Client/readPump/writePump), generalized from
// one fixed game room to many lobby-coded rooms addressed by client_id.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"absorbchess/internal/app"
	"absorbchess/internal/bot"
	"absorbchess/internal/config"
	"absorbchess/internal/domain"
	"absorbchess/internal/lobby"
	"absorbchess/internal/logging"
	"absorbchess/internal/match"
	"absorbchess/internal/storage"
)

// Server orchestrates every connected client against the Lobby Registry,
// Matchmaking Queue, and Match Registry. One Server backs an entire process;
// internal/transport/ws hands it raw Conns and never touches the registries
// itself.
type Server struct {
	hub     *Hub
	lobbies *lobby.Registry
	queue   *lobby.Queue
	matches *match.Registry
	svc     *app.Service
	store   *storage.Store
	signer  *ReconnectSigner
	bot     *bot.Agent

	graceMs                int64
	promotionCancelAllowed bool

	mu          sync.Mutex
	clientLobby map[string]string
	pending     map[string]*time.Timer
}

// Config bundles the knobs cmd/server exposes as flags.
type Config struct {
	GraceMs                int64
	PromotionCancelAllowed bool
}

func NewServer(hub *Hub, lobbies *lobby.Registry, queue *lobby.Queue, matches *match.Registry, svc *app.Service, store *storage.Store, signer *ReconnectSigner, agent *bot.Agent, cfg Config) *Server {
	return &Server{
		hub:                    hub,
		lobbies:                lobbies,
		queue:                  queue,
		matches:                matches,
		svc:                    svc,
		store:                  store,
		signer:                 signer,
		bot:                    agent,
		graceMs:                cfg.GraceMs,
		promotionCancelAllowed: cfg.PromotionCancelAllowed,
		clientLobby:            make(map[string]string),
		pending:                make(map[string]*time.Timer),
	}
}

// Accept registers a freshly-opened Conn, resolving clientID either from a
// valid reconnectToken or by minting a new random id, and returns the
// *Client the caller should pump (readPump blocks, writePump should run in
// its own goroutine). Matches the teacher's register-then-pump shape from
// serveWSForManager.
func (srv *Server) Accept(conn Conn, reconnectToken string) *Client {
	clientID := ""
	if reconnectToken != "" && srv.signer != nil {
		if sub, err := srv.signer.Verify(reconnectToken); err == nil {
			clientID = sub
		}
	}
	reconnecting := clientID != ""
	if clientID == "" {
		clientID = newClientID()
	}

	c := newClient(clientID, conn)
	srv.hub.Register(c)
	go c.writePump()

	if reconnecting {
		srv.cancelGrace(clientID)
		if code := srv.lobbyOf(clientID); code != "" {
			srv.hub.Join(code, clientID)
			if seat := srv.seatOf(code, clientID); seat != nil {
				srv.hub.Broadcast(code, app.Event{Kind: app.EventPlayerReconnected, Payload: app.PlayerReconnectedPayload{Color: seat.Color.String()}})
			}
		}
	}

	token := ""
	if srv.signer != nil {
		if t, err := srv.signer.Issue(clientID); err == nil {
			token = t
		} else {
			logging.Errorf("session: issue reconnect token: %v", err)
		}
	}
	srv.hub.Send(clientID, app.Event{
		Kind:    app.EventSessionEstablished,
		Payload: app.SessionEstablishedPayload{ClientID: clientID, ReconnectToken: token},
	})
	return c
}

func newClientID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("session: crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// HandleInbound decodes one raw frame from clientID and dispatches it.
// Malformed JSON or a missing/unknown type both reply with an error event;
// the session itself stays open (spec.md §4.7).
func (srv *Server) HandleInbound(clientID string, raw []byte) {
	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		srv.sendError(clientID, "malformed message")
		return
	}
	if in.Type == "" {
		srv.sendError(clientID, "missing type")
		return
	}

	now := time.Now().UnixMilli()

	switch in.Type {
	case "validate_server":
		srv.hub.Send(clientID, app.Event{Kind: app.EventValidateServerResponse, Payload: app.ValidateServerResponsePayload{IsChessServer: true}})
	case "create_lobby":
		srv.handleCreateLobby(clientID, in)
	case "join_lobby":
		srv.handleJoinLobby(clientID, in)
	case "leave_lobby":
		srv.handleLeaveLobby(clientID)
	case "swap_colors":
		srv.withMatch(clientID, func(code string, m *match.Match) {
			events, err := m.SwapColors(clientID)
			srv.finish(code, clientID, events, err)
		})
	case "randomize_colors":
		srv.withMatch(clientID, func(code string, m *match.Match) {
			events, err := m.RandomizeColors(clientID)
			srv.finish(code, clientID, events, err)
		})
	case "start_game":
		srv.handleStartGame(clientID, now)
	case "search_game":
		srv.handleSearchGame(clientID, in)
	case "cancel_search":
		srv.queue.Cancel(clientID)
		if srv.store != nil {
			_ = srv.store.RemoveSearching(clientID)
		}
		srv.hub.Send(clientID, app.Event{Kind: app.EventSearchGameCancelled, Payload: app.SearchGameCancelledPayload{}})
	case "move_piece", "promotion_choice", "promotion_cancel", "resign", "offer_draw", "accept_draw", "decline_draw", "get_valid_moves":
		srv.handleGameMessage(clientID, in, now)
	default:
		srv.sendError(clientID, "unknown type")
	}
}

func (srv *Server) sendError(clientID, reason string) {
	srv.hub.Send(clientID, app.Event{Kind: app.EventError, Payload: app.ErrorPayload{Reason: reason}})
}

// sendInvalidMove replies to a rejected move_piece with its tagged reason
// and details, never broadcasting it to the opponent (spec.md §7).
func (srv *Server) sendInvalidMove(clientID string, err error) {
	payload := app.InvalidMovePayload{Reason: err.Error()}
	if rerr, ok := err.(*domain.RuleError); ok {
		payload.Reason = rerr.Reason
		payload.Details = rerr.Details
	}
	srv.hub.Send(clientID, app.Event{Kind: app.EventInvalidMove, Payload: payload})
}

func (srv *Server) lobbyOf(clientID string) string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.clientLobby[clientID]
}

func (srv *Server) setLobby(clientID, code string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.clientLobby[clientID] = code
}

func (srv *Server) clearLobby(clientID string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	delete(srv.clientLobby, clientID)
}

func (srv *Server) seatOf(code, clientID string) *lobby.Seat {
	l, err := srv.lobbies.Get(code)
	if err != nil {
		return nil
	}
	return l.SeatByClient(clientID)
}

// withMatch looks up the match for clientID's current lobby and calls fn, or
// sends an error event if the client holds no lobby/match.
func (srv *Server) withMatch(clientID string, fn func(code string, m *match.Match)) {
	code := srv.lobbyOf(clientID)
	if code == "" {
		srv.sendError(clientID, "not in a lobby")
		return
	}
	m, ok := srv.matches.Get(code)
	if !ok {
		srv.sendError(clientID, "lobby has no match")
		return
	}
	fn(code, m)
}

// finish delivers events (or an error) resulting from a dispatch, persists
// the affected lobby's state, and gives the bot a chance to move next.
func (srv *Server) finish(code, actorID string, events []app.Event, err error) {
	if err != nil {
		srv.sendError(actorID, err.Error())
		return
	}
	srv.deliver(code, actorID, events)
	srv.persist(code)
	srv.scheduleBotTurn(code)
}

// deliver fans events out: nil Recipients broadcasts to the whole lobby,
// an explicitly-empty Recipients targets the actor who triggered the
// dispatch (service.go's "caller fills in" convention for promotion_pending
// and draw_offer_rate_limited), and a populated Recipients addresses those
// ids directly.
func (srv *Server) deliver(code, actorID string, events []app.Event) {
	for _, ev := range events {
		switch {
		case ev.Recipients == nil:
			srv.hub.Broadcast(code, ev)
		case len(ev.Recipients) == 0:
			srv.hub.Send(actorID, ev)
		default:
			for _, id := range ev.Recipients {
				srv.hub.Send(id, ev)
			}
		}
	}
}

func (srv *Server) handleCreateLobby(clientID string, in inbound) {
	settings := srv.resolveSettings(in.Settings)
	l, err := srv.lobbies.Create(clientID, in.PlayerName, settings)
	if err != nil {
		srv.sendError(clientID, err.Error())
		return
	}
	var b match.Bot
	if settings.VsBot && srv.bot != nil {
		b = srv.bot
	}
	m := match.NewMatch(l, srv.svc, b)
	srv.matches.Put(m)
	srv.setLobby(clientID, l.Code)
	srv.hub.Join(l.Code, clientID)
	srv.deliver(l.Code, clientID, []app.Event{m.Created()})
	srv.persist(l.Code)
}

func (srv *Server) resolveSettings(in *inboundSettings) lobby.Settings {
	if in == nil {
		return srv.defaultSettings()
	}
	return lobby.Settings{
		TimeMinutes:            in.TimeMinutes,
		TimeIncrementSeconds:   in.TimeIncrementSeconds,
		PromotionCancelAllowed: in.PromotionCancelAllowed || srv.promotionCancelAllowed,
		VsBot:                  in.WithBot,
	}
}

// defaultSettings is the time control a lobby gets when the creator sends
// none, and the control every matchmaking lobby starts with. Reads the
// structured settings block so deployments can tune it without a new flag.
func (srv *Server) defaultSettings() lobby.Settings {
	d := config.Get().DefaultLobby
	return lobby.Settings{
		TimeMinutes:            d.TimeMinutes,
		TimeIncrementSeconds:   d.TimeIncrementSeconds,
		PromotionCancelAllowed: srv.promotionCancelAllowed,
	}
}

func (srv *Server) handleJoinLobby(clientID string, in inbound) {
	l, _, err := srv.lobbies.Join(in.LobbyCode, clientID, in.PlayerName)
	if err != nil {
		srv.sendError(clientID, err.Error())
		return
	}
	srv.setLobby(clientID, l.Code)
	srv.hub.Join(l.Code, clientID)

	state := match.LobbyState(l)
	srv.hub.Send(clientID, app.Event{Kind: app.EventLobbyJoined, Payload: state})
	srv.hub.Broadcast(l.Code, app.Event{Kind: app.EventLobbyUpdate, Payload: state})
	srv.persist(l.Code)
}

func (srv *Server) handleLeaveLobby(clientID string) {
	code := srv.lobbyOf(clientID)
	if code == "" {
		srv.sendError(clientID, "not in a lobby")
		return
	}
	if err := srv.leaveLobby(clientID, code); err != nil {
		srv.sendError(clientID, err.Error())
	}
}

// leaveLobby vacates clientID's seat, transfers ownership or destroys the
// lobby as needed, and keeps the hub membership, client index, and durable
// snapshot in step. Shared by leave_lobby, the search_game silent-leave
// path, and disconnects from a still-Forming lobby.
func (srv *Server) leaveLobby(clientID, code string) error {
	destroyed, err := srv.lobbies.Leave(code, clientID)
	if err != nil {
		return err
	}
	srv.hub.Leave(code, clientID)
	srv.clearLobby(clientID)
	if srv.store != nil {
		_ = srv.store.RemoveClientSeat(clientID)
	}

	if destroyed {
		srv.matches.Remove(code)
		srv.hub.Broadcast(code, app.Event{Kind: app.EventLobbyClosed, Payload: app.LobbyClosedPayload{LobbyCode: code}})
		if srv.store != nil {
			_ = srv.store.DeleteLobby(code)
		}
		return nil
	}
	if l, err := srv.lobbies.Get(code); err == nil {
		srv.hub.Broadcast(code, app.Event{Kind: app.EventLobbyUpdate, Payload: match.LobbyState(l)})
	}
	srv.persist(code)
	return nil
}

func (srv *Server) handleStartGame(clientID string, now int64) {
	srv.withMatch(clientID, func(code string, m *match.Match) {
		if err := m.CanStart(clientID); err != nil {
			srv.sendError(clientID, err.Error())
			return
		}
		_ = srv.lobbies.MarkStarted(code)
		events := m.Start(now)
		srv.deliver(code, clientID, events)
		srv.persist(code)
		srv.scheduleBotTurn(code)
	})
}

func (srv *Server) handleSearchGame(clientID string, in inbound) {
	if code := srv.lobbyOf(clientID); code != "" {
		if m, ok := srv.matches.Get(code); ok && (m.Status == match.Forming || m.IsRunning()) {
			srv.sendError(clientID, "already in an active lobby")
			return
		}
		// The previous match (if any) has ended; leave it silently so the
		// client can queue fresh.
		_ = srv.leaveLobby(clientID, code)
	}

	srv.queue.Enqueue(clientID, in.PlayerName)
	if srv.store != nil {
		_ = srv.store.RecordSearching(clientID, in.PlayerName)
	}
	srv.hub.Send(clientID, app.Event{Kind: app.EventSearchStarted, Payload: app.SearchStartedPayload{}})

	a, b, ok := srv.queue.TryPair()
	if !ok {
		return
	}
	if srv.store != nil {
		_ = srv.store.RemoveSearching(a.ClientID)
		_ = srv.store.RemoveSearching(b.ClientID)
	}

	l, err := srv.lobbies.Create(a.ClientID, a.DisplayName, srv.defaultSettings())
	if err != nil {
		srv.sendError(a.ClientID, err.Error())
		srv.sendError(b.ClientID, err.Error())
		return
	}
	if _, _, err := srv.lobbies.Join(l.Code, b.ClientID, b.DisplayName); err != nil {
		srv.sendError(b.ClientID, err.Error())
		return
	}
	m := match.NewMatch(l, srv.svc, nil)
	srv.matches.Put(m)
	srv.setLobby(a.ClientID, l.Code)
	srv.setLobby(b.ClientID, l.Code)
	srv.hub.Join(l.Code, a.ClientID)
	srv.hub.Join(l.Code, b.ClientID)

	white, black := l.SeatByColor(domain.White), l.SeatByColor(domain.Black)
	srv.hub.Send(white.ClientID, app.Event{Kind: app.EventSearchGameFound, Payload: app.SearchGameFoundPayload{LobbyCode: l.Code, PlayerColor: white.Color.String(), OpponentName: black.DisplayName}})
	srv.hub.Send(black.ClientID, app.Event{Kind: app.EventSearchGameFound, Payload: app.SearchGameFoundPayload{LobbyCode: l.Code, PlayerColor: black.Color.String(), OpponentName: white.DisplayName}})

	_ = srv.lobbies.MarkStarted(l.Code)
	events := m.Start(time.Now().UnixMilli())
	srv.deliver(l.Code, "", events)
	srv.persist(l.Code)
}

func (srv *Server) handleGameMessage(clientID string, in inbound, now int64) {
	srv.withMatch(clientID, func(code string, m *match.Match) {
		msgType := in.Type
		if msgType == "promotion_choice" && in.Choice == "cancel" {
			// spec.md §6 sends cancel as a promotion_choice with
			// choice:"cancel" rather than a distinct wire type.
			msgType = "promotion_cancel"
		}
		msg := match.ClientMessage{Type: msgType, PromotionChoice: in.Choice}
		if in.From != nil {
			msg.From = domain.Square{Row: in.From[0], Col: in.From[1]}
		}
		if in.To != nil {
			msg.To = domain.Square{Row: in.To[0], Col: in.To[1]}
		}
		events, err := m.Dispatch(clientID, msg, now)
		if err != nil {
			if in.Type == "move_piece" {
				srv.sendInvalidMove(clientID, err)
			} else {
				srv.sendError(clientID, err.Error())
			}
			return
		}
		srv.deliver(code, clientID, events)
		if in.Type == "offer_draw" && srv.store != nil {
			if opp := opponentOf(m, clientID); opp != "" {
				_ = srv.store.RecordDrawOffer(clientID, opp, time.Now())
			}
		}
		srv.persist(code)
		srv.scheduleBotTurn(code)
	})
}

func opponentOf(m *match.Match, clientID string) string {
	for _, s := range m.Lobby.Seats {
		if s != nil && s.ClientID != clientID {
			return s.ClientID
		}
	}
	return ""
}

// scheduleBotTurn lets the bot seat (if any) act once, deferred by its
// configured think-time, and reschedules itself if the bot's move leaves it
// with another immediate obligation (e.g. a pending promotion).
func (srv *Server) scheduleBotTurn(code string) {
	m, ok := srv.matches.Get(code)
	if !ok || srv.bot == nil {
		return
	}
	if !m.TryClaimBotTurn() {
		return
	}
	go func() {
		time.Sleep(srv.bot.ThinkDelay())
		events := m.MaybeAdvanceBot(time.Now().UnixMilli())
		m.ReleaseBotTurn()
		if len(events) == 0 {
			return
		}
		srv.deliver(code, "", events)
		srv.persist(code)
		srv.scheduleBotTurn(code)
	}()
}

// Persist satisfies clock.Persister so the Clock Scanner can write a
// timed-out match's final state before broadcasting game_over.
func (srv *Server) Persist(code string) {
	srv.persist(code)
}

func (srv *Server) persist(code string) {
	if srv.store == nil {
		return
	}
	l, err := srv.lobbies.Get(code)
	if err != nil {
		return
	}
	m, ok := srv.matches.Get(code)
	var state *domain.GameState
	if ok && m.Game != nil {
		state = m.Game.Serialize(true)
	}
	if err := srv.store.UpsertLobby(code, l.OwnerID, state, l.Settings, l.CreatedAt); err != nil {
		logging.Warnf("session: persist lobby %s: %v", code, err)
	}
	for _, s := range l.Seats {
		if s == nil || !s.Occupied || s.IsBot {
			continue
		}
		if err := srv.store.UpsertClientSeat(s.ClientID, code, s.Color.String(), s.DisplayName); err != nil {
			logging.Warnf("session: persist seat %s: %v", s.ClientID, err)
		}
	}
}

// handleDisconnect is called once a Client's readPump returns (socket
// closed). It broadcasts player_disconnected with an abort_time and
// schedules the grace-period auto-resign task (spec.md §4.7), cancellable
// by a same-client_id Accept before it fires.
func (srv *Server) handleDisconnect(c *Client) {
	if !srv.hub.Unregister(c.ID, c) {
		// A newer connection already reattached under this client_id; the
		// old socket's close is stale and must not disturb the live session.
		return
	}

	// A searching client that drops off the wire must not get paired later.
	if srv.queue.Cancel(c.ID) && srv.store != nil {
		_ = srv.store.RemoveSearching(c.ID)
	}

	code := srv.lobbyOf(c.ID)
	if code == "" {
		return
	}
	m, ok := srv.matches.Get(code)
	if !ok || !m.IsRunning() {
		// A seat abandoned before the game started doesn't get a grace
		// period; the lobby just loses it (and closes once empty).
		if ok && m.Status == match.Forming {
			_ = srv.leaveLobby(c.ID, code)
		}
		return
	}
	seat := srv.seatOf(code, c.ID)
	if seat == nil || seat.IsBot {
		return
	}

	srv.startGrace(code, c.ID, seat.Color)
}

// startGrace broadcasts player_disconnected and arms the grace-period
// auto-resign timer for clientID's seat. Shared by handleDisconnect and
// ResumeAfterRestart, since a seat recovered from the durable snapshot on
// cold start has no socket attached yet and so starts out exactly as
// "disconnected" as one whose readPump just returned.
func (srv *Server) startGrace(code, clientID string, color domain.Color) {
	abortAt := time.Now().Add(time.Duration(srv.graceMs) * time.Millisecond)
	srv.hub.Broadcast(code, app.Event{
		Kind:    app.EventPlayerDisconnected,
		Payload: app.PlayerDisconnectedPayload{Color: color.String(), AbortTimeEpoch: abortAt.UnixMilli()},
	})

	timer := time.AfterFunc(time.Duration(srv.graceMs)*time.Millisecond, func() {
		srv.expireGrace(code, clientID, color)
	})
	srv.mu.Lock()
	srv.pending[clientID] = timer
	srv.mu.Unlock()
}

// ResumeAfterRestart wires cold-start recovery into a freshly constructed
// Server: seats the in-memory client_id->lobby_code index from the
// snapshot so a reconnecting socket's Accept finds its seat, and starts the
// same grace-period-then-auto-resign timer a live disconnect uses for every
// human seat of a restored running match (spec.md §7's "rebuild Lobbies
// from the snapshot" - nothing has reconnected yet, so every such seat
// starts out disconnected).
func (srv *Server) ResumeAfterRestart(clientLobby map[string]string, restoredRunning []*lobby.Lobby) {
	for clientID, code := range clientLobby {
		srv.setLobby(clientID, code)
	}
	for _, l := range restoredRunning {
		for _, seat := range l.Seats {
			if seat == nil || !seat.Occupied || seat.IsBot {
				continue
			}
			srv.startGrace(l.Code, seat.ClientID, seat.Color)
		}
	}
}

func (srv *Server) cancelGrace(clientID string) {
	srv.mu.Lock()
	timer, ok := srv.pending[clientID]
	delete(srv.pending, clientID)
	srv.mu.Unlock()
	if ok {
		timer.Stop()
	}
}

// expireGrace fires the auto-resign once a disconnected client's grace
// period elapses without a reconnect.
func (srv *Server) expireGrace(code, clientID string, color domain.Color) {
	srv.mu.Lock()
	delete(srv.pending, clientID)
	srv.mu.Unlock()

	m, ok := srv.matches.Get(code)
	if !ok {
		return
	}
	event := m.Disconnect(color)
	if event == nil {
		return
	}
	srv.hub.Broadcast(code, *event)
	srv.persist(code)
}
