// Package lobby implements the pre-game Lobby Registry: seat assignment,
// ownership, and the 6-character join-code namespace a Match is created
// under once both seats are filled.
package lobby

import (
	"crypto/rand"
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"absorbchess/internal/domain"
)

var (
	ErrLobbyFull      = errors.New("lobby has no open seat")
	ErrLobbyNotFound  = errors.New("lobby not found")
	ErrNotOwner       = errors.New("actor is not the lobby owner")
	ErrAlreadyStarted = errors.New("lobby already started")
)

// Settings are the per-lobby game parameters chosen at creation time.
type Settings struct {
	TimeMinutes            int
	TimeIncrementSeconds   int
	PromotionCancelAllowed bool
	VsBot                  bool
}

// Seat is one of a lobby's two player slots.
type Seat struct {
	ClientID    string
	DisplayName string
	Color       domain.Color
	IsBot       bool
	Occupied    bool
}

// Lobby is a pre-game room: an owner, up to two seats, and the settings the
// eventual Match will be created with.
type Lobby struct {
	Code      string
	OwnerID   string
	Seats     [2]*Seat
	Settings  Settings
	CreatedAt time.Time
	Started   bool
}

func newLobby(code, ownerID, ownerName string, settings Settings) *Lobby {
	l := &Lobby{
		Code:      code,
		OwnerID:   ownerID,
		Settings:  settings,
		CreatedAt: time.Now(),
	}
	l.Seats[0] = &Seat{ClientID: ownerID, DisplayName: ownerName, Color: domain.White, Occupied: true}
	if settings.VsBot {
		l.Seats[1] = &Seat{ClientID: "bot", DisplayName: "Bot", Color: domain.Black, IsBot: true, Occupied: true}
	}
	return l
}

// NewRestoredLobby reconstructs a Lobby from a persisted snapshot row, used
// only by cold-start recovery (internal/storage's durable snapshot never
// persists a bot seat - persist() skips IsBot seats - so a VsBot lobby gets
// its bot seat recreated fresh here, the same way newLobby builds one).
// Human seats are filled in by the caller via OpenSeatIndex.
func NewRestoredLobby(code, ownerID string, settings Settings, createdAt time.Time, started bool) *Lobby {
	l := &Lobby{
		Code:      code,
		OwnerID:   ownerID,
		Settings:  settings,
		CreatedAt: createdAt,
		Started:   started,
	}
	if settings.VsBot {
		l.Seats[1] = &Seat{ClientID: "bot", DisplayName: "Bot", Color: domain.Black, IsBot: true, Occupied: true}
	}
	return l
}

// OpenSeatIndex returns the index of the first unoccupied seat, or -1.
func (l *Lobby) OpenSeatIndex() int {
	for i, s := range l.Seats {
		if s == nil || !s.Occupied {
			return i
		}
	}
	return -1
}

// Join fills the lobby's remaining seat. The joiner normally takes black
// (the creator holds white), but if the seated player already holds black
// (the owner left, or colors were swapped) the joiner takes white instead so
// both colors stay covered.
func (l *Lobby) Join(clientID, displayName string) (*Seat, error) {
	idx := l.OpenSeatIndex()
	if idx == -1 {
		return nil, ErrLobbyFull
	}
	color := domain.Black
	for _, s := range l.Seats {
		if s != nil && s.Occupied && s.Color == domain.Black {
			color = domain.White
		}
	}
	seat := &Seat{ClientID: clientID, DisplayName: displayName, Color: color, Occupied: true}
	l.Seats[idx] = seat
	return seat, nil
}

// Leave vacates the seat held by clientID. If the owner leaves before the
// game starts, ownership reassigns to the remaining occupied seat, per
// spec's "reassign owner on leave".
func (l *Lobby) Leave(clientID string) {
	for i, s := range l.Seats {
		if s != nil && s.ClientID == clientID {
			l.Seats[i] = nil
			if clientID == l.OwnerID {
				for _, other := range l.Seats {
					if other != nil && other.Occupied {
						l.OwnerID = other.ClientID
						break
					}
				}
			}
		}
	}
}

// Empty reports whether no seat is occupied, meaning the lobby should be
// destroyed.
func (l *Lobby) Empty() bool {
	for _, s := range l.Seats {
		if s != nil && s.Occupied {
			return false
		}
	}
	return true
}

// SeatByClient returns the seat held by clientID, or nil.
func (l *Lobby) SeatByClient(clientID string) *Seat {
	for _, s := range l.Seats {
		if s != nil && s.ClientID == clientID {
			return s
		}
	}
	return nil
}

// SwapColors flips both seats' colors. Owner-only, and only before the
// match starts (spec.md §4.3's "swap_colors ... owner-only in Forming").
func (l *Lobby) SwapColors(clientID string) error {
	if l.Started {
		return ErrAlreadyStarted
	}
	if clientID != l.OwnerID {
		return ErrNotOwner
	}
	for _, s := range l.Seats {
		if s != nil {
			s.Color = s.Color.Opposite()
		}
	}
	return nil
}

// RandomizeColors coin-flips which seat plays white. Owner-only, Forming
// only.
func (l *Lobby) RandomizeColors(clientID string) error {
	if l.Started {
		return ErrAlreadyStarted
	}
	if clientID != l.OwnerID {
		return ErrNotOwner
	}
	if mathrand.Intn(2) == 0 {
		for _, s := range l.Seats {
			if s != nil {
				s.Color = s.Color.Opposite()
			}
		}
	}
	return nil
}

// SeatByColor returns the seat playing color, or nil.
func (l *Lobby) SeatByColor(color domain.Color) *Seat {
	for _, s := range l.Seats {
		if s != nil && s.Color == color {
			return s
		}
	}
	return nil
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const codeLength = 6

// generateCode mints a random 6-character [A-Z0-9] code. Collision
// avoidance against live codes is the Registry's job (generate-and-check).
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}

// Registry owns every live Lobby, keyed by its join code.
type Registry struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
}

func NewRegistry() *Registry {
	return &Registry{lobbies: make(map[string]*Lobby)}
}

// Create mints a fresh lobby owned by ownerID and returns it.
func (r *Registry) Create(ownerID, ownerName string, settings Settings) (*Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		code, err := generateCode()
		if err != nil {
			return nil, err
		}
		if _, exists := r.lobbies[code]; exists {
			continue
		}
		l := newLobby(code, ownerID, ownerName, settings)
		r.lobbies[code] = l
		return l, nil
	}
}

// Restore inserts a Lobby reconstructed from the durable snapshot directly
// under its persisted code, bypassing Create's code generation. Used only
// on cold start.
func (r *Registry) Restore(l *Lobby) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lobbies[l.Code] = l
}

// Get returns the lobby for code, or ErrLobbyNotFound.
func (r *Registry) Get(code string) (*Lobby, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return nil, ErrLobbyNotFound
	}
	return l, nil
}

// Join adds clientID to the named lobby's open seat.
func (r *Registry) Join(code, clientID, displayName string) (*Lobby, *Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return nil, nil, ErrLobbyNotFound
	}
	if l.Started {
		return nil, nil, ErrAlreadyStarted
	}
	seat, err := l.Join(clientID, displayName)
	if err != nil {
		return nil, nil, err
	}
	return l, seat, nil
}

// Leave removes clientID from its lobby, destroying the lobby if it's now
// empty. Returns whether the lobby was destroyed.
func (r *Registry) Leave(code, clientID string) (destroyed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return false, ErrLobbyNotFound
	}
	l.Leave(clientID)
	if l.Empty() {
		delete(r.lobbies, code)
		return true, nil
	}
	return false, nil
}

// MarkStarted flags the lobby as having transitioned to a running Match, so
// late joins are rejected.
func (r *Registry) MarkStarted(code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[code]
	if !ok {
		return ErrLobbyNotFound
	}
	l.Started = true
	return nil
}

// Remove deletes a lobby outright (used when its Match ends and the lobby
// should not linger).
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lobbies, code)
}
