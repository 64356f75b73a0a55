package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Session is one shared game table. All player state, the legacy shared
// battlefield, and the turn pointer live here, guarded by a single mutex.
// Every mutation is atomic under that mutex and, on success, is followed
// by a full-state publish on the session's broadcast feed. Failed
// mutations are dropped silently (see applyLocked); callers never receive
// an error for a not-found player or card.
//
// No session method acquires any lock other than the session's own, so at
// most one session lock is ever held by a single execution path.
type Session struct {
	ID string `json:"id"`
	// Players maps player id to seat state. Turn order is never derived
	// from iteration over this map; see seatingLocked.
	Players map[string]*Player `json:"players"`
	// Battlefield is the legacy session-wide battlefield, superseded by
	// per-player battlefields but retained for client compatibility.
	Battlefield []Card `json:"battlefield"`
	// CurrentTurnPlayer indexes into the seating order (players sorted by
	// join order), not into the Players map.
	CurrentTurnPlayer int   `json:"current_turn_player"`
	TurnNumber        int   `json:"turn_number"`
	CreatedAt         int64 `json:"created_at"`

	mu          sync.Mutex
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewSession creates an empty session.
func NewSession(id string, buffer int, logger *zap.Logger) *Session {
	return &Session{
		ID:          id,
		Players:     make(map[string]*Player),
		Battlefield: make([]Card, 0),
		TurnNumber:  1,
		CreatedAt:   time.Now().Unix(),
		broadcaster: NewBroadcaster(buffer),
		logger:      logger,
	}
}

// Subscribe attaches a new subscriber to the session's broadcast feed.
func (s *Session) Subscribe() (<-chan Message, func()) {
	return s.broadcaster.Subscribe()
}

// PublishEvent broadcasts a pre-encoded ephemeral message (dice roll,
// reveal, restart notice) without touching session state.
func (s *Session) PublishEvent(payload []byte) {
	s.broadcaster.Publish(Message{Kind: KindEvent, Payload: payload})
}

// Snapshot serializes the full session state under the session lock.
func (s *Session) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() []byte {
	data, err := json.Marshal(s)
	if err != nil {
		s.logger.Error("failed to serialize session state",
			zap.String("session_id", s.ID),
			zap.Error(err),
		)
		return nil
	}
	return data
}

// applyLocked runs one mutation under the session lock and publishes a
// full snapshot when the mutation reports success. Failures are dropped
// with no effect; this is the single place a future error-acknowledgment
// channel would hook into.
func (s *Session) applyLocked(mutate func() bool) bool {
	s.mu.Lock()
	applied := mutate()
	var snapshot []byte
	if applied {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if applied && snapshot != nil {
		s.broadcaster.Publish(Message{Kind: KindSnapshot, Payload: snapshot})
	}
	return applied
}

// seatingLocked returns players ordered by join order. Ties (possible
// when join orders were reassigned after a leave) break on player id so
// the order stays deterministic.
func (s *Session) seatingLocked() []*Player {
	seats := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		seats = append(seats, p)
	}
	sort.Slice(seats, func(i, j int) bool {
		if seats[i].JoinOrder != seats[j].JoinOrder {
			return seats[i].JoinOrder < seats[j].JoinOrder
		}
		return seats[i].ID < seats[j].ID
	})
	return seats
}

// setActiveSeatLocked clears every player's active flag and sets the
// player at the current turn pointer active.
func (s *Session) setActiveSeatLocked() {
	seats := s.seatingLocked()
	if len(seats) == 0 {
		return
	}
	for _, p := range seats {
		p.Active = false
	}
	seats[s.CurrentTurnPlayer].Active = true
}

// Join adds the player to the session on first connection, assigning the
// next join order, or marks an existing player active on reconnection.
// It returns the player's join order. The resulting state is broadcast.
func (s *Session) Join(playerID, name string) int {
	var joinOrder int
	s.applyLocked(func() bool {
		if p, ok := s.Players[playerID]; ok {
			p.Active = true
			joinOrder = p.JoinOrder
			return true
		}
		if name == "" {
			name = fmt.Sprintf("Player %d", len(s.Players)+1)
		}
		p := NewPlayer(playerID, name, len(s.Players))
		s.Players[playerID] = p
		joinOrder = p.JoinOrder
		return true
	})
	return joinOrder
}

// MarkInactive flags the player as disconnected without removing the
// seat. Only an explicit leave removes a player.
func (s *Session) MarkInactive(playerID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		p.Active = false
		return true
	})
}

// RemovePlayer removes a seat in response to an explicit leave. It
// reports whether the session is now empty; the caller is responsible
// for deleting an empty session from the registry (keeping registry and
// session locking disciplines separate).
func (s *Session) RemovePlayer(playerID string) (empty bool) {
	s.applyLocked(func() bool {
		if _, ok := s.Players[playerID]; !ok {
			empty = len(s.Players) == 0
			return false
		}
		delete(s.Players, playerID)
		empty = len(s.Players) == 0
		if !empty {
			// Keep the turn pointer valid for the shrunk seating order.
			s.CurrentTurnPlayer %= len(s.Players)
			s.setActiveSeatLocked()
		}
		return true
	})
	return empty
}

// PlayerCount reports the number of seats.
func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Players)
}

// UpdateLife adjusts a player's life total. Life is unbounded and may go
// negative.
func (s *Session) UpdateLife(playerID string, delta int) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		p.Life += delta
		return true
	})
}

// UpdateCounter adjusts a non-life counter, clamping the result at zero.
func (s *Session) UpdateCounter(playerID string, kind CounterKind, delta int) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		c := p.counter(kind)
		if c == nil {
			return false
		}
		*c += delta
		if *c < 0 {
			*c = 0
		}
		return true
	})
}

// SetPlayerName replaces a player's display name.
func (s *Session) SetPlayerName(playerID, name string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		p.Name = name
		return true
	})
}

// MoveCard moves a card between two zones of the same player, appending
// it to the destination. A token leaving the battlefield is deleted
// instead of moved.
func (s *Session) MoveCard(playerID, cardID string, from, to Zone) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		src := p.zone(from)
		dst := p.zone(to)
		if src == nil || dst == nil {
			return false
		}
		idx := p.findCard(from, cardID)
		if idx < 0 {
			return false
		}
		card := (*src)[idx]
		*src = append((*src)[:idx], (*src)[idx+1:]...)
		if card.IsToken && from == ZoneBattlefield && to != ZoneBattlefield {
			// Tokens are ephemeral: leaving the battlefield destroys them.
			return true
		}
		*dst = append(*dst, card)
		return true
	})
}

// DiscardCard moves a card from hand to graveyard.
func (s *Session) DiscardCard(playerID, cardID string) bool {
	return s.MoveCard(playerID, cardID, ZoneHand, ZoneGraveyard)
}

// MoveCardOnBattlefield updates a battlefield card's position in place.
func (s *Session) MoveCardOnBattlefield(playerID, cardID string, x, y float64) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		idx := p.findCard(ZoneBattlefield, cardID)
		if idx < 0 {
			return false
		}
		p.Battlefield[idx].X = x
		p.Battlefield[idx].Y = y
		return true
	})
}

// TapCard toggles the tapped flag of a battlefield card.
func (s *Session) TapCard(playerID, cardID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		idx := p.findCard(ZoneBattlefield, cardID)
		if idx < 0 {
			return false
		}
		p.Battlefield[idx].Tapped = !p.Battlefield[idx].Tapped
		return true
	})
}

// FlipCard toggles the flipped flag of a card, scanning the player's
// zones in a fixed order; the first match wins.
func (s *Session) FlipCard(playerID, cardID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		for _, z := range flipSearchOrder {
			if idx := p.findCard(z, cardID); idx >= 0 {
				cards := p.zone(z)
				(*cards)[idx].Flipped = !(*cards)[idx].Flipped
				return true
			}
		}
		return false
	})
}

// CopyCard appends a token copy of a battlefield card to the battlefield.
// The copy keeps the original's name, image, and tap/flip state but is
// never a commander.
func (s *Session) CopyCard(playerID, cardID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		idx := p.findCard(ZoneBattlefield, cardID)
		if idx < 0 {
			return false
		}
		orig := p.Battlefield[idx]
		token := NewCard(orig.Name, orig.Image)
		token.Tapped = orig.Tapped
		token.Flipped = orig.Flipped
		token.IsToken = true
		token.X = orig.X
		token.Y = orig.Y
		p.Battlefield = append(p.Battlefield, token)
		return true
	})
}

// UntapAll clears the tapped flag on every card in every zone of the
// player.
func (s *Session) UntapAll(playerID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		for _, z := range flipSearchOrder {
			cards := p.zone(z)
			for i := range *cards {
				(*cards)[i].Tapped = false
			}
		}
		return true
	})
}

// DrawCard moves up to count cards from the end of the library to the
// hand. A short library moves fewer cards; an empty library moves none.
func (s *Session) DrawCard(playerID string, count int) bool {
	if count < 1 {
		count = 1
	}
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		for i := 0; i < count && len(p.Library) > 0; i++ {
			card := p.Library[len(p.Library)-1]
			p.Library = p.Library[:len(p.Library)-1]
			p.Hand = append(p.Hand, card)
		}
		return true
	})
}

// MillCard moves one card from the end of the library to the graveyard.
func (s *Session) MillCard(playerID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		if len(p.Library) == 0 {
			return true
		}
		card := p.Library[len(p.Library)-1]
		p.Library = p.Library[:len(p.Library)-1]
		p.Graveyard = append(p.Graveyard, card)
		return true
	})
}

// ManifestCard moves a library card face down onto the battlefield at the
// given position.
func (s *Session) ManifestCard(playerID, cardID string, x, y float64) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		idx := p.findCard(ZoneLibrary, cardID)
		if idx < 0 {
			return false
		}
		card := p.Library[idx]
		p.Library = append(p.Library[:idx], p.Library[idx+1:]...)
		card.Flipped = true
		card.X = x
		card.Y = y
		p.Battlefield = append(p.Battlefield, card)
		return true
	})
}

// SpawnCard creates a brand-new token directly on the battlefield at the
// default position.
func (s *Session) SpawnCard(playerID, name, image string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		card := NewCard(name, image)
		card.IsToken = true
		card.X = DefaultBattlefieldX
		card.Y = DefaultBattlefieldY
		p.Battlefield = append(p.Battlefield, card)
		return true
	})
}

// LoadLibrary clears every zone and deals a fresh deck: count-1 blank
// cards in the library and one blank commander in the command zone. A
// zero count leaves all zones empty. kind is an opaque deck label stored
// on the blanks so the client can render the matching card back.
func (s *Session) LoadLibrary(playerID string, count int, kind string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		p.Hand = make([]Card, 0)
		p.Library = make([]Card, 0)
		p.Battlefield = make([]Card, 0)
		p.Graveyard = make([]Card, 0)
		p.Exile = make([]Card, 0)
		p.CommandZone = make([]Card, 0)
		if count <= 0 {
			return true
		}
		for i := 0; i < count-1; i++ {
			p.Library = append(p.Library, NewCard("", kind))
		}
		commander := NewCard("", kind)
		commander.IsCommander = true
		p.CommandZone = append(p.CommandZone, commander)
		return true
	})
}

// ShuffleLibrary permutes the library uniformly at random.
func (s *Session) ShuffleLibrary(playerID string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		rand.Shuffle(len(p.Library), func(i, j int) {
			p.Library[i], p.Library[j] = p.Library[j], p.Library[i]
		})
		return true
	})
}

// ScryComplete reorders the library after a scry: the named top ids come
// first in the given order, untouched cards keep their relative order in
// the middle, and the named bottom ids are appended last in the given
// order. Ids not present in the library are ignored.
func (s *Session) ScryComplete(playerID string, topIDs, bottomIDs []string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		p.Library = reorderLibrary(p.Library, topIDs, bottomIDs, nil)
		return true
	})
}

// SurveilComplete is like ScryComplete except the second id list is moved
// out of the library into the graveyard instead of to the bottom.
func (s *Session) SurveilComplete(playerID string, topIDs, graveyardIDs []string) bool {
	return s.applyLocked(func() bool {
		p, ok := s.Players[playerID]
		if !ok {
			return false
		}
		var toGrave []Card
		p.Library = reorderLibrary(p.Library, topIDs, nil, func(c Card) bool {
			for _, id := range graveyardIDs {
				if c.ID == id {
					toGrave = append(toGrave, c)
					return true
				}
			}
			return false
		})
		p.Graveyard = append(p.Graveyard, toGrave...)
		return true
	})
}

// reorderLibrary rebuilds a library as top ids, untouched cards in their
// original relative order, then bottom ids. Cards matched by remove are
// taken out of the library entirely.
func reorderLibrary(library []Card, topIDs, bottomIDs []string, remove func(Card) bool) []Card {
	byID := make(map[string]Card, len(library))
	for _, c := range library {
		byID[c.ID] = c
	}
	named := make(map[string]bool, len(topIDs)+len(bottomIDs))
	for _, id := range topIDs {
		named[id] = true
	}
	for _, id := range bottomIDs {
		named[id] = true
	}

	result := make([]Card, 0, len(library))
	for _, id := range topIDs {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	for _, c := range library {
		if named[c.ID] {
			continue
		}
		if remove != nil && remove(c) {
			continue
		}
		result = append(result, c)
	}
	for _, id := range bottomIDs {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result
}

// NextTurn advances the turn pointer one seat, wrapping at the end of the
// seating order. The turn number increments only when the pointer wraps
// back to seat 0. The new seat's player becomes the sole active player.
func (s *Session) NextTurn() bool {
	return s.applyLocked(func() bool {
		if len(s.Players) == 0 {
			return false
		}
		s.CurrentTurnPlayer = (s.CurrentTurnPlayer + 1) % len(s.Players)
		if s.CurrentTurnPlayer == 0 {
			s.TurnNumber++
		}
		s.setActiveSeatLocked()
		return true
	})
}

// UndoTurn is the inverse of NextTurn: the pointer moves one seat back,
// and the turn number decrements only when wrapping past seat 0, never
// below 1.
func (s *Session) UndoTurn() bool {
	return s.applyLocked(func() bool {
		if len(s.Players) == 0 {
			return false
		}
		if s.CurrentTurnPlayer == 0 {
			if s.TurnNumber > 1 {
				s.TurnNumber--
			}
			s.CurrentTurnPlayer = len(s.Players) - 1
		} else {
			s.CurrentTurnPlayer--
		}
		s.setActiveSeatLocked()
		return true
	})
}

// RestartGame resets every player to defaults: counters back to their
// starting values, all cards collected back into the library (tokens are
// destroyed, flags and positions cleared), seat 0 active, turn pointer
// and turn number reset.
func (s *Session) RestartGame() bool {
	return s.applyLocked(func() bool {
		for _, p := range s.Players {
			p.Life = startingLife
			p.Poison = 0
			p.Energy = 0
			p.Experience = 0

			library := make([]Card, 0, len(p.Library)+len(p.Hand)+len(p.Battlefield)+len(p.Graveyard)+len(p.Exile)+len(p.CommandZone))
			for _, z := range []Zone{ZoneLibrary, ZoneHand, ZoneBattlefield, ZoneGraveyard, ZoneExile, ZoneCommand} {
				for _, c := range *p.zone(z) {
					if c.IsToken {
						continue
					}
					c.Tapped = false
					c.Flipped = false
					c.X = 0
					c.Y = 0
					library = append(library, c)
				}
			}
			p.Hand = make([]Card, 0)
			p.Library = library
			p.Battlefield = make([]Card, 0)
			p.Graveyard = make([]Card, 0)
			p.Exile = make([]Card, 0)
			p.CommandZone = make([]Card, 0)
		}
		s.Battlefield = make([]Card, 0)
		s.CurrentTurnPlayer = 0
		s.TurnNumber = 1
		s.setActiveSeatLocked()
		return true
	})
}
