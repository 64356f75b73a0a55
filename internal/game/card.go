package game

import "github.com/google/uuid"

// Zone identifies one of a player's card containers. The wire names match
// the client protocol; battlefield and library joined the protocol later
// than the other four but are first-class here.
type Zone string

const (
	ZoneHand        Zone = "hand"
	ZoneLibrary     Zone = "library"
	ZoneBattlefield Zone = "battlefield"
	ZoneGraveyard   Zone = "graveyard"
	ZoneExile       Zone = "exile"
	ZoneCommand     Zone = "command_zone"
)

// flipSearchOrder is the fixed order in which FlipCard scans zones;
// the first zone containing the card wins.
var flipSearchOrder = [...]Zone{
	ZoneBattlefield,
	ZoneHand,
	ZoneLibrary,
	ZoneGraveyard,
	ZoneExile,
	ZoneCommand,
}

// ParseZone maps a wire zone name to a Zone.
func ParseZone(name string) (Zone, bool) {
	switch Zone(name) {
	case ZoneHand, ZoneLibrary, ZoneBattlefield, ZoneGraveyard, ZoneExile, ZoneCommand:
		return Zone(name), true
	default:
		return "", false
	}
}

// Default battlefield position for cards that arrive without coordinates
// (spawned tokens, manifested cards).
const (
	DefaultBattlefieldX = 100.0
	DefaultBattlefieldY = 100.0
)

// Card is an inert token moved between zones. It carries no rules logic.
// Image is an opaque reference resolved by the client; the engine never
// interprets it.
type Card struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Image       string  `json:"image,omitempty"`
	Tapped      bool    `json:"tapped"`
	Flipped     bool    `json:"flipped"`
	IsCommander bool    `json:"is_commander"`
	IsToken     bool    `json:"is_token"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// NewCard creates a card with a fresh identity.
func NewCard(name, image string) Card {
	return Card{
		ID:    uuid.New().String(),
		Name:  name,
		Image: image,
	}
}
