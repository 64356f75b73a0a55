package game

// CounterKind names a non-life player counter. Non-life counters are
// clamped to zero on every mutation.
type CounterKind string

const (
	CounterPoison     CounterKind = "poison"
	CounterEnergy     CounterKind = "energy"
	CounterExperience CounterKind = "experience"
)

// ParseCounterKind maps a wire counter name to a CounterKind.
func ParseCounterKind(name string) (CounterKind, bool) {
	switch CounterKind(name) {
	case CounterPoison, CounterEnergy, CounterExperience:
		return CounterKind(name), true
	default:
		return "", false
	}
}

// startingLife is the default life total (Commander rules).
const startingLife = 40

// Player holds one seat's state. JoinOrder is the 0-based order in which
// the player entered the session and is the canonical seating order for
// all turn computation.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Life       int    `json:"life"`
	Poison     int    `json:"poison"`
	Energy     int    `json:"energy"`
	Experience int    `json:"experience"`

	Hand        []Card `json:"hand"`
	Library     []Card `json:"library"`
	Battlefield []Card `json:"battlefield"`
	Graveyard   []Card `json:"graveyard"`
	Exile       []Card `json:"exile"`
	CommandZone []Card `json:"command_zone"`

	Active    bool `json:"is_active"`
	JoinOrder int  `json:"join_order"`
}

// NewPlayer creates a player with empty zones and default counters.
func NewPlayer(id, name string, joinOrder int) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		Life:        startingLife,
		Hand:        make([]Card, 0),
		Library:     make([]Card, 0),
		Battlefield: make([]Card, 0),
		Graveyard:   make([]Card, 0),
		Exile:       make([]Card, 0),
		CommandZone: make([]Card, 0),
		Active:      true,
		JoinOrder:   joinOrder,
	}
}

// zone returns a pointer to the slice backing the named zone.
func (p *Player) zone(z Zone) *[]Card {
	switch z {
	case ZoneHand:
		return &p.Hand
	case ZoneLibrary:
		return &p.Library
	case ZoneBattlefield:
		return &p.Battlefield
	case ZoneGraveyard:
		return &p.Graveyard
	case ZoneExile:
		return &p.Exile
	case ZoneCommand:
		return &p.CommandZone
	default:
		return nil
	}
}

// findCard returns the index of the card in the named zone, or -1.
func (p *Player) findCard(z Zone, cardID string) int {
	cards := p.zone(z)
	if cards == nil {
		return -1
	}
	for i := range *cards {
		if (*cards)[i].ID == cardID {
			return i
		}
	}
	return -1
}

// counter returns a pointer to the named counter, or nil for an unknown kind.
func (p *Player) counter(kind CounterKind) *int {
	switch kind {
	case CounterPoison:
		return &p.Poison
	case CounterEnergy:
		return &p.Energy
	case CounterExperience:
		return &p.Experience
	default:
		return nil
	}
}
