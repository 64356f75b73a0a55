package game_test

import (
	"encoding/json"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/gametable/gametable-server-go/internal/game"
)

func newTestSession(t *testing.T) *game.Session {
	t.Helper()
	return game.NewSession("ABC123", 8, zaptest.NewLogger(t))
}

// addCard places a card directly into a player's zone to set up fixtures.
func addCard(p *game.Player, zone game.Zone, name string) game.Card {
	card := game.NewCard(name, "")
	switch zone {
	case game.ZoneHand:
		p.Hand = append(p.Hand, card)
	case game.ZoneLibrary:
		p.Library = append(p.Library, card)
	case game.ZoneBattlefield:
		p.Battlefield = append(p.Battlefield, card)
	case game.ZoneGraveyard:
		p.Graveyard = append(p.Graveyard, card)
	case game.ZoneExile:
		p.Exile = append(p.Exile, card)
	case game.ZoneCommand:
		p.CommandZone = append(p.CommandZone, card)
	}
	return card
}

func zoneIDs(cards []game.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// countAcrossZones reports how many zones of the player contain the card.
func countAcrossZones(p *game.Player, cardID string) int {
	count := 0
	for _, zone := range [][]game.Card{p.Hand, p.Library, p.Battlefield, p.Graveyard, p.Exile, p.CommandZone} {
		for _, c := range zone {
			if c.ID == cardID {
				count++
			}
		}
	}
	return count
}

func TestJoinAssignsSequentialJoinOrders(t *testing.T) {
	s := newTestSession(t)

	if got := s.Join("p1", "Alice"); got != 0 {
		t.Fatalf("first player join order = %d, want 0", got)
	}
	if got := s.Join("p2", "Bob"); got != 1 {
		t.Fatalf("second player join order = %d, want 1", got)
	}

	// Reconnection keeps the seat and its order.
	s.MarkInactive("p2")
	if s.Players["p2"].Active {
		t.Fatal("expected p2 inactive after disconnect")
	}
	if got := s.Join("p2", "Bob"); got != 1 {
		t.Fatalf("rejoin join order = %d, want 1", got)
	}
	if !s.Players["p2"].Active {
		t.Fatal("expected p2 active after rejoin")
	}
}

func TestJoinDefaultName(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "")
	s.Join("p2", "")

	if got := s.Players["p1"].Name; got != "Player 1" {
		t.Fatalf("p1 name = %q, want %q", got, "Player 1")
	}
	if got := s.Players["p2"].Name; got != "Player 2" {
		t.Fatalf("p2 name = %q, want %q", got, "Player 2")
	}
}

func TestMoveCardBetweenZones(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	card := addCard(p, game.ZoneHand, "Llanowar Elves")

	if !s.MoveCard("p1", card.ID, game.ZoneHand, game.ZoneGraveyard) {
		t.Fatal("expected move to apply")
	}

	if len(p.Hand) != 0 {
		t.Fatalf("hand still has %d cards", len(p.Hand))
	}
	if len(p.Graveyard) != 1 || p.Graveyard[0].ID != card.ID {
		t.Fatalf("graveyard = %+v, want the moved card", p.Graveyard)
	}
	if got := countAcrossZones(p, card.ID); got != 1 {
		t.Fatalf("card present in %d zones, want exactly 1", got)
	}
}

func TestMoveCardUnknownCardIsDropped(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	if s.MoveCard("p1", "nope", game.ZoneHand, game.ZoneGraveyard) {
		t.Fatal("expected move of unknown card to be dropped")
	}
	if s.MoveCard("ghost", "nope", game.ZoneHand, game.ZoneGraveyard) {
		t.Fatal("expected move for unknown player to be dropped")
	}
}

func TestTokenLeavingBattlefieldIsDeleted(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]

	if !s.SpawnCard("p1", "Soldier", "tokens/soldier.jpg") {
		t.Fatal("expected spawn to apply")
	}
	token := p.Battlefield[0]
	if !token.IsToken {
		t.Fatal("spawned card should be a token")
	}

	if !s.MoveCard("p1", token.ID, game.ZoneBattlefield, game.ZoneGraveyard) {
		t.Fatal("expected move to apply")
	}
	if got := countAcrossZones(p, token.ID); got != 0 {
		t.Fatalf("token still present in %d zones, want 0", got)
	}
}

func TestTokenMovingWithinBattlefieldSurvives(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	s.SpawnCard("p1", "Soldier", "")
	token := p.Battlefield[0]

	if !s.MoveCard("p1", token.ID, game.ZoneBattlefield, game.ZoneBattlefield) {
		t.Fatal("expected move to apply")
	}
	if got := countAcrossZones(p, token.ID); got != 1 {
		t.Fatalf("token present in %d zones, want 1", got)
	}
}

func TestUpdateLifeUnbounded(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	s.UpdateLife("p1", -45)
	if got := s.Players["p1"].Life; got != -5 {
		t.Fatalf("life = %d, want -5", got)
	}
}

func TestUpdateCounterClampsAtZero(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	if !s.UpdateCounter("p1", game.CounterPoison, -5) {
		t.Fatal("expected counter update to apply")
	}
	if got := s.Players["p1"].Poison; got != 0 {
		t.Fatalf("poison = %d, want 0", got)
	}

	s.UpdateCounter("p1", game.CounterEnergy, 3)
	s.UpdateCounter("p1", game.CounterEnergy, -10)
	if got := s.Players["p1"].Energy; got != 0 {
		t.Fatalf("energy = %d, want 0", got)
	}
}

func TestDrawCardPopsFromLibraryEnd(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	addCard(p, game.ZoneLibrary, "bottom")
	top := addCard(p, game.ZoneLibrary, "top")

	if !s.DrawCard("p1", 1) {
		t.Fatal("expected draw to apply")
	}
	if len(p.Hand) != 1 || p.Hand[0].ID != top.ID {
		t.Fatalf("hand = %+v, want the last library card", p.Hand)
	}
}

func TestDrawCardShortLibrary(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	addCard(p, game.ZoneLibrary, "only")

	if !s.DrawCard("p1", 3) {
		t.Fatal("expected draw to apply")
	}
	if len(p.Hand) != 1 {
		t.Fatalf("hand has %d cards, want 1", len(p.Hand))
	}
	if len(p.Library) != 0 {
		t.Fatalf("library has %d cards, want 0", len(p.Library))
	}
}

func TestDrawCardEmptyLibraryIsHarmless(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	if !s.DrawCard("p1", 3) {
		t.Fatal("expected draw against empty library to apply")
	}
	if got := len(s.Players["p1"].Hand); got != 0 {
		t.Fatalf("hand has %d cards, want 0", got)
	}
}

func TestMillCard(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	addCard(p, game.ZoneLibrary, "bottom")
	top := addCard(p, game.ZoneLibrary, "top")

	s.MillCard("p1")
	if len(p.Graveyard) != 1 || p.Graveyard[0].ID != top.ID {
		t.Fatalf("graveyard = %+v, want the top library card", p.Graveyard)
	}
}

func TestTapAndUntapAll(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	card := addCard(p, game.ZoneBattlefield, "Island")

	s.TapCard("p1", card.ID)
	if !p.Battlefield[0].Tapped {
		t.Fatal("expected card tapped")
	}
	s.TapCard("p1", card.ID)
	if p.Battlefield[0].Tapped {
		t.Fatal("expected tap to toggle back")
	}

	s.TapCard("p1", card.ID)
	handCard := addCard(p, game.ZoneHand, "Forest")
	p.Hand[0].Tapped = true
	_ = handCard

	s.UntapAll("p1")
	if p.Battlefield[0].Tapped || p.Hand[0].Tapped {
		t.Fatal("expected every card untapped")
	}
}

func TestFlipCardSearchesAllZones(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	card := addCard(p, game.ZoneExile, "Phyrexian Dreadnought")

	if !s.FlipCard("p1", card.ID) {
		t.Fatal("expected flip to apply")
	}
	if !p.Exile[0].Flipped {
		t.Fatal("expected exiled card flipped")
	}
}

func TestCopyCardCreatesToken(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	card := addCard(p, game.ZoneBattlefield, "Grizzly Bears")
	p.Battlefield[0].Tapped = true
	p.Battlefield[0].IsCommander = true

	if !s.CopyCard("p1", card.ID) {
		t.Fatal("expected copy to apply")
	}
	if len(p.Battlefield) != 2 {
		t.Fatalf("battlefield has %d cards, want 2", len(p.Battlefield))
	}
	token := p.Battlefield[1]
	if token.ID == card.ID {
		t.Fatal("copy must have a fresh identity")
	}
	if token.Name != card.Name || !token.Tapped || !token.IsToken || token.IsCommander {
		t.Fatalf("unexpected copy: %+v", token)
	}
}

func TestManifestCard(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	card := addCard(p, game.ZoneLibrary, "Mystery")

	if !s.ManifestCard("p1", card.ID, 40, 60) {
		t.Fatal("expected manifest to apply")
	}
	if len(p.Library) != 0 {
		t.Fatal("expected card removed from library")
	}
	got := p.Battlefield[0]
	if !got.Flipped || got.X != 40 || got.Y != 60 {
		t.Fatalf("manifested card = %+v, want flipped at (40,60)", got)
	}
}

func TestLoadLibraryDealsBlanksAndCommander(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	addCard(p, game.ZoneHand, "stale")

	if !s.LoadLibrary("p1", 100, "commander") {
		t.Fatal("expected load to apply")
	}
	if len(p.Hand) != 0 {
		t.Fatal("expected old zones cleared")
	}
	if len(p.Library) != 99 {
		t.Fatalf("library has %d cards, want 99", len(p.Library))
	}
	if len(p.CommandZone) != 1 || !p.CommandZone[0].IsCommander {
		t.Fatalf("command zone = %+v, want one commander", p.CommandZone)
	}
}

func TestLoadLibraryZeroCount(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	addCard(p, game.ZoneLibrary, "stale")

	if !s.LoadLibrary("p1", 0, "") {
		t.Fatal("expected load to apply")
	}
	if len(p.Library) != 0 || len(p.CommandZone) != 0 {
		t.Fatal("expected all zones empty for zero count")
	}
}

func TestShuffleLibraryPreservesCards(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]
	want := make(map[string]bool)
	for i := 0; i < 30; i++ {
		want[addCard(p, game.ZoneLibrary, "card").ID] = true
	}

	if !s.ShuffleLibrary("p1") {
		t.Fatal("expected shuffle to apply")
	}
	if len(p.Library) != len(want) {
		t.Fatalf("library has %d cards, want %d", len(p.Library), len(want))
	}
	for _, c := range p.Library {
		if !want[c.ID] {
			t.Fatalf("unexpected card %s after shuffle", c.ID)
		}
	}
}

func TestScryCompleteOrdering(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]

	var ids []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, addCard(p, game.ZoneLibrary, name).ID)
	}

	if !s.ScryComplete("p1", []string{ids[0], ids[1]}, []string{ids[2]}) {
		t.Fatal("expected scry to apply")
	}

	want := []string{ids[0], ids[1], ids[3], ids[4], ids[2]}
	got := zoneIDs(p.Library)
	if len(got) != len(want) {
		t.Fatalf("library has %d cards, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("library order = %v, want %v", got, want)
		}
	}
}

func TestSurveilCompleteMovesToGraveyard(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	p := s.Players["p1"]

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		ids = append(ids, addCard(p, game.ZoneLibrary, name).ID)
	}

	if !s.SurveilComplete("p1", []string{ids[1]}, []string{ids[0]}) {
		t.Fatal("expected surveil to apply")
	}

	want := []string{ids[1], ids[2], ids[3]}
	got := zoneIDs(p.Library)
	if len(got) != len(want) {
		t.Fatalf("library = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("library order = %v, want %v", got, want)
		}
	}
	if len(p.Graveyard) != 1 || p.Graveyard[0].ID != ids[0] {
		t.Fatalf("graveyard = %+v, want card %s", p.Graveyard, ids[0])
	}
}

func TestTurnRotation(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4} {
		s := newTestSession(t)
		players := make([]string, n)
		for i := range players {
			players[i] = string(rune('a' + i))
			s.Join(players[i], "")
		}

		// A full rotation lands back on seat 0 with the turn counter
		// incremented exactly once.
		for i := 0; i < n; i++ {
			if !s.NextTurn() {
				t.Fatalf("n=%d: NextTurn failed", n)
			}
		}
		if s.CurrentTurnPlayer != 0 {
			t.Fatalf("n=%d: pointer = %d, want 0", n, s.CurrentTurnPlayer)
		}
		if s.TurnNumber != 2 {
			t.Fatalf("n=%d: turn = %d, want 2", n, s.TurnNumber)
		}
		if !s.Players[players[0]].Active {
			t.Fatalf("n=%d: seat 0 not active after full rotation", n)
		}
	}
}

func TestNextThenUndoTurnRestoresState(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		s := newTestSession(t)
		for i := 0; i < n; i++ {
			s.Join(string(rune('a'+i)), "")
		}
		s.NextTurn() // establish a definite active seat first

		pointer, turn := s.CurrentTurnPlayer, s.TurnNumber
		s.NextTurn()
		s.UndoTurn()

		if s.CurrentTurnPlayer != pointer || s.TurnNumber != turn {
			t.Fatalf("n=%d: (pointer,turn) = (%d,%d), want (%d,%d)",
				n, s.CurrentTurnPlayer, s.TurnNumber, pointer, turn)
		}
	}
}

func TestUndoTurnFloorsAtTurnOne(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "")
	s.Join("p2", "")

	s.UndoTurn()
	if s.TurnNumber != 1 {
		t.Fatalf("turn = %d, want floor of 1", s.TurnNumber)
	}
	if s.CurrentTurnPlayer != 1 {
		t.Fatalf("pointer = %d, want wrap to last seat", s.CurrentTurnPlayer)
	}
}

func TestNextTurnEmptySessionIsDropped(t *testing.T) {
	s := newTestSession(t)
	if s.NextTurn() {
		t.Fatal("expected NextTurn with no players to be dropped")
	}
}

func TestActiveSeatFollowsJoinOrderNotMapOrder(t *testing.T) {
	s := newTestSession(t)
	// Ids chosen so lexicographic order disagrees with join order.
	s.Join("zed", "")
	s.Join("amy", "")
	s.Join("mia", "")

	s.NextTurn()
	if !s.Players["amy"].Active {
		t.Fatal("expected second joiner active after one NextTurn")
	}
	s.NextTurn()
	if !s.Players["mia"].Active {
		t.Fatal("expected third joiner active after two NextTurns")
	}
}

func TestRestartGameResetsEverything(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")
	s.Join("p2", "Bob")
	p := s.Players["p2"]

	s.LoadLibrary("p2", 10, "")
	s.DrawCard("p2", 3)
	s.UpdateLife("p2", -12)
	s.UpdateCounter("p2", game.CounterPoison, 4)
	s.SpawnCard("p2", "Soldier", "")
	s.NextTurn()

	if !s.RestartGame() {
		t.Fatal("expected restart to apply")
	}

	if p.Life != 40 || p.Poison != 0 || p.Energy != 0 || p.Experience != 0 {
		t.Fatalf("counters = %d/%d/%d/%d, want 40/0/0/0", p.Life, p.Poison, p.Energy, p.Experience)
	}
	// 9 blanks drawn into hand or still in library, commander back too;
	// the spawned token is gone.
	if len(p.Library) != 10 {
		t.Fatalf("library has %d cards, want all 10 non-token cards back", len(p.Library))
	}
	if len(p.Hand)+len(p.Battlefield)+len(p.Graveyard)+len(p.Exile)+len(p.CommandZone) != 0 {
		t.Fatal("expected every other zone empty after restart")
	}
	if s.CurrentTurnPlayer != 0 || s.TurnNumber != 1 {
		t.Fatalf("(pointer,turn) = (%d,%d), want (0,1)", s.CurrentTurnPlayer, s.TurnNumber)
	}
	if !s.Players["p1"].Active {
		t.Fatal("expected seat 0 active after restart")
	}
}

func TestRemovePlayerReportsEmpty(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "")
	s.Join("p2", "")

	if s.RemovePlayer("p1") {
		t.Fatal("session should not be empty with one player left")
	}
	if !s.RemovePlayer("p2") {
		t.Fatal("expected empty after last player leaves")
	}
}

func TestRemovePlayerKeepsPointerValid(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "")
	s.Join("p2", "")
	s.Join("p3", "")
	s.NextTurn()
	s.NextTurn() // pointer on seat 2

	s.RemovePlayer("p3")
	if s.CurrentTurnPlayer >= s.PlayerCount() {
		t.Fatalf("pointer %d out of range for %d players", s.CurrentTurnPlayer, s.PlayerCount())
	}
}

func TestMutationBroadcastsSnapshot(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	sub, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.UpdateLife("p1", -7)

	msg := <-sub
	if msg.Kind != game.KindSnapshot {
		t.Fatalf("message kind = %v, want snapshot", msg.Kind)
	}

	var state struct {
		Players map[string]struct {
			Life int `json:"life"`
		} `json:"players"`
		TurnNumber int `json:"turn_number"`
	}
	if err := json.Unmarshal(msg.Payload, &state); err != nil {
		t.Fatalf("snapshot does not parse: %v", err)
	}
	if got := state.Players["p1"].Life; got != 33 {
		t.Fatalf("snapshot life = %d, want 33", got)
	}
}

func TestFailedMutationBroadcastsNothing(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	sub, unsubscribe := s.Subscribe()
	defer unsubscribe()

	s.UpdateLife("ghost", 1)

	select {
	case msg := <-sub:
		t.Fatalf("unexpected broadcast %v after dropped mutation", msg.Kind)
	default:
	}
}

func TestConcurrentLifeUpdates(t *testing.T) {
	s := newTestSession(t)
	s.Join("p1", "Alice")

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.UpdateLife("p1", 1)
		}()
	}
	wg.Wait()

	if got := s.Players["p1"].Life; got != 40+n {
		t.Fatalf("life = %d, want %d (no lost updates)", got, 40+n)
	}
}
