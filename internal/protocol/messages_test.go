package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gametable/gametable-server-go/internal/protocol"
)

func TestDecodeUpdateLife(t *testing.T) {
	msg := protocol.DecodeInbound([]byte(`{"UpdateLife": {"player_id": "p2", "delta": -3}}`))

	require.Equal(t, protocol.KindUpdateLife, msg.Kind)
	require.NotNil(t, msg.UpdateLife)
	assert.Equal(t, "p2", msg.UpdateLife.PlayerID)
	assert.Equal(t, -3, msg.UpdateLife.Delta)
}

func TestDecodeMoveCard(t *testing.T) {
	msg := protocol.DecodeInbound([]byte(
		`{"MoveCard": {"card_id": "c1", "from_zone": "hand", "to_zone": "battlefield"}}`))

	require.Equal(t, protocol.KindMoveCard, msg.Kind)
	assert.Equal(t, "c1", msg.MoveCard.CardID)
	assert.Equal(t, "hand", msg.MoveCard.FromZone)
	assert.Equal(t, "battlefield", msg.MoveCard.ToZone)
}

func TestDecodeTagOnlyOperations(t *testing.T) {
	for _, tag := range []string{
		"NextTurn", "UndoTurn", "RestartGame", "LeaveTable",
		"UntapAll", "MillCard", "ShuffleLibrary",
	} {
		msg := protocol.DecodeInbound([]byte(`{"` + tag + `": {}}`))
		assert.Equal(t, protocol.Kind(tag), msg.Kind, "tag %s", tag)
	}
}

func TestDecodeScryComplete(t *testing.T) {
	msg := protocol.DecodeInbound([]byte(
		`{"ScryComplete": {"top_ids": ["a", "b"], "bottom_ids": ["c"]}}`))

	require.Equal(t, protocol.KindScryComplete, msg.Kind)
	assert.Equal(t, []string{"a", "b"}, msg.ScryComplete.TopIDs)
	assert.Equal(t, []string{"c"}, msg.ScryComplete.BottomIDs)
}

func TestDecodeManifestCardOptionalPosition(t *testing.T) {
	msg := protocol.DecodeInbound([]byte(`{"ManifestCard": {"card_id": "c1"}}`))
	require.Equal(t, protocol.KindManifestCard, msg.Kind)
	assert.Nil(t, msg.ManifestCard.X)
	assert.Nil(t, msg.ManifestCard.Y)

	msg = protocol.DecodeInbound([]byte(`{"ManifestCard": {"card_id": "c1", "x": 10, "y": 20}}`))
	require.NotNil(t, msg.ManifestCard.X)
	assert.Equal(t, 10.0, *msg.ManifestCard.X)
}

func TestDecodeUnknownTagIsIgnored(t *testing.T) {
	msg := protocol.DecodeInbound([]byte(`{"CastSpell": {"card_id": "c1"}}`))
	assert.Equal(t, protocol.KindIgnored, msg.Kind)
}

func TestDecodeMalformedPayloadIsIgnored(t *testing.T) {
	for _, raw := range []string{
		`not json at all`,
		`42`,
		`{"UpdateLife": {"delta": "not a number"}}`,
		`{}`,
	} {
		msg := protocol.DecodeInbound([]byte(raw))
		assert.Equal(t, protocol.KindIgnored, msg.Kind, "input %s", raw)
	}
}

func TestEncodeGameState(t *testing.T) {
	state := []byte(`{"id":"ABC123","turn_number":1}`)
	data, err := protocol.EncodeGameState(state, "p1", 0)
	require.NoError(t, err)

	var envelope map[string]protocol.GameState
	require.NoError(t, json.Unmarshal(data, &envelope))

	gs, ok := envelope["GameState"]
	require.True(t, ok, "missing GameState tag in %s", data)
	assert.Equal(t, "p1", gs.PlayerID)
	assert.Equal(t, 0, gs.PlayerJoinOrder)

	// The state travels as a JSON string the client parses separately.
	var inner struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(gs.State), &inner))
	assert.Equal(t, "ABC123", inner.ID)
}

func TestEncodeEphemeralEvents(t *testing.T) {
	data, err := protocol.EncodeDiceRoll(protocol.DiceRoll{PlayerName: "Alice", Sides: 20, Result: 17})
	require.NoError(t, err)
	assert.JSONEq(t, `{"DiceRoll": {"player_name": "Alice", "sides": 20, "result": 17}}`, string(data))

	data, err = protocol.EncodeGameRestarted()
	require.NoError(t, err)
	assert.JSONEq(t, `{"GameRestarted": {}}`, string(data))

	data, err = protocol.EncodeRevealCard(protocol.RevealCard{PlayerName: "Alice", CardName: "Doom Blade"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"RevealCard": {"player_name": "Alice", "card_name": "Doom Blade"}}`, string(data))
}
