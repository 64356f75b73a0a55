// Package protocol maps wire messages to and from the engine's operation
// vocabulary. Messages are externally tagged JSON unions with snake_case
// fields, e.g. {"UpdateLife": {"player_id": "p1", "delta": -3}}. The
// shapes are a compatibility contract with existing clients and must not
// change.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind is the tag of an inbound or outbound message.
type Kind string

const (
	KindUpdateLife            Kind = "UpdateLife"
	KindUpdateCounter         Kind = "UpdateCounter"
	KindSetPlayerName         Kind = "SetPlayerName"
	KindDiceRoll              Kind = "DiceRoll"
	KindLoadLibrary           Kind = "LoadLibrary"
	KindShuffleLibrary        Kind = "ShuffleLibrary"
	KindMoveCard              Kind = "MoveCard"
	KindDrawCard              Kind = "DrawCard"
	KindMillCard              Kind = "MillCard"
	KindDiscardCard           Kind = "DiscardCard"
	KindTapCard               Kind = "TapCard"
	KindFlipCard              Kind = "FlipCard"
	KindCopy                  Kind = "Copy"
	KindUntapAll              Kind = "UntapAll"
	KindMoveCardOnBattlefield Kind = "MoveCardOnBattlefield"
	KindNextTurn              Kind = "NextTurn"
	KindUndoTurn              Kind = "UndoTurn"
	KindRestartGame           Kind = "RestartGame"
	KindLeaveTable            Kind = "LeaveTable"
	KindRevealCard            Kind = "RevealCard"
	KindScry                  Kind = "Scry"
	KindScryComplete          Kind = "ScryComplete"
	KindSurveilComplete       Kind = "SurveilComplete"
	KindManifestCard          Kind = "ManifestCard"
	KindSpawnCard             Kind = "SpawnCard"

	// KindIgnored is the explicit variant for unknown tags and malformed
	// payloads; the connection drops these and stays open.
	KindIgnored Kind = ""

	// Outbound-only tags.
	KindGameState     Kind = "GameState"
	KindGameRestarted Kind = "GameRestarted"
)

// Inbound payload shapes. A missing player_id means the sender's own seat.

type UpdateLife struct {
	PlayerID string `json:"player_id"`
	Delta    int    `json:"delta"`
}

type UpdateCounter struct {
	PlayerID    string `json:"player_id"`
	CounterType string `json:"counter_type"`
	Delta       int    `json:"delta"`
}

type SetPlayerName struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

type DiceRoll struct {
	PlayerName string `json:"player_name"`
	Sides      int    `json:"sides"`
	Result     int    `json:"result"`
}

type LoadLibrary struct {
	Count    int    `json:"count"`
	DeckType string `json:"deck_type"`
}

type MoveCard struct {
	CardID   string `json:"card_id"`
	FromZone string `json:"from_zone"`
	ToZone   string `json:"to_zone"`
}

type DrawCard struct {
	Count int `json:"count"`
}

type CardAction struct {
	CardID string `json:"card_id"`
}

type MoveCardOnBattlefield struct {
	CardID string  `json:"card_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type RevealCard struct {
	PlayerName string `json:"player_name"`
	CardName   string `json:"card_name"`
	Image      string `json:"image,omitempty"`
}

type Scry struct {
	Count int `json:"count"`
}

type ScryComplete struct {
	TopIDs    []string `json:"top_ids"`
	BottomIDs []string `json:"bottom_ids"`
}

type SurveilComplete struct {
	TopIDs       []string `json:"top_ids"`
	GraveyardIDs []string `json:"graveyard_ids"`
}

type ManifestCard struct {
	CardID string   `json:"card_id"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
}

type SpawnCard struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Inbound is one decoded client message. Exactly one payload pointer is
// set, matching Kind; tag-only operations (NextTurn, UntapAll, ...) carry
// no payload.
type Inbound struct {
	Kind Kind

	UpdateLife            *UpdateLife
	UpdateCounter         *UpdateCounter
	SetPlayerName         *SetPlayerName
	DiceRoll              *DiceRoll
	LoadLibrary           *LoadLibrary
	MoveCard              *MoveCard
	DrawCard              *DrawCard
	DiscardCard           *CardAction
	TapCard               *CardAction
	FlipCard              *CardAction
	Copy                  *CardAction
	MoveCardOnBattlefield *MoveCardOnBattlefield
	RevealCard            *RevealCard
	Scry                  *Scry
	ScryComplete          *ScryComplete
	SurveilComplete       *SurveilComplete
	ManifestCard          *ManifestCard
	SpawnCard             *SpawnCard
}

// DecodeInbound decodes one wire message. Unknown tags and malformed
// payloads yield KindIgnored rather than an error: a bad message never
// takes down the stream.
func DecodeInbound(data []byte) Inbound {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Inbound{Kind: KindIgnored}
	}

	for tag, payload := range envelope {
		msg, ok := decodePayload(Kind(tag), payload)
		if !ok {
			continue
		}
		return msg
	}
	return Inbound{Kind: KindIgnored}
}

func decodePayload(tag Kind, payload json.RawMessage) (Inbound, bool) {
	unmarshal := func(v any) bool {
		if len(payload) == 0 {
			return true
		}
		return json.Unmarshal(payload, v) == nil
	}

	msg := Inbound{Kind: tag}
	ok := true
	switch tag {
	case KindUpdateLife:
		msg.UpdateLife = &UpdateLife{}
		ok = unmarshal(msg.UpdateLife)
	case KindUpdateCounter:
		msg.UpdateCounter = &UpdateCounter{}
		ok = unmarshal(msg.UpdateCounter)
	case KindSetPlayerName:
		msg.SetPlayerName = &SetPlayerName{}
		ok = unmarshal(msg.SetPlayerName)
	case KindDiceRoll:
		msg.DiceRoll = &DiceRoll{}
		ok = unmarshal(msg.DiceRoll)
	case KindLoadLibrary:
		msg.LoadLibrary = &LoadLibrary{}
		ok = unmarshal(msg.LoadLibrary)
	case KindMoveCard:
		msg.MoveCard = &MoveCard{}
		ok = unmarshal(msg.MoveCard)
	case KindDrawCard:
		msg.DrawCard = &DrawCard{}
		ok = unmarshal(msg.DrawCard)
	case KindDiscardCard:
		msg.DiscardCard = &CardAction{}
		ok = unmarshal(msg.DiscardCard)
	case KindTapCard:
		msg.TapCard = &CardAction{}
		ok = unmarshal(msg.TapCard)
	case KindFlipCard:
		msg.FlipCard = &CardAction{}
		ok = unmarshal(msg.FlipCard)
	case KindCopy:
		msg.Copy = &CardAction{}
		ok = unmarshal(msg.Copy)
	case KindMoveCardOnBattlefield:
		msg.MoveCardOnBattlefield = &MoveCardOnBattlefield{}
		ok = unmarshal(msg.MoveCardOnBattlefield)
	case KindRevealCard:
		msg.RevealCard = &RevealCard{}
		ok = unmarshal(msg.RevealCard)
	case KindScry:
		msg.Scry = &Scry{}
		ok = unmarshal(msg.Scry)
	case KindScryComplete:
		msg.ScryComplete = &ScryComplete{}
		ok = unmarshal(msg.ScryComplete)
	case KindSurveilComplete:
		msg.SurveilComplete = &SurveilComplete{}
		ok = unmarshal(msg.SurveilComplete)
	case KindManifestCard:
		msg.ManifestCard = &ManifestCard{}
		ok = unmarshal(msg.ManifestCard)
	case KindSpawnCard:
		msg.SpawnCard = &SpawnCard{}
		ok = unmarshal(msg.SpawnCard)
	case KindShuffleLibrary, KindMillCard, KindUntapAll,
		KindNextTurn, KindUndoTurn, KindRestartGame, KindLeaveTable:
		// Tag-only operations.
	default:
		return Inbound{Kind: KindIgnored}, false
	}

	if !ok {
		return Inbound{Kind: KindIgnored}, false
	}
	return msg, true
}

// GameState is the outbound full-snapshot envelope. State is the session
// serialized as a JSON string; PlayerID and PlayerJoinOrder identify the
// receiving connection's own seat so the client can orient itself.
type GameState struct {
	State           string `json:"state"`
	PlayerID        string `json:"player_id"`
	PlayerJoinOrder int    `json:"player_join_order"`
}

func encode(tag Kind, payload any) ([]byte, error) {
	data, err := json.Marshal(map[Kind]any{tag: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", tag, err)
	}
	return data, nil
}

// EncodeGameState wraps a serialized session snapshot for one connection.
func EncodeGameState(state []byte, playerID string, joinOrder int) ([]byte, error) {
	return encode(KindGameState, GameState{
		State:           string(state),
		PlayerID:        playerID,
		PlayerJoinOrder: joinOrder,
	})
}

// EncodeDiceRoll builds the ephemeral dice-roll annotation.
func EncodeDiceRoll(roll DiceRoll) ([]byte, error) {
	return encode(KindDiceRoll, roll)
}

// EncodeRevealCard builds the ephemeral reveal annotation.
func EncodeRevealCard(reveal RevealCard) ([]byte, error) {
	return encode(KindRevealCard, reveal)
}

// EncodeGameRestarted builds the ephemeral restart notice.
func EncodeGameRestarted() ([]byte, error) {
	return encode(KindGameRestarted, struct{}{})
}
