package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gametable/gametable-server-go/internal/game"
	"github.com/gametable/gametable-server-go/internal/protocol"
)

// writeWait bounds each websocket write so a dead peer cannot park the
// forwarder goroutine until the TCP stack gives up.
const writeWait = 10 * time.Second

// handleWS bridges one websocket connection to the session engine. The
// connection runs two tasks: this goroutine's read loop and a broadcast
// forwarder; closing the broadcast subscription or the socket ends both.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "game_id")
	playerID := chi.URLParam(r, "player_id")
	playerName := chi.URLParam(r, "player_name")

	sess, ok := s.registry.Get(gameID)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("session_id", gameID),
			zap.Error(err),
		)
		return
	}
	defer conn.Close()

	s.metrics.ActiveConnections.Inc()
	defer s.metrics.ActiveConnections.Dec()

	// First-time connection creates the seat; reconnection reactivates it.
	joinOrder := sess.Join(playerID, playerName)

	sub, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	s.logger.Info("player connected",
		zap.String("session_id", gameID),
		zap.String("player_id", playerID),
		zap.Int("join_order", joinOrder),
	)

	// Initial snapshot, annotated with this connection's own seat, goes
	// out before the forwarding task takes over the write side.
	if init, err := protocol.EncodeGameState(sess.Snapshot(), playerID, joinOrder); err == nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, init); err != nil {
			return
		}
	}

	go s.forwardBroadcasts(conn, sub, playerID, joinOrder)

	left := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if s.dispatch(sess, playerID, data) {
			left = true
			break
		}
	}

	// Disconnect without an explicit leave keeps the seat, marked
	// inactive.
	if !left {
		sess.MarkInactive(playerID)
	}

	s.logger.Info("player disconnected",
		zap.String("session_id", gameID),
		zap.String("player_id", playerID),
		zap.Bool("left_table", left),
	)
}

// forwardBroadcasts relays the session's broadcast feed to one
// connection until the subscription is closed or a write fails. Snapshots
// are wrapped with the connection's own seat context; events pass through
// verbatim.
func (s *Server) forwardBroadcasts(conn *websocket.Conn, sub <-chan game.Message, playerID string, joinOrder int) {
	for msg := range sub {
		var out []byte
		switch msg.Kind {
		case game.KindSnapshot:
			encoded, err := protocol.EncodeGameState(msg.Payload, playerID, joinOrder)
			if err != nil {
				continue
			}
			out = encoded
		case game.KindEvent:
			out = msg.Payload
		default:
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			// Kick the read loop so the connection tears down fully.
			conn.Close()
			return
		}
	}
}

// dispatch decodes one inbound message and applies it to the session. It
// returns true when the player explicitly left the table. Unknown tags,
// malformed payloads, and failed mutations are dropped silently; the
// connection stays open.
func (s *Server) dispatch(sess *game.Session, playerID string, data []byte) (left bool) {
	msg := protocol.DecodeInbound(data)

	// UpdateLife, UpdateCounter, and SetPlayerName may target any seat;
	// an empty player_id means the sender's own.
	target := func(id string) string {
		if id == "" {
			return playerID
		}
		return id
	}

	applied := false
	switch msg.Kind {
	case protocol.KindUpdateLife:
		applied = sess.UpdateLife(target(msg.UpdateLife.PlayerID), msg.UpdateLife.Delta)

	case protocol.KindUpdateCounter:
		kind, ok := game.ParseCounterKind(msg.UpdateCounter.CounterType)
		if ok {
			applied = sess.UpdateCounter(target(msg.UpdateCounter.PlayerID), kind, msg.UpdateCounter.Delta)
		}

	case protocol.KindSetPlayerName:
		applied = sess.SetPlayerName(target(msg.SetPlayerName.PlayerID), msg.SetPlayerName.Name)

	case protocol.KindMoveCard:
		from, okFrom := game.ParseZone(msg.MoveCard.FromZone)
		to, okTo := game.ParseZone(msg.MoveCard.ToZone)
		if okFrom && okTo {
			applied = sess.MoveCard(playerID, msg.MoveCard.CardID, from, to)
		}

	case protocol.KindDrawCard:
		applied = sess.DrawCard(playerID, msg.DrawCard.Count)

	case protocol.KindMillCard:
		applied = sess.MillCard(playerID)

	case protocol.KindDiscardCard:
		applied = sess.DiscardCard(playerID, msg.DiscardCard.CardID)

	case protocol.KindTapCard:
		applied = sess.TapCard(playerID, msg.TapCard.CardID)

	case protocol.KindFlipCard:
		applied = sess.FlipCard(playerID, msg.FlipCard.CardID)

	case protocol.KindCopy:
		applied = sess.CopyCard(playerID, msg.Copy.CardID)

	case protocol.KindUntapAll:
		applied = sess.UntapAll(playerID)

	case protocol.KindMoveCardOnBattlefield:
		applied = sess.MoveCardOnBattlefield(playerID,
			msg.MoveCardOnBattlefield.CardID,
			msg.MoveCardOnBattlefield.X,
			msg.MoveCardOnBattlefield.Y,
		)

	case protocol.KindLoadLibrary:
		applied = sess.LoadLibrary(playerID, msg.LoadLibrary.Count, msg.LoadLibrary.DeckType)

	case protocol.KindShuffleLibrary:
		applied = sess.ShuffleLibrary(playerID)

	case protocol.KindScryComplete:
		applied = sess.ScryComplete(playerID, msg.ScryComplete.TopIDs, msg.ScryComplete.BottomIDs)

	case protocol.KindSurveilComplete:
		applied = sess.SurveilComplete(playerID, msg.SurveilComplete.TopIDs, msg.SurveilComplete.GraveyardIDs)

	case protocol.KindManifestCard:
		x, y := game.DefaultBattlefieldX, game.DefaultBattlefieldY
		if msg.ManifestCard.X != nil {
			x = *msg.ManifestCard.X
		}
		if msg.ManifestCard.Y != nil {
			y = *msg.ManifestCard.Y
		}
		applied = sess.ManifestCard(playerID, msg.ManifestCard.CardID, x, y)

	case protocol.KindSpawnCard:
		applied = sess.SpawnCard(playerID, msg.SpawnCard.Name, msg.SpawnCard.Image)

	case protocol.KindNextTurn:
		applied = sess.NextTurn()

	case protocol.KindUndoTurn:
		applied = sess.UndoTurn()

	case protocol.KindRestartGame:
		applied = sess.RestartGame()
		if applied {
			if notice, err := protocol.EncodeGameRestarted(); err == nil {
				sess.PublishEvent(notice)
			}
		}

	case protocol.KindLeaveTable:
		if sess.RemovePlayer(playerID) {
			s.registry.Delete(sess.ID)
		}
		s.metrics.MessagesApplied.WithLabelValues(string(msg.Kind)).Inc()
		return true

	case protocol.KindDiceRoll:
		// Ephemeral annotation: broadcast without touching state.
		if event, err := protocol.EncodeDiceRoll(*msg.DiceRoll); err == nil {
			sess.PublishEvent(event)
			applied = true
		}

	case protocol.KindRevealCard:
		if event, err := protocol.EncodeRevealCard(*msg.RevealCard); err == nil {
			sess.PublishEvent(event)
			applied = true
		}

	case protocol.KindScry:
		// The client drives scry locally; the server only cares about the
		// final ScryComplete ordering.
		applied = true

	case protocol.KindIgnored:
		// Unknown tag or malformed payload: drop, keep the stream alive.
	}

	if applied {
		s.metrics.MessagesApplied.WithLabelValues(string(msg.Kind)).Inc()
	} else {
		s.metrics.MessagesDropped.Inc()
	}
	return false
}
