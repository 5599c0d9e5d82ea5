package server

import (
	"sort"

	"gridclash/internal/protocol"
)

// finalizeGameOver tallies the full grid and reliably delivers GAME_OVER to
// every known player exactly once per match. Concurrent EVENT handlers may
// all observe a full grid in the same instant; only the first wins the
// race and performs finalization.
func (s *Server) finalizeGameOver() {
	s.mu.Lock()
	if s.gameOverPlayed {
		s.mu.Unlock()
		return
	}
	s.gameOverPlayed = true
	s.mu.Unlock()

	scoresByID, _ := s.grid.Tally()

	ids := make([]byte, 0, len(scoresByID))
	for id := range scoresByID {
		ids = append(ids, id)
	}
	// Go map iteration order is randomized; scores are walked in ascending
	// player_id order so the tie-break (first seen wins) is reproducible
	// rather than dependent on map hash seeding.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	scores := make([]protocol.PlayerScore, 0, len(ids))
	var winner byte
	best := -1
	for _, id := range ids {
		score := scoresByID[id]
		scores = append(scores, protocol.PlayerScore{PlayerID: uint16(id), Score: uint16(score)})
		if score > best {
			best = score
			winner = id
		}
	}

	payload := protocol.EncodeGameOver(protocol.GameOver{WinnerID: uint16(winner), Scores: scores})
	for _, player := range s.roster.AllSnapshot() {
		key := uint64(player.ID)
		s.gameOverPending.Track(key, payload, func(data []byte) {
			s.send(player.Addr, protocol.MsgGameOver, 0, 0, data)
		}, 0)
		s.send(player.Addr, protocol.MsgGameOver, 0, 0, payload)
	}
}

func (s *Server) handleGameOverAck(payload []byte) {
	ack, err := protocol.DecodeGameOverAck(payload)
	if err != nil {
		return
	}
	s.gameOverPending.Ack(uint64(ack.PlayerID))
}
