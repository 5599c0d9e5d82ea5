package server

import (
	"testing"
	"time"

	"gridclash/internal/protocol"
)

func TestFinalizeGameOverPicksLowestPlayerIDOnTie(t *testing.T) {
	now := time.Unix(1000, 0)
	s, conn := newTestServer(func() time.Time { return now })
	s.handleJoin(testAddr("1.1.1.1:1"))
	s.handleJoin(testAddr("2.2.2.2:2"))

	// 4x4 grid, 16 cells: split evenly 8/8 between the two players so the
	// tie-break rule (lowest player_id) determines the winner.
	for i := 0; i < 16; i++ {
		owner := byte(1)
		if i%2 == 1 {
			owner = 2
		}
		s.grid.TryClaim(i, owner)
	}

	s.finalizeGameOver()

	var found bool
	for _, d := range conn.snapshot() {
		h, payload, err := protocol.Decode(d.data)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if h.MsgType != protocol.MsgGameOver {
			continue
		}
		gameOver, err := protocol.DecodeGameOver(payload)
		if err != nil {
			t.Fatalf("unexpected GameOver decode error: %v", err)
		}
		if gameOver.WinnerID != 1 {
			t.Fatalf("expected tie-break winner to be player 1, got %d", gameOver.WinnerID)
		}
		found = true
	}
	if !found {
		t.Fatalf("expected at least one GAME_OVER datagram")
	}
	if !s.gameOverPlayed {
		t.Fatalf("expected gameOverPlayed to be set")
	}
}

func TestFinalizeGameOverOnlyRunsOnce(t *testing.T) {
	now := time.Unix(1000, 0)
	s, conn := newTestServer(func() time.Time { return now })
	s.handleJoin(testAddr("1.1.1.1:1"))
	for i := 0; i < 16; i++ {
		s.grid.TryClaim(i, 1)
	}

	s.finalizeGameOver()
	first := len(conn.snapshot())
	s.finalizeGameOver()
	second := len(conn.snapshot())

	if first != second {
		t.Fatalf("expected finalizeGameOver to be a no-op after the first call, got %d then %d datagrams", first, second)
	}
}

func TestHandleGameOverAckClearsPending(t *testing.T) {
	now := time.Unix(1000, 0)
	s, _ := newTestServer(func() time.Time { return now })
	s.handleJoin(testAddr("1.1.1.1:1"))
	for i := 0; i < 16; i++ {
		s.grid.TryClaim(i, 1)
	}
	s.finalizeGameOver()

	player, _ := s.roster.ByAddr(testAddr("1.1.1.1:1"))
	if !s.gameOverPending.Pending(uint64(player.ID)) {
		t.Fatalf("expected a pending game-over entry for player %d", player.ID)
	}
	s.handleGameOverAck(protocol.EncodeGameOverAck(protocol.GameOverAck{PlayerID: player.ID}))
	if s.gameOverPending.Pending(uint64(player.ID)) {
		t.Fatalf("expected game-over ack to clear the pending entry")
	}
}
