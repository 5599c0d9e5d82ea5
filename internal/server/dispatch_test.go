package server

import (
	"testing"
	"time"

	"gridclash/internal/protocol"
)

func TestHandleJoinAllocatesAndAcks(t *testing.T) {
	now := time.Unix(1000, 0)
	s, conn := newTestServer(func() time.Time { return now })

	s.handleJoin(testAddr("1.1.1.1:1"))

	sent := conn.snapshot()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one JOIN_ACK, got %d", len(sent))
	}
	h, payload, err := protocol.Decode(sent[0].data)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if h.MsgType != protocol.MsgJoinAck {
		t.Fatalf("expected JOIN_ACK, got %s", h.MsgType)
	}
	ack, err := protocol.DecodeJoinAck(payload)
	if err != nil {
		t.Fatalf("unexpected JoinAck decode error: %v", err)
	}
	if ack.PlayerID != 1 {
		t.Fatalf("expected first player id 1, got %d", ack.PlayerID)
	}
}

func TestHandleJoinDistributesColorsBetweenPlayers(t *testing.T) {
	now := time.Unix(1000, 0)
	s, conn := newTestServer(func() time.Time { return now })

	s.handleJoin(testAddr("1.1.1.1:1"))
	s.handleJoin(testAddr("2.2.2.2:2"))

	var colorMessages int
	for _, d := range conn.snapshot() {
		h, _, err := protocol.Decode(d.data)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if h.MsgType == protocol.MsgPlayerColor {
			colorMessages++
		}
	}
	// The second JOIN should trigger two PLAYER_COLOR deliveries: the
	// newcomer learns player 1's color, and player 1 learns the newcomer's.
	if colorMessages != 2 {
		t.Fatalf("expected 2 PLAYER_COLOR deliveries, got %d", colorMessages)
	}
	if s.colorPending.Len() != 2 {
		t.Fatalf("expected 2 pending color acks, got %d", s.colorPending.Len())
	}
}

func TestHandlePlayerColorAckClearsPending(t *testing.T) {
	now := time.Unix(1000, 0)
	s, _ := newTestServer(func() time.Time { return now })

	s.handleJoin(testAddr("1.1.1.1:1"))
	s.handleJoin(testAddr("2.2.2.2:2"))
	if s.colorPending.Len() == 0 {
		t.Fatalf("expected pending color entries after two joins")
	}

	ackPayload := protocol.EncodePlayerColorAck(protocol.PlayerColorAck{PlayerID: 1})
	s.handlePlayerColorAck(testAddr("2.2.2.2:2"), ackPayload)

	if s.colorPending.Pending(colorKey(testAddr("2.2.2.2:2"), 1)) {
		t.Fatalf("expected color ack to clear the pending entry")
	}
}

func TestHandleEventClaimsCellAndAlwaysAcks(t *testing.T) {
	now := time.Unix(1000, 0)
	s, conn := newTestServer(func() time.Time { return now })
	s.handleJoin(testAddr("1.1.1.1:1"))
	player, _ := s.roster.ByAddr(testAddr("1.1.1.1:1"))

	payload := protocol.EncodeEvent(protocol.Event{
		PlayerID: player.ID, ClientMsgSeq: 1, EventType: protocol.EventClick,
		CellIndex: 5, ClientTimestamp: uint64(now.UnixMilli()),
	})
	s.handleEvent(player, payload)

	grid := s.grid.Snapshot()
	if grid[5] != byte(player.ID) {
		t.Fatalf("expected cell 5 claimed by player %d, got %d", player.ID, grid[5])
	}

	var sawAck bool
	for _, d := range conn.snapshot() {
		h, ackPayload, err := protocol.Decode(d.data)
		if err != nil {
			t.Fatalf("unexpected decode error: %v", err)
		}
		if h.MsgType == protocol.MsgEventAck {
			ack, err := protocol.DecodeEventAck(ackPayload)
			if err != nil {
				t.Fatalf("unexpected ack decode error: %v", err)
			}
			if ack.Seq != 1 {
				t.Fatalf("expected ack seq 1, got %d", ack.Seq)
			}
			sawAck = true
		}
	}
	if !sawAck {
		t.Fatalf("expected an EVENT_ACK to be sent")
	}
}

func TestHandleEventCollisionStillAcks(t *testing.T) {
	now := time.Unix(1000, 0)
	s, conn := newTestServer(func() time.Time { return now })
	s.handleJoin(testAddr("1.1.1.1:1"))
	s.handleJoin(testAddr("2.2.2.2:2"))
	p1, _ := s.roster.ByAddr(testAddr("1.1.1.1:1"))
	p2, _ := s.roster.ByAddr(testAddr("2.2.2.2:2"))

	s.handleEvent(p1, protocol.EncodeEvent(protocol.Event{
		PlayerID: p1.ID, ClientMsgSeq: 1, CellIndex: 0, ClientTimestamp: uint64(now.UnixMilli()),
	}))
	before := len(conn.snapshot())
	s.handleEvent(p2, protocol.EncodeEvent(protocol.Event{
		PlayerID: p2.ID, ClientMsgSeq: 1, CellIndex: 0, ClientTimestamp: uint64(now.UnixMilli()),
	}))
	after := conn.snapshot()

	if len(after) != before+1 {
		t.Fatalf("expected exactly one additional datagram (the ACK) after the losing claim")
	}
	grid := s.grid.Snapshot()
	if grid[0] != byte(p1.ID) {
		t.Fatalf("expected the first claimant to keep the cell, got owner %d", grid[0])
	}
}

func TestHeartbeatCutoffFlagsStalePlayers(t *testing.T) {
	now := time.Unix(1000, 0)
	s, _ := newTestServer(func() time.Time { return now })
	s.handleJoin(testAddr("1.1.1.1:1"))
	player, _ := s.roster.ByAddr(testAddr("1.1.1.1:1"))

	cutoff := now.Add(s.cfg.HeartbeatTimeout + time.Second)
	stale := s.roster.StaleBefore(cutoff)
	if len(stale) != 1 || stale[0] != player.ID {
		t.Fatalf("expected player %d to be stale, got %+v", player.ID, stale)
	}
}
