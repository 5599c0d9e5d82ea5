package server

import (
	"context"
	"hash/fnv"
	"net"
	"time"

	"gridclash/internal/gridstate"
	"gridclash/internal/input"
	"gridclash/internal/logging"
	"gridclash/internal/protocol"
)

// receiveLoop reads datagrams off the socket and dispatches each by
// msg_type until ctx is cancelled.
func (s *Server) receiveLoop(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = s.conn.SetReadDeadline(s.now().Add(200 * time.Millisecond))
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		s.handleDatagram(addr, append([]byte(nil), buf[:n]...))
	}
}

// handleDatagram decodes and dispatches one inbound datagram. Malformed
// datagrams and messages from endpoints that have never JOINed (other than
// JOIN itself) are dropped silently, per the protocol's error handling
// design.
func (s *Server) handleDatagram(addr net.Addr, data []byte) {
	h, payload, err := protocol.Decode(data)
	if err != nil {
		s.logger.Debug("dropping malformed datagram", logging.String("peer", addr.String()), logging.Error(err))
		return
	}

	if h.MsgType == protocol.MsgJoin {
		s.handleJoin(addr)
		return
	}

	player, known := s.roster.ByAddr(addr)
	if !known {
		s.logger.Debug("dropping message from unjoined peer",
			logging.String("peer", addr.String()), logging.String("msg_type", h.MsgType.String()))
		return
	}
	s.bandwidth.RecordReceived(player.ID, len(data))

	switch h.MsgType {
	case protocol.MsgReady:
		s.handleReady(player)
	case protocol.MsgEvent:
		s.handleEvent(player, payload)
	case protocol.MsgHeartbeat:
		s.roster.Touch(addr, s.now())
	case protocol.MsgPlayerColorAck:
		s.handlePlayerColorAck(addr, payload)
	case protocol.MsgGameOverAck:
		s.handleGameOverAck(payload)
	default:
		s.logger.Debug("dropping unexpected message", logging.String("msg_type", h.MsgType.String()))
	}
}

func (s *Server) handleJoin(addr net.Addr) {
	player, fresh, err := s.roster.JoinOrLookup(addr, s.now())
	if err != nil {
		s.logger.Warn("rejecting join beyond player id space", logging.Error(err))
		return
	}

	if fresh && s.match != nil {
		if _, err := s.match.Join(player.ID); err != nil {
			s.logger.Warn("rejecting join beyond match capacity", logging.String("peer", addr.String()), logging.Error(err))
			s.roster.Evict(player.ID)
			return
		}
	}

	ack := protocol.EncodeJoinAck(protocol.JoinAck{
		PlayerID: player.ID,
		GridSize: uint8(s.grid.Size()),
		TickRate: uint8(s.cfg.TickRate),
		R:        player.Color.R,
		G:        player.Color.G,
		B:        player.Color.B,
	})
	s.send(addr, protocol.MsgJoinAck, 0, 0, ack)

	if !fresh {
		return
	}
	// A brand-new player learns every already-connected player's color, and
	// every already-connected player learns the newcomer's color, each
	// delivered over the stop-and-redrive discipline.
	for _, existing := range s.roster.AllSnapshot() {
		if existing.ID == player.ID {
			continue
		}
		s.trackColor(addr, existing)
		s.trackColor(existing.Addr, *player)
	}
}

func (s *Server) handleReady(player *gridstate.Player) {
	s.roster.MarkReady(player.ID)
	for _, known := range s.roster.AllSnapshot() {
		s.trackColor(player.Addr, known)
	}
}

// trackColor reliably delivers subject's color to dest, using the
// stop-and-redrive discipline (indefinite retransmission until ACKed).
func (s *Server) trackColor(dest net.Addr, subject gridstate.Player) {
	payload := protocol.EncodePlayerColor(protocol.PlayerColor{
		PlayerID: subject.ID, R: subject.Color.R, G: subject.Color.G, B: subject.Color.B,
	})
	key := colorKey(dest, subject.ID)
	s.colorPending.Track(key, payload, func(data []byte) {
		s.send(dest, protocol.MsgPlayerColor, 0, 0, data)
	}, 0)
	s.send(dest, protocol.MsgPlayerColor, 0, 0, payload)
}

func (s *Server) handlePlayerColorAck(addr net.Addr, payload []byte) {
	ack, err := protocol.DecodePlayerColorAck(payload)
	if err != nil {
		return
	}
	s.colorPending.Ack(colorKey(addr, ack.PlayerID))
}

func (s *Server) handleEvent(player *gridstate.Player, payload []byte) {
	ev, err := protocol.DecodeEvent(payload)
	if err != nil {
		return
	}

	decision := s.gate.Evaluate(input.Frame{
		PlayerID:   player.ID,
		SequenceID: uint64(ev.ClientMsgSeq),
		SentAt:     time.UnixMilli(int64(ev.ClientTimestamp)),
	})

	// Every EVENT is ACKed regardless of outcome (accepted, stale, or a lost
	// cell-ownership race) so the client's retransmission worker stands
	// down; only the grid mutation itself is conditional.
	defer func() {
		ack := protocol.EncodeEventAck(protocol.EventAck{Seq: ev.ClientMsgSeq})
		s.send(player.Addr, protocol.MsgEventAck, 0, 0, ack)
	}()

	if !decision.Accepted {
		return
	}

	claimed := s.grid.TryClaim(int(ev.CellIndex), byte(player.ID))
	if claimed {
		tick := uint64(s.currentSnapshotID())
		ts := s.now().UnixMilli()
		if s.replay != nil {
			_ = s.replay.AppendEvent(tick, ts, "claim", payload)
		}
		if s.recorder != nil {
			s.recorder.RecordEvent(tick, ts, payload)
		}
	}
	if s.grid.Full() {
		s.finalizeGameOver()
	}
}

func (s *Server) heartbeatMonitorLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().Add(-s.cfg.HeartbeatTimeout)
			for _, id := range s.roster.StaleBefore(cutoff) {
				s.logger.Info("evicting stale player", logging.Int("player_id", int(id)))
				s.roster.Evict(id)
				s.gate.Forget(id)
				s.bandwidth.Forget(id)
				if s.match != nil {
					s.match.Leave(id)
				}
			}
		}
	}
}

func (s *Server) retransmitLoop(ctx context.Context, tracker interface{ Tick() }, granularity time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(granularity)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracker.Tick()
		}
	}
}

func colorKey(addr net.Addr, subjectID uint16) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(addr.String()))
	_, _ = h.Write([]byte{byte(subjectID >> 8), byte(subjectID)})
	return h.Sum64()
}
