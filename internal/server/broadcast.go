package server

import (
	"context"
	"sync/atomic"
	"time"

	"gridclash/internal/protocol"
	"gridclash/internal/simulation"
)

// broadcastLoop drives the 20 Hz (TickRate) snapshot broadcast using the
// fixed-timestep Loop, sampling bandwidth and position CSVs once per
// second of ticks.
func (s *Server) broadcastLoop(ctx context.Context) {
	defer s.wg.Done()
	loop := simulation.NewLoop(float64(s.cfg.TickRate), func(step time.Duration) {
		start := s.now()
		s.broadcastOnce()
		elapsed := s.now().Sub(start)
		s.tick.Observe(elapsed)
		s.cpu.Observe(elapsed, start)
	})
	loop.Start(ctx)
	<-ctx.Done()
	loop.Stop()
}

func (s *Server) broadcastOnce() {
	current := s.grid.Snapshot()

	s.mu.Lock()
	previous := s.previousSnapshot
	if previous == nil || len(previous) != len(current) {
		previous = make([]byte, len(current))
	}
	s.previousSnapshot = current
	s.snapshotCounter++
	snapshotID := s.snapshotCounter
	s.mu.Unlock()

	payload := protocol.EncodeSnapshot(current, previous)
	for _, player := range s.roster.ReadySnapshot() {
		s.send(player.Addr, protocol.MsgSnapshot, snapshotID, 0, payload)
	}
	atomic.AddInt64(&s.broadcasts, 1)

	now := s.now()
	if s.replay != nil {
		_ = s.replay.AppendFrame(uint64(snapshotID), now.UnixMilli(), payload)
	}
	if s.recorder != nil {
		s.recorder.RecordWorldFrame(uint64(snapshotID), now.UnixMilli(), payload)
	}
	if s.serverPositions != nil {
		_ = s.serverPositions.WriteSnapshot(snapshotID, now.UnixMilli(), current)
	}

	if s.cfg.TickRate > 0 && int(snapshotID)%s.cfg.TickRate == 0 && s.serverMetrics != nil {
		cpuPercent := s.cpu.Sample(now)
		for _, usage := range s.bandwidth.FlushWindow() {
			_ = s.serverMetrics.WriteSample(now, cpuPercent, usage.PlayerID, usage.SentKbps, usage.RecvKbps)
		}
	}
}

// currentSnapshotID reports the most recently broadcast snapshot id, used
// to tag replay events with the tick during which they occurred.
func (s *Server) currentSnapshotID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotCounter
}
