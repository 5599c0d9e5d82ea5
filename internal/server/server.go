// Package server implements the GridClash authoritative server: the UDP
// receive loop, the 20 Hz snapshot broadcaster, the color/game-over
// retransmit workers, and the heartbeat monitor, wired around
// internal/gridstate, internal/reliability, internal/csvlog and
// internal/input.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gridclash/internal/config"
	"gridclash/internal/csvlog"
	"gridclash/internal/gridstate"
	"gridclash/internal/input"
	"gridclash/internal/logging"
	"gridclash/internal/match"
	"gridclash/internal/networking"
	"gridclash/internal/protocol"
	"gridclash/internal/reliability"
	"gridclash/internal/replay"
	"gridclash/internal/simulation"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

// Option configures a Server at construction time.
type Option func(*Server)

// WithClock overrides the server's time source.
func WithClock(clock Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithMatchSession attaches a match session used to enforce admin-configured
// capacity limits and expose active-player bookkeeping over HTTP.
func WithMatchSession(session *match.Session) Option {
	return func(s *Server) { s.match = session }
}

// WithReplayWriter attaches an optional session replay bundle writer.
func WithReplayWriter(w *replay.Writer) Option {
	return func(s *Server) { s.replay = w }
}

// WithReplayRecorder attaches an optional buffered recorder backing the
// admin-triggered /replay/dump endpoint. Unlike the continuous Writer, the
// recorder accumulates frames in memory until DumpReplay rolls them to a
// single gzip-JSON artefact.
func WithReplayRecorder(r *replay.Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithServerMetricsWriter attaches the server_metrics.csv sink.
func WithServerMetricsWriter(w *csvlog.ServerMetricsWriter) Option {
	return func(s *Server) { s.serverMetrics = w }
}

// WithServerPositionsWriter attaches the server_positions.csv sink.
func WithServerPositionsWriter(w *csvlog.ServerPositionsWriter) Option {
	return func(s *Server) { s.serverPositions = w }
}

// Server is the authoritative GridClash game server.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger
	now    Clock

	grid   *gridstate.Grid
	roster *gridstate.Roster
	gate   *input.Gate
	tick   *simulation.TickMonitor
	cpu    *simulation.CPUSampler

	colorPending    *reliability.Tracker
	gameOverPending *reliability.Tracker

	bandwidth *networking.BandwidthRegulator
	match     *match.Session
	replay    *replay.Writer
	recorder  *replay.Recorder

	serverMetrics   *csvlog.ServerMetricsWriter
	serverPositions *csvlog.ServerPositionsWriter

	conn net.PacketConn

	mu               sync.Mutex
	previousSnapshot []byte
	snapshotCounter  uint32
	gameOverPlayed   bool

	broadcasts int64
	startedAt  time.Time
	startErr   error

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Server ready to Start. The caller still must bind a
// socket and invoke Start.
func New(cfg *config.Config, logger *logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.L()
	}
	gate := input.NewGate(input.Config{
		MaxAge:      cfg.EventTimeout * time.Duration(cfg.EventMaxRetries),
		MinInterval: 0,
	}, logger)

	palette := make([]gridstate.Color, len(cfg.Palette))
	for i, c := range cfg.Palette {
		palette[i] = gridstate.Color{R: c.R, G: c.G, B: c.B}
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		grid:   gridstate.NewGrid(cfg.GridSize),
		roster: gridstate.NewRoster(palette),
		gate:   gate,
		tick:   simulation.NewTickMonitor(),
		cpu:    simulation.NewCPUSampler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.colorPending = reliability.NewTracker(cfg.ColorTimeout, reliability.WithClock(func() time.Time { return s.now() }))
	s.gameOverPending = reliability.NewTracker(cfg.GameOverTimeout, reliability.WithClock(func() time.Time { return s.now() }))
	s.bandwidth = networking.NewBandwidthRegulator(func() time.Time { return s.now() })
	return s
}

// Start binds the UDP socket and launches every background worker. It
// blocks until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.cfg.Address)
	if err != nil {
		s.mu.Lock()
		s.startErr = err
		s.mu.Unlock()
		return fmt.Errorf("server: bind %s: %w", s.cfg.Address, err)
	}
	s.conn = conn
	s.startedAt = s.now()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(5)
	go s.receiveLoop(runCtx)
	go s.broadcastLoop(runCtx)
	go s.retransmitLoop(runCtx, s.colorPending, s.cfg.RetransmitGranularity)
	go s.retransmitLoop(runCtx, s.gameOverPending, s.cfg.RetransmitGranularity)
	go s.heartbeatMonitorLoop(runCtx)

	<-runCtx.Done()
	_ = conn.Close()
	s.wg.Wait()
	return nil
}

// Stop cancels every background worker and closes the socket.
func (s *Server) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// SnapshotClientCounts implements httpapi.ReadinessProvider.
func (s *Server) SnapshotClientCounts() (clients, pending int) {
	ready := s.roster.ReadySnapshot()
	all := s.roster.AllSnapshot()
	return len(ready), len(all) - len(ready)
}

// StartupError implements httpapi.ReadinessProvider.
func (s *Server) StartupError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}

// Uptime implements httpapi.ReadinessProvider.
func (s *Server) Uptime() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return s.now().Sub(s.startedAt)
}

// Stats implements httpapi.StatsFunc's shape: (snapshots broadcast, ready players).
func (s *Server) Stats() (int, int) {
	ready, _ := s.SnapshotClientCounts()
	return int(atomic.LoadInt64(&s.broadcasts)), ready
}

// Bandwidth exposes the regulator for HTTP metrics wiring.
func (s *Server) Bandwidth() *networking.BandwidthRegulator { return s.bandwidth }

// DumpReplay implements httpapi.ReplayDumper by rolling the buffered
// recorder's frames to a single gzip-JSON artefact, independent of the
// continuously-streaming replay bundle writer.
func (s *Server) DumpReplay(ctx context.Context) (string, error) {
	if s.recorder == nil {
		return "", fmt.Errorf("server: replay recorder not configured")
	}
	matchID := "match"
	if s.match != nil {
		matchID = s.match.Snapshot().MatchID
	}
	return s.recorder.Roll(matchID)
}

// ReplayStats implements httpapi.Options.ReplayStats.
func (s *Server) ReplayStats() replay.Stats {
	if s.recorder == nil {
		return replay.Stats{}
	}
	return s.recorder.Snapshot()
}

// TickStats exposes broadcast tick duration statistics for diagnostics.
func (s *Server) TickStats() simulation.TickMetricsSnapshot { return s.tick.Snapshot() }

func (s *Server) send(addr net.Addr, msgType protocol.MessageType, snapshotID, seqNum uint32, payload []byte) {
	datagram := protocol.Encode(protocol.Header{
		MsgType:     msgType,
		SnapshotID:  snapshotID,
		SeqNum:      seqNum,
		TimestampMs: uint64(s.now().UnixMilli()),
	}, payload)
	if _, err := s.conn.WriteTo(datagram, addr); err != nil {
		s.logger.Warn("send failed", logging.String("msg_type", msgType.String()), logging.Error(err))
		return
	}
	if pid, ok := s.roster.ByAddr(addr); ok {
		s.bandwidth.RecordSent(pid.ID, len(datagram))
	}
}
