// Package client implements the GridClash client half of the protocol: the
// JOIN handshake, the steady-state receive loop with snapshot dedup and
// latency/jitter accounting, the EVENT submission/retransmission worker,
// and the heartbeat emitter.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"gridclash/internal/config"
	"gridclash/internal/csvlog"
	"gridclash/internal/gridstate"
	"gridclash/internal/logging"
	"gridclash/internal/networking"
	"gridclash/internal/protocol"
	"gridclash/internal/reliability"
)

// SnapshotEntry is one decoded, accepted snapshot held in the client's
// bounded render queue: (snapshot_id, server_ts, seq_num, decoded grid,
// receive time). The renderer polls for the newest entry at its own frame
// interval; older entries are retained only until the queue overflows.
type SnapshotEntry struct {
	SnapshotID        uint32
	ServerTimestampMs uint64
	SeqNum            uint32
	Current           []byte
	RecvAt            time.Time
}

// Renderer receives authoritative state as the client observes it. A
// headless implementation can simply record the latest values for tests or
// a text UI.
type Renderer interface {
	ApplyColor(playerID uint16, color gridstate.Color)
	ApplySnapshot(current, previous []byte)
	GameOver(result protocol.GameOver)
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithClock overrides the client's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithClientMetricsWriter attaches the client_metrics.csv sink.
func WithClientMetricsWriter(w *csvlog.ClientMetricsWriter) Option {
	return func(c *Client) { c.clientMetrics = w }
}

// WithClientPositionsWriter attaches the client_positions.csv sink.
func WithClientPositionsWriter(w *csvlog.ClientPositionsWriter) Option {
	return func(c *Client) { c.clientPositions = w }
}

// Client is one GridClash player's connection to the authoritative server.
type Client struct {
	cfg        *config.Config
	logger     *logging.Logger
	now        func() time.Time
	renderer   Renderer
	serverAddr string

	conn net.PacketConn
	addr net.Addr

	playerID uint16
	gridSize int

	eventPending *reliability.Tracker
	bandwidth    *networking.BandwidthRegulator

	clientMetrics   *csvlog.ClientMetricsWriter
	clientPositions *csvlog.ClientPositionsWriter

	mu               sync.Mutex
	seqCounter       uint16
	lastSeenSnapshot uint32
	haveSeenSnapshot bool
	snapshotQueue    []SnapshotEntry
	lastRecvAt       time.Time
	snapshotsSeen    uint64
	gameOverResult   *protocol.GameOver

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Client targeting serverAddr, rendering through renderer.
func New(cfg *config.Config, serverAddr string, renderer Renderer, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.L()
	}
	c := &Client{
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		renderer:   renderer,
		serverAddr: serverAddr,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.eventPending = reliability.NewTracker(cfg.EventTimeout,
		reliability.WithClock(func() time.Time { return c.now() }),
		reliability.WithExhaustedHook(func(key uint64) {
			c.logger.Warn("event delivery exhausted retries", logging.Int64("seq", int64(key)))
		}),
	)
	c.bandwidth = networking.NewBandwidthRegulator(func() time.Time { return c.now() })
	return c
}

// PlayerID returns the id assigned by JOIN_ACK (valid only after Join).
func (c *Client) PlayerID() uint16 { return c.playerID }

// SnapshotQueue returns a copy of the bounded (size CLIENT_SNAPSHOT_QUEUE_MAX)
// render queue, oldest first, for a consumer that wants to poll the newest
// available decoded grid at its own frame interval rather than via Renderer.
func (c *Client) SnapshotQueue() []SnapshotEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SnapshotEntry, len(c.snapshotQueue))
	copy(out, c.snapshotQueue)
	return out
}

// Join performs the JOIN handshake: a 1-second-timeout, indefinite-retry
// send of JOIN until JOIN_ACK arrives, followed by three READY datagrams
// spaced 100ms apart.
func (c *Client) Join(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return fmt.Errorf("client: open local socket: %w", err)
	}
	c.conn = conn

	addr, err := net.ResolveUDPAddr("udp", c.serverAddr)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("client: resolve server address: %w", err)
	}
	c.addr = addr

	joinDatagram := protocol.Encode(protocol.Header{MsgType: protocol.MsgJoin, TimestampMs: uint64(c.now().UnixMilli())}, nil)
	buf := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := c.conn.WriteTo(joinDatagram, c.addr); err != nil {
			return fmt.Errorf("client: send join: %w", err)
		}
		_ = c.conn.SetReadDeadline(c.now().Add(time.Second))
		n, _, err := c.conn.ReadFrom(buf)
		if err != nil {
			continue
		}
		h, payload, err := protocol.Decode(buf[:n])
		if err != nil || h.MsgType != protocol.MsgJoinAck {
			continue
		}
		ack, err := protocol.DecodeJoinAck(payload)
		if err != nil {
			continue
		}
		c.playerID = ack.PlayerID
		c.gridSize = int(ack.GridSize)
		c.renderer.ApplyColor(ack.PlayerID, gridstate.Color{R: ack.R, G: ack.G, B: ack.B})
		break
	}

	ready := protocol.Encode(protocol.Header{MsgType: protocol.MsgReady, TimestampMs: uint64(c.now().UnixMilli())}, nil)
	for i := 0; i < 3; i++ {
		_, _ = c.conn.WriteTo(ready, c.addr)
		if i < 2 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

// Start launches the receive loop, the EVENT retransmission worker, and the
// heartbeat emitter. It blocks until ctx is cancelled.
func (c *Client) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(3)
	go c.receiveLoop(runCtx)
	go c.retransmitLoop(runCtx)
	go c.heartbeatLoop(runCtx)

	<-runCtx.Done()
	c.wg.Wait()
}

// Stop cancels every background worker.
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// SubmitEvent queues a cell-claim EVENT for reliable delivery (300ms
// timeout, 6-attempt cap).
func (c *Client) SubmitEvent(cellIndex uint16) {
	c.mu.Lock()
	c.seqCounter++
	seq := c.seqCounter
	c.mu.Unlock()

	payload := protocol.EncodeEvent(protocol.Event{
		PlayerID:        c.playerID,
		ClientMsgSeq:    seq,
		EventType:       protocol.EventClick,
		CellIndex:       cellIndex,
		ClientTimestamp: uint64(c.now().UnixMilli()),
	})
	send := func(data []byte) {
		datagram := protocol.Encode(protocol.Header{MsgType: protocol.MsgEvent, TimestampMs: uint64(c.now().UnixMilli())}, data)
		if _, err := c.conn.WriteTo(datagram, c.addr); err != nil {
			c.logger.Warn("event send failed", logging.Error(err))
			return
		}
		c.bandwidth.RecordSent(c.playerID, len(datagram))
	}
	c.eventPending.Track(uint64(seq), payload, send, c.cfg.EventMaxRetries)
	send(payload)
}

func (c *Client) retransmitLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.RetransmitGranularity)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.eventPending.Tick()
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			datagram := protocol.Encode(protocol.Header{MsgType: protocol.MsgHeartbeat, TimestampMs: uint64(c.now().UnixMilli())}, nil)
			_, _ = c.conn.WriteTo(datagram, c.addr)
		}
	}
}
