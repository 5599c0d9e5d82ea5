package client

import (
	"context"
	"math"
	"net"
	"time"

	"gridclash/internal/gridstate"
	"gridclash/internal/logging"
	"gridclash/internal/protocol"
)

func colorFrom(c protocol.PlayerColor) gridstate.Color {
	return gridstate.Color{R: c.R, G: c.G, B: c.B}
}

func (c *Client) receiveLoop(ctx context.Context) {
	defer c.wg.Done()
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_ = c.conn.SetReadDeadline(c.now().Add(200 * time.Millisecond))
		n, _, err := c.conn.ReadFrom(buf)
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
		c.bandwidth.RecordReceived(c.playerID, n)
		c.handleDatagram(append([]byte(nil), buf[:n]...))
	}
}

func (c *Client) handleDatagram(data []byte) {
	h, payload, err := protocol.Decode(data)
	if err != nil {
		return
	}
	switch h.MsgType {
	case protocol.MsgSnapshot:
		c.handleSnapshot(h, payload)
	case protocol.MsgPlayerColor:
		c.handlePlayerColor(payload)
	case protocol.MsgEventAck:
		c.handleEventAck(payload)
	case protocol.MsgGameOver:
		c.handleGameOver(payload)
	default:
		c.logger.Debug("dropping unexpected message", logging.String("msg_type", h.MsgType.String()))
	}
}

func (c *Client) handlePlayerColor(payload []byte) {
	color, err := protocol.DecodePlayerColor(payload)
	if err != nil {
		return
	}
	c.renderer.ApplyColor(color.PlayerID, colorFrom(color))
	ack := protocol.EncodePlayerColorAck(protocol.PlayerColorAck{PlayerID: color.PlayerID})
	datagram := protocol.Encode(protocol.Header{MsgType: protocol.MsgPlayerColorAck, TimestampMs: uint64(c.now().UnixMilli())}, ack)
	_, _ = c.conn.WriteTo(datagram, c.addr)
}

func (c *Client) handleEventAck(payload []byte) {
	ack, err := protocol.DecodeEventAck(payload)
	if err != nil {
		return
	}
	c.eventPending.Ack(uint64(ack.Seq))
}

func (c *Client) handleGameOver(payload []byte) {
	result, err := protocol.DecodeGameOver(payload)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.gameOverResult = &result
	c.mu.Unlock()
	c.renderer.GameOver(result)

	ack := protocol.EncodeGameOverAck(protocol.GameOverAck{PlayerID: c.playerID})
	datagram := protocol.Encode(protocol.Header{MsgType: protocol.MsgGameOverAck, TimestampMs: uint64(c.now().UnixMilli())}, ack)
	_, _ = c.conn.WriteTo(datagram, c.addr)
}

// handleSnapshot drops any snapshot_id at or below the monotonic high-water
// mark, decodes and pushes the rest onto the bounded render queue, applies
// the grid to the renderer, and samples latency/jitter/CSV output.
func (c *Client) handleSnapshot(h protocol.Header, payload []byte) {
	now := c.now()

	c.mu.Lock()
	if c.haveSeenSnapshot && h.SnapshotID <= c.lastSeenSnapshot {
		c.mu.Unlock()
		return
	}
	c.lastSeenSnapshot = h.SnapshotID
	c.haveSeenSnapshot = true
	c.mu.Unlock()

	area := c.gridSize * c.gridSize
	current, previous, err := protocol.DecodeSnapshot(payload, area)
	if err != nil {
		return
	}

	latencyMs := float64(now.UnixMilli() - int64(h.TimestampMs))
	if latencyMs < 0 {
		latencyMs = 0
	}

	tickIntervalMs := 1000.0 / float64(c.cfg.TickRate)

	c.mu.Lock()
	var jitterMs float64
	if !c.lastRecvAt.IsZero() {
		jitterMs = math.Abs(float64(now.Sub(c.lastRecvAt).Milliseconds()) - tickIntervalMs)
	}
	c.lastRecvAt = now

	c.snapshotQueue = append(c.snapshotQueue, SnapshotEntry{
		SnapshotID:        h.SnapshotID,
		ServerTimestampMs: h.TimestampMs,
		SeqNum:            h.SeqNum,
		Current:           current,
		RecvAt:            now,
	})
	max := c.cfg.ClientSnapshotQueueMax
	if max > 0 && len(c.snapshotQueue) > max {
		c.snapshotQueue = c.snapshotQueue[len(c.snapshotQueue)-max:]
	}

	c.snapshotsSeen++
	seen := c.snapshotsSeen
	c.mu.Unlock()

	c.renderer.ApplySnapshot(current, previous)

	if c.clientPositions != nil {
		_ = c.clientPositions.WriteSnapshot(c.playerID, int64(h.TimestampMs), current)
	}

	every := c.cfg.ClientMetricsLogEvery
	if c.clientMetrics != nil && every > 0 && seen%uint64(every) == 0 {
		var bandwidthKbps float64
		if usage, ok := c.bandwidth.FlushWindow()[c.playerID]; ok {
			bandwidthKbps = usage.RecvKbps
		}
		_ = c.clientMetrics.WriteSample(c.playerID, h.SnapshotID, h.SeqNum, int64(h.TimestampMs), now, latencyMs, jitterMs, bandwidthKbps)
	}
}
