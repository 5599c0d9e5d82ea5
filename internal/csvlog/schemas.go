package csvlog

import (
	"strconv"
	"time"
)

var serverMetricsHeader = []string{"timestamp", "cpu_percent", "player_id", "sent_kbps", "recv_kbps"}
var serverPositionsHeaderPrefix = []string{"snapshot_id", "timestamp_ms"}
var clientMetricsHeader = []string{"client_id", "snapshot_id", "seq_num", "server_timestamp", "recv_time", "latency_ms", "jitter_ms", "bandwidth_per_client_kbps"}
var clientPositionsHeaderPrefix = []string{"player_id", "timestamp_ms"}

// ServerMetricsWriter appends one row per player per sampling tick to
// server_metrics.csv.
type ServerMetricsWriter struct{ w *Writer }

// OpenServerMetrics opens server_metrics.csv at path.
func OpenServerMetrics(path string) (*ServerMetricsWriter, error) {
	w, err := Open(path, serverMetricsHeader)
	if err != nil {
		return nil, err
	}
	return &ServerMetricsWriter{w: w}, nil
}

// WriteSample appends one (timestamp, cpu%, player, sent/recv kbps) row.
func (s *ServerMetricsWriter) WriteSample(ts time.Time, cpuPercent float64, playerID uint16, sentKbps, recvKbps float64) error {
	return s.w.WriteRow([]string{
		ts.UTC().Format(time.RFC3339Nano),
		FormatFloat(cpuPercent),
		strconv.Itoa(int(playerID)),
		FormatFloat(sentKbps),
		FormatFloat(recvKbps),
	})
}

// Close closes the underlying file.
func (s *ServerMetricsWriter) Close() error { return s.w.Close() }

// ServerPositionsWriter appends one full-grid row per snapshot tick to
// server_positions.csv.
type ServerPositionsWriter struct {
	w    *Writer
	area int
}

// OpenServerPositions opens server_positions.csv at path for a grid of the
// given area (W*W), writing the cell_0..cell_{area-1} header columns.
func OpenServerPositions(path string, area int) (*ServerPositionsWriter, error) {
	w, err := Open(path, append(append([]string{}, serverPositionsHeaderPrefix...), cellColumns(area)...))
	if err != nil {
		return nil, err
	}
	return &ServerPositionsWriter{w: w, area: area}, nil
}

// WriteSnapshot appends one (snapshot_id, timestamp_ms, cells...) row.
func (s *ServerPositionsWriter) WriteSnapshot(snapshotID uint32, timestampMs int64, cells []byte) error {
	row := append([]string{
		strconv.FormatUint(uint64(snapshotID), 10),
		strconv.FormatInt(timestampMs, 10),
	}, FormatCells(cells)...)
	return s.w.WriteRow(row)
}

// Close closes the underlying file.
func (s *ServerPositionsWriter) Close() error { return s.w.Close() }

// ClientMetricsWriter appends one row every CLIENT_METRICS_LOG_EVERY
// snapshots to client_metrics.csv.
type ClientMetricsWriter struct{ w *Writer }

// OpenClientMetrics opens client_metrics.csv at path.
func OpenClientMetrics(path string) (*ClientMetricsWriter, error) {
	w, err := Open(path, clientMetricsHeader)
	if err != nil {
		return nil, err
	}
	return &ClientMetricsWriter{w: w}, nil
}

// WriteSample appends one client-observed latency/jitter/bandwidth row.
func (c *ClientMetricsWriter) WriteSample(clientID uint16, snapshotID uint32, seqNum uint32, serverTimestampMs int64, recvTime time.Time, latencyMs, jitterMs, bandwidthKbps float64) error {
	return c.w.WriteRow([]string{
		strconv.Itoa(int(clientID)),
		strconv.FormatUint(uint64(snapshotID), 10),
		strconv.FormatUint(uint64(seqNum), 10),
		strconv.FormatInt(serverTimestampMs, 10),
		recvTime.UTC().Format(time.RFC3339Nano),
		FormatFloat(latencyMs),
		FormatFloat(jitterMs),
		FormatFloat(bandwidthKbps),
	})
}

// Close closes the underlying file.
func (c *ClientMetricsWriter) Close() error { return c.w.Close() }

// ClientPositionsWriter appends one full-grid row per rendered snapshot to
// client_positions.csv.
type ClientPositionsWriter struct {
	w *Writer
}

// OpenClientPositions opens client_positions.csv at path for a grid of the
// given area.
func OpenClientPositions(path string, area int) (*ClientPositionsWriter, error) {
	w, err := Open(path, append(append([]string{}, clientPositionsHeaderPrefix...), cellColumns(area)...))
	if err != nil {
		return nil, err
	}
	return &ClientPositionsWriter{w: w}, nil
}

// WriteSnapshot appends one (player_id, timestamp_ms, cells...) row.
func (c *ClientPositionsWriter) WriteSnapshot(playerID uint16, timestampMs int64, cells []byte) error {
	row := append([]string{
		strconv.Itoa(int(playerID)),
		strconv.FormatInt(timestampMs, 10),
	}, FormatCells(cells)...)
	return c.w.WriteRow(row)
}

// Close closes the underlying file.
func (c *ClientPositionsWriter) Close() error { return c.w.Close() }

func cellColumns(area int) []string {
	cols := make([]string, area)
	for i := range cols {
		cols[i] = "cell_" + strconv.Itoa(i)
	}
	return cols
}
