package csvlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriterWritesHeaderOnceAndAppendsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.csv")

	w, err := Open(path, []string{"a", "b"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.WriteRow([]string{"1", "2"}); err != nil {
		t.Fatalf("write row: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w2, err := Open(path, []string{"a", "b"})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := w2.WriteRow([]string{"3", "4"}); err != nil {
		t.Fatalf("write row after reopen: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "a,b" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}

func TestWriteRowRejectsMismatchedArity(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "sample.csv"), []string{"a", "b"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if err := w.WriteRow([]string{"only-one"}); err == nil {
		t.Fatalf("expected an error for a row with the wrong field count")
	}
}

func TestServerPositionsWriterEmitsCellColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server_positions.csv")
	w, err := OpenServerPositions(path, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.WriteSnapshot(1, 1000, []byte{0, 1, 2, 0}); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	w.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "snapshot_id,timestamp_ms,cell_0,cell_1,cell_2,cell_3" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "1,1000,0,1,2,0" {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestClientMetricsWriterFormatsFloats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_metrics.csv")
	w, err := OpenClientMetrics(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	recvTime := time.Unix(1700000000, 0).UTC()
	if err := w.WriteSample(3, 42, 7, 999, recvTime, 12.3456, 0.5, 4.2); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	w.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := "3,42,7,999," + recvTime.Format(time.RFC3339Nano) + ",12.35,0.50,4.20"
	if lines[1] != want {
		t.Fatalf("unexpected row: got %q want %q", lines[1], want)
	}
}
