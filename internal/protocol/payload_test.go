package protocol

import "testing"

func TestJoinAckRoundTrip(t *testing.T) {
	want := JoinAck{PlayerID: 3, GridSize: 20, TickRate: 20, R: 255, G: 0, B: 128}
	got, err := DecodeJoinAck(EncodeJoinAck(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
}

func TestPlayerColorRoundTrip(t *testing.T) {
	want := PlayerColor{PlayerID: 2, R: 0, G: 255, B: 0}
	got, err := DecodePlayerColor(EncodePlayerColor(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
}

func TestPlayerColorAckRoundTrip(t *testing.T) {
	want := PlayerColorAck{PlayerID: 9}
	got, err := DecodePlayerColorAck(EncodePlayerColorAck(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
}

func TestEventRoundTrip(t *testing.T) {
	want := Event{PlayerID: 1, ClientMsgSeq: 400, EventType: EventClick, CellIndex: 399, ClientTimestamp: 1700000001000}
	got, err := DecodeEvent(EncodeEvent(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
}

func TestEventAckRoundTrip(t *testing.T) {
	want := EventAck{Seq: 12}
	got, err := DecodeEventAck(EncodeEventAck(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	const area = 400
	current := make([]byte, area)
	previous := make([]byte, area)
	current[0] = 1
	previous[1] = 2

	payload := EncodeSnapshot(current, previous)
	gotCurrent, gotPrevious, err := DecodeSnapshot(payload, area)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCurrent[0] != 1 || gotPrevious[1] != 2 {
		t.Fatalf("unexpected decoded grids: current=%v previous=%v", gotCurrent[:2], gotPrevious[:2])
	}
}

func TestDecodeSnapshotRejectsWrongLength(t *testing.T) {
	if _, _, err := DecodeSnapshot(make([]byte, 10), 400); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestGameOverRoundTrip(t *testing.T) {
	want := GameOver{
		WinnerID: 2,
		Scores: []PlayerScore{
			{PlayerID: 1, Score: 150},
			{PlayerID: 2, Score: 250},
		},
	}
	got, err := DecodeGameOver(EncodeGameOver(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WinnerID != want.WinnerID || len(got.Scores) != len(want.Scores) {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
	for i := range want.Scores {
		if got.Scores[i] != want.Scores[i] {
			t.Fatalf("score mismatch at %d: got %+v want %+v", i, got.Scores[i], want.Scores[i])
		}
	}
}

func TestDecodeGameOverRejectsMismatchedCount(t *testing.T) {
	buf := EncodeGameOver(GameOver{WinnerID: 1, Scores: []PlayerScore{{PlayerID: 1, Score: 1}}})
	buf[2] = 5 // claim five players without the payload to back it
	if _, err := DecodeGameOver(buf); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestGameOverAckRoundTrip(t *testing.T) {
	want := GameOverAck{PlayerID: 4}
	got, err := DecodeGameOverAck(EncodeGameOverAck(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
	}
}
