package gridstate

import (
	"net"
	"testing"
	"time"
)

func testPalette() []Color {
	return []Color{
		{R: 220, G: 20, B: 60},
		{R: 30, G: 144, B: 255},
		{R: 50, G: 205, B: 50},
	}
}

func addr(s string) net.Addr {
	a, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestRosterJoinAllocatesIncrementingIDs(t *testing.T) {
	r := NewRoster(testPalette())
	now := time.Unix(100, 0)

	p1, fresh, err := r.JoinOrLookup(addr("127.0.0.1:1001"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fresh || p1.ID != 1 {
		t.Fatalf("expected fresh player with id 1, got fresh=%v id=%d", fresh, p1.ID)
	}

	p2, fresh, err := r.JoinOrLookup(addr("127.0.0.1:1002"), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fresh || p2.ID != 2 {
		t.Fatalf("expected fresh player with id 2, got fresh=%v id=%d", fresh, p2.ID)
	}
}

func TestRosterJoinIsIdempotentForKnownEndpoint(t *testing.T) {
	r := NewRoster(testPalette())
	first, _, _ := r.JoinOrLookup(addr("127.0.0.1:2001"), time.Unix(0, 0))

	later := time.Unix(5, 0)
	again, fresh, err := r.JoinOrLookup(addr("127.0.0.1:2001"), later)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fresh {
		t.Fatalf("expected re-JOIN from known endpoint to not be fresh")
	}
	if again.ID != first.ID {
		t.Fatalf("expected same player id across re-JOIN, got %d vs %d", again.ID, first.ID)
	}
	if !again.LastHeartbeat.Equal(later) {
		t.Fatalf("expected re-JOIN to refresh last heartbeat")
	}
}

func TestRosterColorAssignmentCyclesPalette(t *testing.T) {
	palette := testPalette()
	r := NewRoster(palette)
	now := time.Unix(0, 0)

	p1, _, _ := r.JoinOrLookup(addr("127.0.0.1:3001"), now)
	p2, _, _ := r.JoinOrLookup(addr("127.0.0.1:3002"), now)
	p3, _, _ := r.JoinOrLookup(addr("127.0.0.1:3003"), now)
	p4, _, _ := r.JoinOrLookup(addr("127.0.0.1:3004"), now)

	if p1.Color != palette[1%len(palette)] {
		t.Fatalf("unexpected color for player 1: %+v", p1.Color)
	}
	if p4.Color != p1.Color {
		t.Fatalf("expected palette to cycle: player 1 color %+v, player 4 color %+v", p1.Color, p4.Color)
	}
	_ = p2
	_ = p3
}

func TestRosterMarkReadyAndSnapshots(t *testing.T) {
	r := NewRoster(testPalette())
	now := time.Unix(0, 0)
	p1, _, _ := r.JoinOrLookup(addr("127.0.0.1:4001"), now)
	r.JoinOrLookup(addr("127.0.0.1:4002"), now)

	if len(r.ReadySnapshot()) != 0 {
		t.Fatalf("expected no ready players before MarkReady")
	}
	r.MarkReady(p1.ID)

	ready := r.ReadySnapshot()
	if len(ready) != 1 || ready[0].ID != p1.ID {
		t.Fatalf("unexpected ready snapshot: %+v", ready)
	}
	if len(r.AllSnapshot()) != 2 {
		t.Fatalf("expected two known players in AllSnapshot")
	}
}

func TestRosterEvict(t *testing.T) {
	r := NewRoster(testPalette())
	now := time.Unix(0, 0)
	p1, _, _ := r.JoinOrLookup(addr("127.0.0.1:5001"), now)

	r.Evict(p1.ID)

	if _, ok := r.ByID(p1.ID); ok {
		t.Fatalf("expected player to be gone from ByID after eviction")
	}
	if _, ok := r.ByAddr(addr("127.0.0.1:5001")); ok {
		t.Fatalf("expected player to be gone from ByAddr after eviction")
	}
}

func TestRosterStaleBefore(t *testing.T) {
	r := NewRoster(testPalette())
	base := time.Unix(1000, 0)
	stale, _, _ := r.JoinOrLookup(addr("127.0.0.1:6001"), base)
	fresh, _, _ := r.JoinOrLookup(addr("127.0.0.1:6002"), base.Add(10*time.Second))

	cutoff := base.Add(3 * time.Second)
	ids := r.StaleBefore(cutoff)
	if len(ids) != 1 || ids[0] != stale.ID {
		t.Fatalf("expected only the stale player, got %+v", ids)
	}
	_ = fresh
}
