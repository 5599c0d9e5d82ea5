package gridstate

import (
	"errors"
	"net"
	"sync"
	"time"
)

// ErrPlayerLimitReached is returned when a grid byte can no longer address
// a fresh player id (see DESIGN.md's grid cell width note).
var ErrPlayerLimitReached = errors.New("gridstate: player id space exhausted")

// Color is an RGB triple drawn from the configured palette.
type Color struct {
	R, G, B uint8
}

// Player tracks everything the server knows about one connected endpoint.
// EVENT sequence/staleness/rate enforcement lives in internal/input.Gate,
// keyed by the same uint16 player id.
type Player struct {
	ID            uint16
	Addr          net.Addr
	Color         Color
	LastHeartbeat time.Time
	Ready         bool
}

// Roster maps transport endpoints and player ids to Player records, and
// owns next_player_id allocation. All access is mutex-guarded; callers in
// the receive loop, snapshot broadcaster, and retransmit workers share one
// Roster instance.
type Roster struct {
	mu      sync.Mutex
	byAddr  map[string]*Player
	byID    map[uint16]*Player
	nextID  uint16
	palette []Color
}

// NewRoster constructs an empty roster. palette must be non-empty; the
// color assigned to player N is palette[N % len(palette)].
func NewRoster(palette []Color) *Roster {
	return &Roster{
		byAddr:  make(map[string]*Player),
		byID:    make(map[uint16]*Player),
		nextID:  1,
		palette: palette,
	}
}

// JoinOrLookup returns the existing player for addr, or allocates a fresh
// one (I2: re-JOIN from a known endpoint returns the existing id).
func (r *Roster) JoinOrLookup(addr net.Addr, now time.Time) (*Player, bool, error) {
	key := addr.String()
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byAddr[key]; ok {
		p.LastHeartbeat = now
		return p, false, nil
	}
	if int(r.nextID) > 255 {
		return nil, false, ErrPlayerLimitReached
	}
	id := r.nextID
	r.nextID++
	color := r.palette[int(id)%len(r.palette)]
	p := &Player{ID: id, Addr: addr, Color: color, LastHeartbeat: now}
	r.byAddr[key] = p
	r.byID[id] = p
	return p, true, nil
}

// ByAddr looks up a player by transport endpoint.
func (r *Roster) ByAddr(addr net.Addr) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byAddr[addr.String()]
	return p, ok
}

// ByID looks up a player by id.
func (r *Roster) ByID(id uint16) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	return p, ok
}

// MarkReady flags a player eligible for the snapshot broadcast set.
func (r *Roster) MarkReady(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Ready = true
	}
}

// Touch refreshes a player's heartbeat timestamp.
func (r *Roster) Touch(addr net.Addr, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byAddr[addr.String()]; ok {
		p.LastHeartbeat = now
	}
}

// Evict removes a player from the roster (heartbeat timeout).
func (r *Roster) Evict(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if p.Addr != nil {
		delete(r.byAddr, p.Addr.String())
	}
}

// StaleBefore returns the ids of every player, ready or not, whose LastHeartbeat
// predates the cutoff, for the heartbeat monitor to evict.
func (r *Roster) StaleBefore(cutoff time.Time) []uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stale []uint16
	for id, p := range r.byID {
		if p.LastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

// ReadySnapshot returns a defensive copy of every ready player, for the
// snapshot broadcaster and color-map distribution.
func (r *Roster) ReadySnapshot() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Player, 0, len(r.byID))
	for _, p := range r.byID {
		if p.Ready {
			out = append(out, *p)
		}
	}
	return out
}

// AllSnapshot returns a defensive copy of every known player, ready or not
// (used when distributing PLAYER_COLOR to every already-connected player).
func (r *Roster) AllSnapshot() []Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Player, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, *p)
	}
	return out
}
