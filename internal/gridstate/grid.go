// Package gridstate owns the authoritative GridClash grid and player
// roster. Grid and Roster each hold one mutex of their own: the Grid mutex
// covers cell mutation and the full-grid reads taken by the snapshot
// broadcaster alike. EVENT sequence checks are not done here; they live in
// internal/input.Gate under that package's own lock.
package gridstate

import "sync"

// DefaultSize is the default grid side length (W).
const DefaultSize = 20

// Grid is the fixed W*W authoritative cell ownership array. Cell 0 means
// unowned; any nonzero byte is the owning player_id (Roster.JoinOrLookup
// refuses to allocate ids above 255, so every id fits in one byte).
type Grid struct {
	mu    sync.Mutex
	size  int
	cells []byte
}

// NewGrid allocates a zeroed size*size grid.
func NewGrid(size int) *Grid {
	if size <= 0 {
		size = DefaultSize
	}
	return &Grid{size: size, cells: make([]byte, size*size)}
}

// Size returns the grid's side length W.
func (g *Grid) Size() int {
	return g.size
}

// Area returns W*W, the total number of cells.
func (g *Grid) Area() int {
	return g.size * g.size
}

// TryClaim attempts to assign cellIndex to playerID. Returns true if the
// claim succeeded (the cell was previously unowned and in range). A taken
// or out-of-range cell returns false without mutating the grid — the
// caller still ACKs the EVENT regardless of the outcome (I1, I4).
func (g *Grid) TryClaim(cellIndex int, playerID byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cellIndex < 0 || cellIndex >= len(g.cells) {
		return false
	}
	if g.cells[cellIndex] != 0 {
		return false
	}
	g.cells[cellIndex] = playerID
	return true
}

// Full reports whether every cell has a nonzero owner.
func (g *Grid) Full() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.cells {
		if c == 0 {
			return false
		}
	}
	return true
}

// Snapshot returns a defensive copy of the current cell bytes, safe for the
// caller to retain or mutate.
func (g *Grid) Snapshot() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]byte, len(g.cells))
	copy(out, g.cells)
	return out
}

// Tally counts owned cells per nonzero player id and returns the number of
// cells still unowned, used for game-over finalization (P5).
func (g *Grid) Tally() (scores map[byte]int, emptyCells int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	scores = make(map[byte]int)
	for _, c := range g.cells {
		if c == 0 {
			emptyCells++
			continue
		}
		scores[c]++
	}
	return scores, emptyCells
}
