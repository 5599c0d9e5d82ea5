package client

import (
	"sync"

	"gridclash/internal/gridstate"
	"gridclash/internal/protocol"
)

// HeadlessRenderer records the latest state it was given without drawing
// anything, for tests and the text-mode command-line client.
type HeadlessRenderer struct {
	mu        sync.Mutex
	colors    map[uint16]gridstate.Color
	current   []byte
	previous  []byte
	gameOver  *protocol.GameOver
	snapshots int
}

// NewHeadlessRenderer constructs an empty HeadlessRenderer.
func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{colors: make(map[uint16]gridstate.Color)}
}

// ApplyColor implements Renderer.
func (r *HeadlessRenderer) ApplyColor(playerID uint16, color gridstate.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colors[playerID] = color
}

// ApplySnapshot implements Renderer.
func (r *HeadlessRenderer) ApplySnapshot(current, previous []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = append([]byte(nil), current...)
	r.previous = append([]byte(nil), previous...)
	r.snapshots++
}

// GameOver implements Renderer.
func (r *HeadlessRenderer) GameOver(result protocol.GameOver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := result
	r.gameOver = &clone
}

// Color returns the last known color for a player.
func (r *HeadlessRenderer) Color(playerID uint16) (gridstate.Color, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.colors[playerID]
	return c, ok
}

// Grid returns the most recently applied current/previous grid snapshot.
func (r *HeadlessRenderer) Grid() (current, previous []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.previous
}

// Snapshots reports how many snapshots have been applied.
func (r *HeadlessRenderer) Snapshots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshots
}

// Result returns the GAME_OVER outcome, if one has been received.
func (r *HeadlessRenderer) Result() *protocol.GameOver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gameOver
}
