package networking

import (
	"sync"
	"time"
)

// BandwidthUsage reports the sent/received throughput sampled for one player
// over the most recently closed one-second window.
type BandwidthUsage struct {
	PlayerID  uint16
	SentKbps  float64
	RecvKbps  float64
	SampledAt time.Time
}

type bandwidthBucket struct {
	windowStart time.Time
	sentBytes   int64
	recvBytes   int64
}

// BandwidthRegulator accumulates per-player sent/received byte counts and
// converts them to kbps at each whole-second boundary, mirroring the server's
// once-per-second server_metrics.csv sampling cadence.
type BandwidthRegulator struct {
	mu      sync.Mutex
	buckets map[uint16]*bandwidthBucket
	last    map[uint16]BandwidthUsage
	now     func() time.Time
}

// NewBandwidthRegulator constructs a regulator using the supplied clock, or
// time.Now when clock is nil.
func NewBandwidthRegulator(clock func() time.Time) *BandwidthRegulator {
	if clock == nil {
		clock = time.Now
	}
	return &BandwidthRegulator{
		buckets: make(map[uint16]*bandwidthBucket),
		last:    make(map[uint16]BandwidthUsage),
		now:     clock,
	}
}

func (r *BandwidthRegulator) bucket(playerID uint16, now time.Time) *bandwidthBucket {
	bucket := r.buckets[playerID]
	if bucket == nil {
		//1.- Seed a fresh accounting window for players observed for the first time.
		bucket = &bandwidthBucket{windowStart: now}
		r.buckets[playerID] = bucket
	}
	return bucket
}

// RecordSent charges outbound payload bytes against a player's current window.
func (r *BandwidthRegulator) RecordSent(playerID uint16, payloadBytes int) {
	if r == nil || payloadBytes <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.bucket(playerID, r.now())
	bucket.sentBytes += int64(payloadBytes)
}

// RecordReceived charges inbound payload bytes against a player's current window.
func (r *BandwidthRegulator) RecordReceived(playerID uint16, payloadBytes int) {
	if r == nil || payloadBytes <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket := r.bucket(playerID, r.now())
	bucket.recvBytes += int64(payloadBytes)
}

// Forget removes tracked counters for a player that has been evicted.
func (r *BandwidthRegulator) Forget(playerID uint16) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.buckets, playerID)
	r.mu.Unlock()
}

// FlushWindow closes the current one-second window for every tracked player,
// returning the observed kbps for each, and resets the byte counters.
func (r *BandwidthRegulator) FlushWindow() map[uint16]BandwidthUsage {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buckets) == 0 {
		return nil
	}

	now := r.now()
	usage := make(map[uint16]BandwidthUsage, len(r.buckets))
	for playerID, bucket := range r.buckets {
		elapsed := now.Sub(bucket.windowStart).Seconds()
		if elapsed <= 0 {
			elapsed = 1
		}
		//1.- Convert accumulated bytes to kbps (kilobits per second, decimal).
		usage[playerID] = BandwidthUsage{
			PlayerID:  playerID,
			SentKbps:  float64(bucket.sentBytes) * 8 / 1000 / elapsed,
			RecvKbps:  float64(bucket.recvBytes) * 8 / 1000 / elapsed,
			SampledAt: now,
		}
		//2.- Reset the window so the next second starts from a clean slate.
		bucket.sentBytes = 0
		bucket.recvBytes = 0
		bucket.windowStart = now
	}
	r.last = usage
	return usage
}

// LastUsage returns the usage computed by the most recent FlushWindow call
// without resetting any counters, suitable for repeated metrics scraping
// between flush boundaries.
func (r *BandwidthRegulator) LastUsage() map[uint16]BandwidthUsage {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.last) == 0 {
		return nil
	}
	out := make(map[uint16]BandwidthUsage, len(r.last))
	for playerID, usage := range r.last {
		out[playerID] = usage
	}
	return out
}
