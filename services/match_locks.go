package services

import (
	"context"
	"sync"
	"time"

	"naval-combat/fleet"
)

// matchLocks hands out one mutex per match id. An entry lives while
// anybody holds or waits for it. An idle entry is kept only while it caches
// the fired cells of a match that has not finished, and sweepIdle drops
// those once nobody has touched them for a while.
type matchLocks struct {
	mu      sync.Mutex
	entries map[string]*matchEntry
	now     func() time.Time
}

type matchEntry struct {
	mu       sync.Mutex
	refs     int
	done     bool
	lastUsed time.Time // guarded by matchLocks.mu

	// fired[shooterID] is the set of cells that shooter already fired at.
	// nil until loaded from the shot log.
	fired map[string]map[fleet.Cell]struct{}
}

func newMatchLocks() *matchLocks {
	return &matchLocks{entries: make(map[string]*matchEntry), now: time.Now}
}

// lock blocks until the caller owns matchID and returns the entry plus the
// release func. Call release exactly once.
func (l *matchLocks) lock(matchID string) (*matchEntry, func()) {
	l.mu.Lock()
	e, ok := l.entries[matchID]
	if !ok {
		e = &matchEntry{}
		l.entries[matchID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return e, func() {
		// read under e.mu; a stale answer only costs a cache reload
		idle := e.done || e.fired == nil
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		e.lastUsed = l.now()
		if e.refs == 0 && idle {
			delete(l.entries, matchID)
		}
		l.mu.Unlock()
	}
}

// sweepIdle drops unheld entries last released more than maxIdle ago. A
// dropped cache is reloaded from the shot log if the match resumes.
func (l *matchLocks) sweepIdle(maxIdle time.Duration) int {
	cutoff := l.now().Add(-maxIdle)
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := 0
	for id, e := range l.entries {
		if e.refs == 0 && e.lastUsed.Before(cutoff) {
			delete(l.entries, id)
			dropped++
		}
	}
	return dropped
}

func (l *matchLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// firedCells returns the fired-cell cache, loading it from the shot log on
// first use. Must be called with e.mu held.
func (e *matchEntry) firedCells(ctx context.Context, store Store, matchID string) (map[string]map[fleet.Cell]struct{}, error) {
	if e.fired != nil {
		return e.fired, nil
	}
	shots, err := store.ListShots(ctx, matchID)
	if err != nil {
		return nil, err
	}
	fired := make(map[string]map[fleet.Cell]struct{})
	for _, s := range shots {
		addCell(fired, s.ShooterID, fleet.Cell{X: s.X, Y: s.Y})
	}
	e.fired = fired
	return fired, nil
}

func addCell(fired map[string]map[fleet.Cell]struct{}, shooterID string, c fleet.Cell) {
	cells, ok := fired[shooterID]
	if !ok {
		cells = make(map[fleet.Cell]struct{})
		fired[shooterID] = cells
	}
	cells[c] = struct{}{}
}
