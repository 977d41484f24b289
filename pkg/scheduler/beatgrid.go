package scheduler

import "sync"

// beatEntry is one pending tick in the beat grid: a deadline plus its
// position within the measure.
type beatEntry struct {
	Deadline   Tick
	BeatNumber int
}

// BeatGrid is the rolling five-minute window of upcoming beat
// deadlines (spec.md §4.3 / original's mBeatSchedule). It is maintained
// by smartSleep one step per call: entries are pruned from the front
// and extended at the back one at a time, and a tempo change is applied
// to the remaining entries the same way. A grid shift is applied to
// every entry in a single call.
type BeatGrid struct {
	mu              sync.Mutex
	entries         []beatEntry
	beatsPerMeasure int
	beatUnit        int
	tempoBPM        float64
	clock           Clock

	pendingShiftTicks Tick
	shifting          bool

	rescaleFactor float64
	rescaling     bool
	rescaleCursor int
}

// NewBeatGrid constructs an empty grid; call Precalculate to seed it.
func NewBeatGrid(clock Clock, beatsPerMeasure, beatUnit int, tempoBPM float64) *BeatGrid {
	return &BeatGrid{
		clock:           clock,
		beatsPerMeasure: beatsPerMeasure,
		beatUnit:        beatUnit,
		tempoBPM:        tempoBPM,
	}
}

// ticksPerBeat is the current grid step size: seconds-per-beat at the
// grid's tempo, scaled to the clock's frequency.
func (g *BeatGrid) ticksPerBeat() Tick {
	secondsPerBeat := 60.0 / g.tempoBPM
	return Tick(fpFloor(secondsPerBeat * float64(g.clock.Frequency())))
}

// Precalculate fills the grid with gridHorizonSeconds worth of beats
// starting at startTick, replacing any existing contents.
func (g *BeatGrid) Precalculate(startTick Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries = g.entries[:0]
	step := g.ticksPerBeat()
	if step <= 0 {
		return
	}
	horizon := Tick(int64(gridHorizonSeconds) * g.clock.Frequency())
	limit := startTick + horizon

	tick := startTick
	beatNum := 1
	for tick < limit && len(g.entries) < gridCapacity {
		g.entries = append(g.entries, beatEntry{Deadline: tick, BeatNumber: beatNum})
		tick += step
		beatNum++
		if beatNum > g.beatsPerMeasure {
			beatNum = 1
		}
	}
}

// PruneExpiredIncrementally pops expired front entries and appends
// fresh tail entries to hold the horizon, doing at most one unit of
// work per call so the caller (smartSleep) can interleave it with
// other maintenance under a shared budget.
func (g *BeatGrid) PruneExpiredIncrementally(now Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.entries) == 0 {
		return
	}
	if g.entries[0].Deadline < now {
		g.entries = g.entries[1:]
	}

	step := g.ticksPerBeat()
	if step <= 0 || len(g.entries) == 0 {
		return
	}
	horizon := Tick(int64(gridHorizonSeconds) * g.clock.Frequency())
	last := g.entries[len(g.entries)-1]
	if last.Deadline < now+horizon && len(g.entries) < gridCapacity {
		nextBeat := last.BeatNumber + 1
		if nextBeat > g.beatsPerMeasure {
			nextBeat = 1
		}
		g.entries = append(g.entries, beatEntry{Deadline: last.Deadline + step, BeatNumber: nextBeat})
	}
}

// BeginShift arms a grid shift by offsetTicks; the next
// ShiftIncrementally call (from smartSleep) applies it.
func (g *BeatGrid) BeginShift(offsetTicks Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pendingShiftTicks = offsetTicks
	g.shifting = true
}

// ShiftInProgress reports whether a shift is still being applied.
func (g *BeatGrid) ShiftInProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.shifting
}

// ShiftIncrementally translates every grid entry by the pending offset
// in one call and clears the shift flag; the shift is not split across
// calls.
func (g *BeatGrid) ShiftIncrementally() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.shifting {
		return
	}
	if len(g.entries) == 0 {
		g.shifting = false
		return
	}
	for i := range g.entries {
		g.entries[i].Deadline += g.pendingShiftTicks
	}
	g.shifting = false
}

// BeginRescale arms an incremental tempo rescale: every entry's
// distance from now is scaled by oldTempo/newTempo, matching the
// original's mTempoScalingFactor.
func (g *BeatGrid) BeginRescale(oldTempo, newTempo float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rescaleFactor = oldTempo / newTempo
	g.rescaling = true
	g.rescaleCursor = 0
	g.tempoBPM = newTempo
}

// RescaleInProgress reports whether a rescale is still being applied.
func (g *BeatGrid) RescaleInProgress() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rescaling
}

// RescaleIncrementally rescales one grid entry relative to now, per
// smartSleep iteration.
func (g *BeatGrid) RescaleIncrementally(now Tick) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.rescaling {
		return
	}
	if g.rescaleCursor >= len(g.entries) {
		g.rescaling = false
		return
	}
	e := &g.entries[g.rescaleCursor]
	delta := e.Deadline - now
	e.Deadline = now + Tick(fpFloor(float64(delta)*g.rescaleFactor))
	g.rescaleCursor++
}

// BeatFromIndex returns the grid entry at index, or the zero entry if
// its deadline has already elapsed. index must be in [0, gridCapacity).
func (g *BeatGrid) BeatFromIndex(index int) (beatEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if index < 0 || index >= gridCapacity {
		return beatEntry{}, ErrIndexOutOfRange
	}
	if index >= len(g.entries) {
		return beatEntry{}, nil
	}
	e := g.entries[index]
	if e.Deadline < g.clock.Now() {
		return beatEntry{}, nil
	}
	return e, nil
}

// NextBeatByNumber walks forward through the grid for the first entry
// matching beatNumber, at or after the measureNum-th occurrence.
func (g *BeatGrid) NextBeatByNumber(beatNumber, measureNum int) (beatEntry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := 0
	for _, e := range g.entries {
		if e.BeatNumber == beatNumber {
			seen++
			if seen >= measureNum {
				return e, true
			}
		}
	}
	return beatEntry{}, false
}

// Len reports the number of entries currently held, for diagnostics.
func (g *BeatGrid) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
