package scheduler

import (
	"fmt"
	"math/rand/v2"
)

// pcgJitter wraps a seeded math/rand/v2 PCG source for the scheduling
// jitter applied at admission (spec.md's determinism requirement: the
// same seed must reproduce the same schedule, which rules out
// math/rand's global, unseedable-by-default source).
type pcgJitter struct {
	r *rand.Rand
}

func newPCGJitter(seed uint64) *pcgJitter {
	return &pcgJitter{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// offset returns a uniform value in [-10000, 10000], matching the
// original's std::uniform_int_distribution bounds.
func (j *pcgJitter) offset() Tick {
	return Tick(j.r.IntN(20001) - 10000)
}

// resetChainMarker clears the previous-end marker once both B and Q
// have drained, so the next chained admission requires an explicit
// anchor again (spec.md §4.8).
func (s *Scheduler) resetChainMarker() {
	s.markerMu.Lock()
	s.previousEnd = 0
	s.markerSeeded = false
	s.markerMu.Unlock()
}

// AddEvent admits a single raw event at its own Deadline tick directly
// into the buffer.
func (s *Scheduler) AddEvent(e RawEvent) {
	s.pipeline.PushBuffer(e)
	s.metrics.scheduled.WithLabelValues("raw").Inc()
}

// AddEventAt admits e with its Deadline shifted by offsetTicks.
func (s *Scheduler) AddEventAt(e RawEvent, offsetTicks Tick) {
	e.Deadline += offsetTicks
	s.AddEvent(e)
}

// AddEvents admits a batch of raw events unchanged.
func (s *Scheduler) AddEvents(events []RawEvent) {
	for _, e := range events {
		s.AddEvent(e)
	}
}

// AddNote admits a NoteDescriptor: a NoteOn and its matching NoteOff
// are derived and pushed to the buffer, and the previous-end marker is
// advanced so the next chained descriptor can anchor off it. A rest
// (negative Duration) pushes no events but still advances the marker.
func (s *Scheduler) AddNote(nd NoteDescriptor) error {
	onTick, err := s.resolveScheduledTick(nd)
	if err != nil {
		return err
	}

	tempo := nd.TempoBPM
	if tempo < 0 {
		tempo = s.GetTempo()
	}

	durationTicks := beatsToTicks(s.clock, tempo, nd.Duration)
	absDuration := durationTicks
	if absDuration < 0 {
		absDuration = -absDuration
	}

	jitter := s.rng.offset()
	on := nd.Base
	on.Deadline = onTick + jitter

	division := nd.Division
	if division <= 0 || division > 1 {
		division = 1
	}
	soundTicks := Tick(fpFloor(division * float64(absDuration)))

	s.markerMu.Lock()
	s.previousEnd = onTick + absDuration
	s.markerSeeded = true
	s.markerMu.Unlock()

	if nd.Duration >= 0 {
		s.pipeline.PushBuffer(on)
		s.pipeline.PushBuffer(on.NoteOffFor(soundTicks))
	}
	s.metrics.scheduled.WithLabelValues("note").Inc()
	return nil
}

// AddNotes admits a batch of NoteDescriptors in order, so later
// entries that chain (ScheduledTick < 0) anchor off earlier ones in
// the same call.
func (s *Scheduler) AddNotes(notes []NoteDescriptor) error {
	for i, nd := range notes {
		if err := s.AddNote(nd); err != nil {
			return fmt.Errorf("note %d: %w", i, err)
		}
	}
	return nil
}

// resolveScheduledTick turns a NoteDescriptor's ScheduledTick into an
// absolute deadline: a non-negative value is used as-is, a negative
// one means "chain from the previous end marker".
func (s *Scheduler) resolveScheduledTick(nd NoteDescriptor) (Tick, error) {
	if nd.ScheduledTick >= 0 {
		return nd.ScheduledTick, nil
	}
	s.markerMu.Lock()
	defer s.markerMu.Unlock()
	if !s.markerSeeded {
		return 0, ErrChainingUnseeded
	}
	return s.previousEnd, nil
}

// ChangeTempo updates the scheduler's global tempo and arms an
// incremental rescale of the ready queue and the beat grid, so in-flight
// timing stays consistent with the new tempo rather than snapping.
// Events still waiting in the admission buffer keep their deadlines. The actual
// rescale work happens one entry per smartSleep iteration, bounded by
// the same cooperative budget as every other maintenance step; this
// call only arms it.
func (s *Scheduler) ChangeTempo(newTempo float64) error {
	if newTempo <= 0 {
		return ErrInvalidTempo
	}
	s.tempoMu.Lock()
	oldTempo := s.tempoBPM
	s.tempoBPM = newTempo
	s.tempoMu.Unlock()

	factor := oldTempo / newTempo
	s.pipeline.BeginQueueRescale(factor)
	s.grid.BeginRescale(oldTempo, newTempo)
	return nil
}

// ShiftBeats translates the entire beat grid and ready queue forward
// (or backward) by offsetTicks, without touching already-chained note
// durations.
func (s *Scheduler) ShiftBeats(offsetTicks Tick) {
	s.pipeline.ShiftQueue(offsetTicks)
	s.grid.BeginShift(offsetTicks)
}
