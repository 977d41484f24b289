package converter

import "github.com/beatforge/midisched/pkg/scheduler"

// defaultAccentVelocity and defaultVelocity mirror the velocity levels
// midi.go's GenerateMIDI already uses for accented vs. plain steps.
const (
	defaultVelocity       uint8 = 100
	defaultAccentVelocity uint8 = 127
)

// PatternToDescriptors turns a Pattern's step sequence into a chain of
// scheduler.NoteDescriptor values, so the converter can feed Patterns
// loaded from .seq/.syx/.mid files straight into a running Scheduler
// instead of only ever writing them back out to a file (the "external
// content producer" role the scheduler treats the converter as).
//
// Each step is one sixteenth note. A Tie step extends the previous
// sounding note's duration rather than starting a new one, a Slide
// step sounds at full division (legato), a rest (Gate == false)
// becomes a one-sixteenth rest descriptor (RestSixteenth) so the chain
// still advances, and Accent raises velocity to defaultAccentVelocity.
func PatternToDescriptors(p *Pattern, channel uint8) []scheduler.NoteDescriptor {
	var out []scheduler.NoteDescriptor
	var open *scheduler.NoteDescriptor

	flush := func() {
		if open != nil {
			out = append(out, *open)
			open = nil
		}
	}

	for i, step := range p.Steps {
		if step.Tie && open != nil {
			open.Duration += scheduler.Sixteenth
			continue
		}
		flush()

		if !step.Gate {
			out = append(out, scheduler.NoteDescriptor{
				Duration:      scheduler.RestSixteenth,
				Base:          scheduler.RawEvent{Kind: scheduler.NoteOn, Channel: channel},
				TempoBPM:      p.Tempo,
				ScheduledTick: scheduledTickFor(i),
			})
			continue
		}

		velocity := step.Velocity
		if velocity == 0 {
			velocity = defaultVelocity
		}
		if step.Accent {
			velocity = defaultAccentVelocity
		}

		division := 1.0
		if !step.Slide {
			division = 0.75
		}

		nd := scheduler.NoteDescriptor{
			Division:      division,
			Duration:      scheduler.Sixteenth,
			Base:          scheduler.RawEvent{Kind: scheduler.NoteOn, Channel: channel, Note: step.Note, Velocity: velocity},
			TempoBPM:      p.Tempo,
			ScheduledTick: scheduledTickFor(i),
		}
		open = &nd
	}
	flush()
	return out
}

// SeedFirstTick rewrites descs[0]'s ScheduledTick (left at 0 by
// PatternToDescriptors as a placeholder) to an absolute anchor, so the
// whole chain starts there instead of at the scheduler's epoch tick 0.
func SeedFirstTick(descs []scheduler.NoteDescriptor, anchor scheduler.Tick) {
	if len(descs) > 0 {
		descs[0].ScheduledTick = anchor
	}
}

// scheduledTickFor returns 0 for the pattern's first step (an explicit
// anchor the caller is expected to rewrite to "now" before admission)
// and -1 for every later step, so it chains off the one before it.
func scheduledTickFor(index int) scheduler.Tick {
	if index == 0 {
		return 0
	}
	return -1
}
