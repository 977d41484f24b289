package scheduler

// MidiMessageKind tags the seven defined MIDI channel-voice message
// types by their status nibble. Only NoteOff, NoteOn, PolyKeyPressure,
// and ControlChange are ever emitted by the scheduler itself (spec.md
// §3); the rest are declared for completeness of the tagged variant.
type MidiMessageKind uint8

const (
	NoteOff         MidiMessageKind = 0x80
	NoteOn          MidiMessageKind = 0x90
	PolyKeyPressure MidiMessageKind = 0xA0
	ControlChange   MidiMessageKind = 0xB0
	ProgramChange   MidiMessageKind = 0xC0
	ChannelPressure MidiMessageKind = 0xD0
	PitchBend       MidiMessageKind = 0xE0
)

// statusByte folds a channel (0-15) into the kind's nibble, matching
// standard MIDI status byte layout.
func (k MidiMessageKind) statusByte(channel uint8) uint8 {
	return uint8(k) | (channel & 0x0F)
}

// ccAllNotesOff is the MIDI-standard "all notes off" controller number.
const ccAllNotesOff uint8 = 0x7B

// Beat is an enumerated musical duration, valued as its length in
// milliseconds at 60 BPM (so ms-at-60bpm == beats-per-minute-adjusted
// ms at any other tempo via beatsToTicks). Negative values are rests:
// no note message is emitted, but time is still consumed.
type Beat float64

const (
	Whole              Beat = 4000
	Half               Beat = 2000
	Quarter            Beat = 1000
	Eighth             Beat = 500
	Sixteenth          Beat = 250
	ThirtySecond       Beat = 125
	DottedHalf         Beat = Half * 1.5
	DottedQuarter      Beat = Quarter * 1.5
	DottedEighth       Beat = Eighth * 1.5
	TripletQuarter     Beat = Quarter * 2 / 3
	TripletEighth      Beat = Eighth * 2 / 3
	QuintupletEighth   Beat = Eighth * 4 / 5
	SeptupletSixteenth Beat = Sixteenth * 4 / 7
	TwoMeasures        Beat = Whole * 2
	FourMeasures       Beat = Whole * 4

	RestWhole     Beat = -Whole
	RestHalf      Beat = -Half
	RestQuarter   Beat = -Quarter
	RestEighth    Beat = -Eighth
	RestSixteenth Beat = -Sixteenth
)

// RawEvent is the scheduler's atomic unit of dispatch: a three-byte
// MIDI message due at a tick deadline. RawEvents order earliest-first
// so both B and Q can be plain min-heaps over this type.
type RawEvent struct {
	Kind     MidiMessageKind
	Channel  uint8
	Note     uint8 // 0-127
	Velocity uint8 // 0-127
	Deadline Tick
}

// NewRawEvent builds a RawEvent for the given kind/channel/note/velocity
// due at deadline.
func NewRawEvent(kind MidiMessageKind, channel, note, velocity uint8, deadline Tick) RawEvent {
	return RawEvent{Kind: kind, Channel: channel, Note: note, Velocity: velocity, Deadline: deadline}
}

// NoteOffFor derives a matching NoteOff from an event plus a positive
// duration in ticks, due at e.Deadline+durationTicks.
func (e RawEvent) NoteOffFor(durationTicks Tick) RawEvent {
	return RawEvent{Kind: NoteOff, Channel: e.Channel, Note: e.Note, Velocity: 0, Deadline: e.Deadline + durationTicks}
}

// bytes renders the on-wire three-byte MIDI message: no running-status
// compression, ever.
func (e RawEvent) bytes() []byte {
	return []byte{e.Kind.statusByte(e.Channel), e.Note, e.Velocity}
}

// allNotesOffEvent builds the all-notes-off control change sent by
// pause() and on shutdown: status 0xB0, controller 0x7B, value 0.
func allNotesOffEvent(channel uint8, deadline Tick) RawEvent {
	return RawEvent{Kind: ControlChange, Channel: channel, Note: ccAllNotesOff, Velocity: 0, Deadline: deadline}
}

// NoteDescriptor is a higher-level admission: an articulated note
// expressed in beats, consumed by the producer API into exactly one
// NoteOn and one NoteOff RawEvent pushed to the buffer (spec.md §3/§4.8);
// a rest (negative Duration) pushes neither.
type NoteDescriptor struct {
	// Division is the articulation ratio in (0,1]: the fraction of the
	// symbolic beat length during which the pitch actually sounds.
	Division float64
	// Duration is the symbolic beat length that drives the next chain
	// anchor, independent of Division.
	Duration Beat
	// Base carries kind/channel/note/velocity/deadline; Deadline is
	// overwritten by admission (see producer.go) from ScheduledTick.
	Base RawEvent
	// TempoBPM < 0 means "inherit the scheduler's current global tempo".
	TempoBPM float64
	// ScheduledTick < 0 means "chain": reuse the previous-end marker.
	ScheduledTick Tick
}
