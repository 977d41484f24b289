package scheduler

import (
	"fmt"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Sink is the scheduler's only dependency on an actual MIDI output.
// Send must be non-blocking and safe to call from the player goroutine
// at deadline pressure; Close releases the underlying port.
type Sink interface {
	Send(raw []byte) error
	Close() error
}

// normalizePortName mirrors the original MidiUtils::normalizePortName:
// RtMidi/CoreMIDI and ALSA both suffix a port's display name with a
// trailing device index token, which this strips by rebuilding the
// name from every token except the last.
func normalizePortName(name string) string {
	fields := strings.Fields(name)
	if len(fields) <= 1 {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(fields)-1; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(fields[i])
	}
	return b.String()
}

// portSink sends raw MIDI bytes to a real, driver-backed output port
// via gomidi's send function. Driver registration (the blank import of
// a concrete drivers/* package) is left to the caller so this package
// stays usable without cgo in tests.
type portSink struct {
	out  drivers.Out
	send func(midi.Message) error
}

// OpenSink finds the output port whose normalized name matches
// portName and opens it. Callers must have already registered a
// drivers/* backend (e.g. via a blank import of rtmididrv) before
// calling this.
func OpenSink(portName string) (Sink, error) {
	for _, out := range midi.GetOutPorts() {
		if normalizePortName(out.String()) == normalizePortName(portName) {
			send, err := midi.SendTo(out)
			if err != nil {
				return nil, fmt.Errorf("scheduler: opening port %q: %w", out.String(), err)
			}
			return &portSink{out: out, send: send}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrSinkUnavailable, portName)
}

func (s *portSink) Send(raw []byte) error {
	return s.send(midi.Message(raw))
}

func (s *portSink) Close() error {
	return s.out.Close()
}

// RecordingSink is a Sink that appends every sent message to an
// in-memory log instead of touching real hardware, for tests and for
// the TUI's dry-run preview.
type RecordingSink struct {
	Sent [][]byte
}

// NewRecordingSink returns an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Send(raw []byte) error {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.Sent = append(s.Sent, cp)
	return nil
}

func (s *RecordingSink) Close() error { return nil }

// BroadcastSink wraps another Sink and fans every sent message out to
// a set of subscriber channels in addition to forwarding it, so an
// external observer (the HTTP event stream, the TUI monitor) can watch
// live dispatch without sitting in the player's hot path.
type BroadcastSink struct {
	inner Sink
	subMu sync.Mutex
	subs  map[chan RawEvent]struct{}
}

// NewBroadcastSink wraps inner, which still receives every Send call.
func NewBroadcastSink(inner Sink) *BroadcastSink {
	return &BroadcastSink{inner: inner, subs: make(map[chan RawEvent]struct{})}
}

func (b *BroadcastSink) Send(raw []byte) error {
	b.notify(raw)
	return b.inner.Send(raw)
}

func (b *BroadcastSink) Close() error { return b.inner.Close() }

func (b *BroadcastSink) notify(raw []byte) {
	if len(raw) < 3 {
		return
	}
	e := RawEvent{
		Kind:     MidiMessageKind(raw[0] & 0xF0),
		Channel:  raw[0] & 0x0F,
		Note:     raw[1],
		Velocity: raw[2],
	}
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Slow subscriber: drop rather than block dispatch.
		}
	}
}

// Subscribe returns a channel that receives every future emitted
// event; call Unsubscribe when done to release it.
func (b *BroadcastSink) Subscribe() chan RawEvent {
	ch := make(chan RawEvent, 64)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

// Unsubscribe stops and closes a channel returned by Subscribe.
func (b *BroadcastSink) Unsubscribe(ch chan RawEvent) {
	b.subMu.Lock()
	delete(b.subs, ch)
	b.subMu.Unlock()
	close(ch)
}
