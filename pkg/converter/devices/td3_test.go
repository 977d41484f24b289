package devices

import (
	"testing"

	"github.com/beatforge/midisched/pkg/converter"
)

func TestTD3Name(t *testing.T) {
	td3 := NewTD3()
	if td3.Name() != "Behringer TD-3" {
		t.Errorf("Name() = %q, want %q", td3.Name(), "Behringer TD-3")
	}
}

func TestTD3ID(t *testing.T) {
	td3 := NewTD3()
	if td3.ID() != TD3DeviceID {
		t.Errorf("ID() = %d, want %d", td3.ID(), TD3DeviceID)
	}
}

func TestTD3GenerateSeq(t *testing.T) {
	td3 := NewTD3()
	
	pattern := &converter.Pattern{
		Name:   "Test",
		Length: 16,
		Steps: []converter.Step{
			{Note: 60, Gate: true, Accent: false, Slide: false, Velocity: 100},
			{Note: 62, Gate: true, Accent: true, Slide: false, Velocity: 127},
			{Note: 64, Gate: true, Accent: false, Slide: true, Velocity: 100},
			{Note: 65, Gate: true, Accent: false, Slide: false, Tie: true, Velocity: 100},
		},
	}

	data, err := td3.GenerateSeq(pattern)
	if err != nil {
		t.Fatalf("GenerateSeq() error = %v", err)
	}

	// Should be a full 146-byte .seq buffer
	if len(data) != TD3SeqMinSize {
		t.Errorf("GenerateSeq() data length = %d, want %d", len(data), TD3SeqMinSize)
	}

	// Notes are stored as MIDI note - 24, split into high/low nibbles
	note := func(i int) int { return int(data[NotesOffset+i*2])*16 + int(data[NotesOffset+i*2+1]) }
	tie := int(data[TieOffset+1]) + int(data[TieOffset])<<4 + int(data[TieOffset+3])<<8 + int(data[TieOffset+2])<<12
	rest := int(data[RestOffset+1]) + int(data[RestOffset])<<4 + int(data[RestOffset+3])<<8 + int(data[RestOffset+2])<<12
	// attrs packs a step's flags as gate 0x01, accent 0x02, slide 0x04, tie 0x08
	attrs := func(i int) int {
		a := 0
		if rest&(1<<i) == 0 {
			a |= 0x01
		}
		if data[AccentsOffset+i*2+1] == 0x01 {
			a |= 0x02
		}
		if data[SlidesOffset+i*2+1] == 0x01 {
			a |= 0x04
		}
		if tie&(1<<i) == 0 { // a clear tie bit means sustain
			a |= 0x08
		}
		return a
	}

	// Check first step
	if note(0) != 36 { // C4 (60) - 24
		t.Errorf("Step 0 note = %d, want 36", note(0))
	}
	if attrs(0) != 0x01 { // Gate only
		t.Errorf("Step 0 attr = 0x%02X, want 0x01", attrs(0))
	}

	// Check second step (accent)
	if note(1) != 38 { // D4 (62) - 24
		t.Errorf("Step 1 note = %d, want 38", note(1))
	}
	if attrs(1) != 0x03 { // Gate + Accent
		t.Errorf("Step 1 attr = 0x%02X, want 0x03", attrs(1))
	}

	// Check third step (slide)
	if attrs(2) != 0x05 { // Gate + Slide
		t.Errorf("Step 2 attr = 0x%02X, want 0x05", attrs(2))
	}

	// Check fourth step (tie)
	if attrs(3) != 0x09 { // Gate + Tie
		t.Errorf("Step 3 attr = 0x%02X, want 0x09", attrs(3))
	}
}

func TestTD3ParseSeq(t *testing.T) {
	td3 := NewTD3()

	// Create a minimal .seq buffer: no rest bits set, so every step is gated
	data := make([]byte, TD3SeqMinSize)
	copy(data, td3HeaderMagic)
	// Tie bitmask with only step 3's bit clear (a clear bit means sustain)
	data[TieOffset], data[TieOffset+1], data[TieOffset+2], data[TieOffset+3] = 0x0F, 0x07, 0x0F, 0x0F
	// Step 0: C4 (60 - 24 = 36)
	data[NotesOffset], data[NotesOffset+1] = 2, 4
	// Step 1: D4 with accent
	data[NotesOffset+2], data[NotesOffset+3] = 2, 6
	data[AccentsOffset+3] = 0x01
	// Step 2: E4 with slide
	data[NotesOffset+4], data[NotesOffset+5] = 2, 8
	data[SlidesOffset+5] = 0x01
	// Step 3: F4 with tie
	data[NotesOffset+6], data[NotesOffset+7] = 2, 9

	pattern, err := td3.ParseSeq(data)
	if err != nil {
		t.Fatalf("ParseSeq() error = %v", err)
	}

	if len(pattern.Steps) != 16 {
		t.Errorf("ParseSeq() steps = %d, want 16", len(pattern.Steps))
	}

	// Check first step
	if pattern.Steps[0].Note != 60 {
		t.Errorf("Step 0 note = %d, want 60", pattern.Steps[0].Note)
	}
	if !pattern.Steps[0].Gate {
		t.Error("Step 0 should have gate")
	}

	// Check second step (accent)
	if !pattern.Steps[1].Accent {
		t.Error("Step 1 should have accent")
	}

	// Check third step (slide)
	if !pattern.Steps[2].Slide {
		t.Error("Step 2 should have slide")
	}

	// Check fourth step (tie)
	if !pattern.Steps[3].Tie {
		t.Error("Step 3 should have tie")
	}
}

func TestTD3GenerateSyx(t *testing.T) {
	td3 := NewTD3()

	pattern := &converter.Pattern{
		Name:   "Test",
		Length: 16,
		Steps: []converter.Step{
			{Note: 60, Gate: true, Velocity: 100},
		},
	}

	data, err := td3.GenerateSyx(pattern)
	if err != nil {
		t.Fatalf("GenerateSyx() error = %v", err)
	}

	// Check SysEx structure
	if data[0] != SysExStart {
		t.Errorf("SysEx start = 0x%02X, want 0x%02X", data[0], SysExStart)
	}

	if data[len(data)-1] != SysExEnd {
		t.Errorf("SysEx end = 0x%02X, want 0x%02X", data[len(data)-1], SysExEnd)
	}

	// Check manufacturer ID (Behringer: 00 20 32)
	if data[1] != 0x00 || data[2] != TD3Manufacturer || data[3] != TD3ManufID2 {
		t.Errorf("Manufacturer ID = %02X %02X %02X, want 00 20 32", data[1], data[2], data[3])
	}
}

func TestTD3ParseSyxInvalid(t *testing.T) {
	td3 := NewTD3()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"too short", []byte{0xF0, 0xF7}},
		{"no start byte", []byte{0x00, 0x20, 0x32, 0xF7}},
		{"no end byte", []byte{0xF0, 0x00, 0x20, 0x32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := td3.ParseSyx(tt.data)
			if err == nil {
				t.Error("ParseSyx() expected error for invalid data")
			}
		})
	}
}

func TestTD3RoundTrip(t *testing.T) {
	td3 := NewTD3()

	// Create original pattern
	original := &converter.Pattern{
		Name:   "Test",
		Length: 16,
		Steps: make([]converter.Step, 16),
	}

	// Set some steps
	original.Steps[0] = converter.Step{Note: 60, Gate: true, Accent: false, Slide: false, Velocity: 100}
	original.Steps[1] = converter.Step{Note: 62, Gate: true, Accent: true, Slide: false, Velocity: 127}
	original.Steps[4] = converter.Step{Note: 64, Gate: true, Accent: false, Slide: true, Velocity: 100}
	original.Steps[8] = converter.Step{Note: 65, Gate: true, Accent: false, Slide: false, Tie: true, Velocity: 100}

	// Generate seq data
	seqData, err := td3.GenerateSeq(original)
	if err != nil {
		t.Fatalf("GenerateSeq() error = %v", err)
	}

	// Parse it back
	parsed, err := td3.ParseSeq(seqData)
	if err != nil {
		t.Fatalf("ParseSeq() error = %v", err)
	}

	// Verify key properties preserved
	if parsed.Steps[0].Note != original.Steps[0].Note {
		t.Errorf("Round trip: step 0 note = %d, want %d", parsed.Steps[0].Note, original.Steps[0].Note)
	}
	if parsed.Steps[1].Accent != original.Steps[1].Accent {
		t.Errorf("Round trip: step 1 accent = %v, want %v", parsed.Steps[1].Accent, original.Steps[1].Accent)
	}
	if parsed.Steps[4].Slide != original.Steps[4].Slide {
		t.Errorf("Round trip: step 4 slide = %v, want %v", parsed.Steps[4].Slide, original.Steps[4].Slide)
	}
	if parsed.Steps[8].Tie != original.Steps[8].Tie {
		t.Errorf("Round trip: step 8 tie = %v, want %v", parsed.Steps[8].Tie, original.Steps[8].Tie)
	}
}

