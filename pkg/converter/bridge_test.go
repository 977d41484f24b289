package converter

import (
	"testing"

	"github.com/beatforge/midisched/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternToDescriptorsChainsAfterFirstStep(t *testing.T) {
	p := &Pattern{
		Name:   "test",
		Tempo:  120,
		Length: 3,
		Steps: []Step{
			{Note: 60, Gate: true, Velocity: 100},
			{Note: 60, Gate: true, Tie: true},
			{Note: 64, Gate: true, Accent: true},
		},
	}

	descs := PatternToDescriptors(p, 0)
	require.Len(t, descs, 2) // tie merges into the first

	assert.Equal(t, scheduler.Tick(0), descs[0].ScheduledTick)
	assert.Equal(t, scheduler.Sixteenth*2, descs[0].Duration)
	assert.Equal(t, scheduler.Tick(-1), descs[1].ScheduledTick)
	assert.Equal(t, uint8(127), descs[1].Base.Velocity)
}

func TestPatternToDescriptorsEmitsRestForClosedGate(t *testing.T) {
	p := &Pattern{
		Tempo: 120,
		Steps: []Step{
			{Note: 60, Gate: false},
			{Note: 62, Gate: true, Velocity: 90},
		},
	}

	descs := PatternToDescriptors(p, 0)
	require.Len(t, descs, 2)
	assert.True(t, descs[0].Duration < 0)
	assert.Equal(t, uint8(90), descs[1].Base.Velocity)
}

func TestSeedFirstTick(t *testing.T) {
	descs := []scheduler.NoteDescriptor{{ScheduledTick: 0}, {ScheduledTick: -1}}
	SeedFirstTick(descs, scheduler.Tick(5000))
	assert.Equal(t, scheduler.Tick(5000), descs[0].ScheduledTick)
	assert.Equal(t, scheduler.Tick(-1), descs[1].ScheduledTick)
}
