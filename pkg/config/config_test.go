package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := New()
	cfg := Load(v)

	assert.Equal(t, 4, cfg.BeatsPerMeasure)
	assert.Equal(t, 4, cfg.BeatUnit)
	assert.Equal(t, 60.0, cfg.TempoBPM)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.MetricsEnabled)
}

func TestLoadHonorsEnvOverride(t *testing.T) {
	t.Setenv("MIDISCHED_TEMPO_BPM", "90")
	v := New()
	cfg := Load(v)
	assert.Equal(t, 90.0, cfg.TempoBPM)
}
