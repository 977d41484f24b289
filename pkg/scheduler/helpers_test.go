package scheduler

import (
	"testing"
	"time"
)

const (
	eventuallyTimeout = 2 * time.Second
	eventuallyTick    = time.Millisecond
)

// assertNever polls cond for a short window and fails if it ever
// becomes true, the negative-space counterpart to assert.Eventually.
func assertNever(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatal("condition became true but was expected never to")
		}
		time.Sleep(time.Millisecond)
	}
}
