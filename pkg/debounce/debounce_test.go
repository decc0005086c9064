package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestDebouncer(quiet time.Duration) (*Debouncer, *ManualClock, *int) {
	clock := NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	calls := 0
	d := New(quiet, func() { calls++ }, WithClock(clock))
	return d, clock, &calls
}

func TestDebouncer_FiresAfterQuietPeriod(t *testing.T) {
	d, clock, calls := newTestDebouncer(5 * time.Second)

	assert.True(t, d.Trigger())
	assert.True(t, d.Pending())

	clock.Advance(4 * time.Second)
	assert.Equal(t, 0, *calls)

	clock.Advance(time.Second)
	assert.Equal(t, 1, *calls)
	assert.False(t, d.Pending())
}

func TestDebouncer_TriggerResetsTimer(t *testing.T) {
	d, clock, calls := newTestDebouncer(5 * time.Second)

	d.Trigger()
	clock.Advance(3 * time.Second)
	d.Trigger()
	clock.Advance(3 * time.Second)
	assert.Equal(t, 0, *calls, "reset timer must not fire early")

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, *calls)
	assert.Equal(t, 0, clock.Pending(), "only one timer may be pending")
}

func TestDebouncer_OnlyOnePendingTimer(t *testing.T) {
	d, clock, calls := newTestDebouncer(time.Second)

	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(time.Second)
	assert.Equal(t, 1, *calls)
}

func TestDebouncer_SuspendCancelsAndIgnores(t *testing.T) {
	d, clock, calls := newTestDebouncer(time.Second)

	d.Trigger()
	d.Suspend()
	assert.False(t, d.Trigger())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, *calls)

	d.Resume()
	assert.False(t, d.Pending(), "resume must not reschedule")

	d.Trigger()
	clock.Advance(time.Second)
	assert.Equal(t, 1, *calls)
}

func TestDebouncer_StopIsPermanent(t *testing.T) {
	d, clock, calls := newTestDebouncer(time.Second)

	d.Trigger()
	d.Stop()
	assert.False(t, d.Trigger())

	clock.Advance(time.Minute)
	assert.Equal(t, 0, *calls)
}

func TestDebouncer_SystemClock(t *testing.T) {
	done := make(chan struct{})
	d := New(10*time.Millisecond, func() { close(done) })
	d.Trigger()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not fire on the system clock")
	}
}
