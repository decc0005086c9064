package inflight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_LatestWins(t *testing.T) {
	var tr Tracker

	first := tr.Begin(context.Background())
	second := tr.Begin(context.Background())

	assert.ErrorIs(t, first.Context().Err(), context.Canceled, "first request must be aborted")
	assert.False(t, first.Current())
	assert.True(t, second.Current())

	applied := ""
	err := second.Complete(nil, func() { applied = "second" })
	require.NoError(t, err)

	err = first.Complete(nil, func() { applied = "first" })
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, "second", applied)
}

func TestTracker_SupersededMasksTransportError(t *testing.T) {
	var tr Tracker

	first := tr.Begin(context.Background())
	tr.Begin(context.Background())

	err := first.Complete(first.Context().Err(), nil)
	assert.ErrorIs(t, err, ErrSuperseded)
}

func TestTracker_ErrorsPassThrough(t *testing.T) {
	var tr Tracker
	boom := errors.New("boom")

	tk := tr.Begin(context.Background())
	called := false
	err := tk.Complete(boom, func() { called = true })

	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestTracker_Cancel(t *testing.T) {
	var tr Tracker

	tk := tr.Begin(context.Background())
	tr.Cancel()

	assert.Error(t, tk.Context().Err())
	assert.ErrorIs(t, tk.Complete(nil, nil), ErrSuperseded)
}
