// ABOUTME: Latest-wins tracking for asynchronous requests of one kind
// ABOUTME: Starting a request cancels its predecessor; stale results are dropped

package inflight

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned for a request that a newer one replaced
var ErrSuperseded = errors.New("inflight: superseded by a newer request")

// Tracker allows one live request at a time. The zero value is ready to use.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Ticket identifies one request started with Begin
type Ticket struct {
	ctx     context.Context
	tracker *Tracker
	seq     uint64
	cancel  context.CancelFunc
}

// Begin cancels the previous request, if still running, and starts a new one
func (t *Tracker) Begin(parent context.Context) *Ticket {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	t.cancel = cancel
	return &Ticket{ctx: ctx, tracker: t, seq: t.seq, cancel: cancel}
}

// Cancel aborts the current request, if any
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.seq++
}

// Context returns the ticket's context, cancelled when superseded
func (tk *Ticket) Context() context.Context {
	return tk.ctx
}

// Current reports whether no newer request has started
func (tk *Ticket) Current() bool {
	tk.tracker.mu.Lock()
	defer tk.tracker.mu.Unlock()
	return tk.seq == tk.tracker.seq
}

// Complete finishes the request. When the ticket is still current and err
// is nil, apply runs while the tracker is locked so no newer request can
// start in between. Superseded tickets return ErrSuperseded whatever err was.
func (tk *Ticket) Complete(err error, apply func()) error {
	t := tk.tracker
	t.mu.Lock()
	defer t.mu.Unlock()
	defer tk.cancel()

	if tk.seq != t.seq {
		return ErrSuperseded
	}
	t.cancel = nil
	if err != nil {
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}
