package editor

import (
	"context"
	"sync"
	"time"

	"github.com/nainya/applydesk/pkg/debounce"
	"github.com/nainya/applydesk/pkg/inflight"
)

// Compiler turns LaTeX into PDF bytes
type Compiler interface {
	Compile(ctx context.Context, latex string) ([]byte, error)
}

// Preview is the latest compiled document
type Preview struct {
	PDF        []byte
	Latex      string
	CompiledAt time.Time
	Err        error
}

// Ready reports whether a PDF is available
func (p Preview) Ready() bool {
	return len(p.PDF) > 0
}

// Previewer recompiles a document once edits pause, keeping only the result
// of the newest compile.
type Previewer struct {
	compiler Compiler
	source   func() (string, error)
	onResult func(Preview)
	now      func() time.Time
	deb      *debounce.Debouncer
	tracker  inflight.Tracker

	mu     sync.Mutex
	latest Preview
}

// NewPreviewer creates a previewer. source supplies the LaTeX to compile at
// fire time; onResult, when set, is told about every kept result.
func NewPreviewer(compiler Compiler, quiet time.Duration, clock debounce.Clock, now func() time.Time,
	source func() (string, error), onResult func(Preview)) *Previewer {
	p := &Previewer{compiler: compiler, source: source, onResult: onResult, now: now}
	p.deb = debounce.New(quiet, func() {
		p.Refresh(context.Background())
	}, debounce.WithClock(clock))
	return p
}

// Schedule restarts the quiet period before the next compile
func (p *Previewer) Schedule() {
	p.deb.Trigger()
}

// Refresh compiles immediately. A compile overtaken by a newer one returns
// inflight.ErrSuperseded and its result is discarded.
func (p *Previewer) Refresh(ctx context.Context) error {
	p.deb.Cancel()

	src, err := p.source()
	if err != nil {
		return p.keep(Preview{Err: err})
	}

	ticket := p.tracker.Begin(ctx)
	pdf, err := p.compiler.Compile(ticket.Context(), src)

	var result Preview
	err = ticket.Complete(err, func() {
		result = Preview{PDF: pdf, Latex: src, CompiledAt: p.now()}
		p.mu.Lock()
		p.latest = result
		p.mu.Unlock()
	})
	if err == inflight.ErrSuperseded {
		return err
	}
	if err != nil {
		return p.keep(Preview{Err: err, Latex: src})
	}
	if p.onResult != nil {
		p.onResult(result)
	}
	return nil
}

// keep records a failed compile while leaving the last good PDF in place
func (p *Previewer) keep(failed Preview) error {
	p.mu.Lock()
	p.latest.Err = failed.Err
	if failed.Latex != "" {
		p.latest.Latex = failed.Latex
	}
	out := p.latest
	p.mu.Unlock()

	if p.onResult != nil {
		p.onResult(out)
	}
	return failed.Err
}

// Set installs a PDF produced elsewhere, such as by a generation
func (p *Previewer) Set(pdf []byte, latex string) {
	p.tracker.Cancel()
	p.deb.Cancel()
	p.mu.Lock()
	p.latest = Preview{PDF: pdf, Latex: latex, CompiledAt: p.now()}
	p.mu.Unlock()
}

// Latest returns the newest kept preview
func (p *Previewer) Latest() Preview {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest
}

// Pending reports whether a compile is scheduled
func (p *Previewer) Pending() bool {
	return p.deb.Pending()
}

// Stop cancels scheduled and in-flight compiles permanently
func (p *Previewer) Stop() {
	p.deb.Stop()
	p.tracker.Cancel()
}
