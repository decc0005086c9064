package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nainya/applydesk/internal/logger"
	"github.com/nainya/applydesk/pkg/backend"
	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/debounce"
	"github.com/nainya/applydesk/pkg/grammar"
	"github.com/nainya/applydesk/pkg/history"
	"github.com/nainya/applydesk/pkg/inflight"
	"github.com/nainya/applydesk/pkg/latex"
	"github.com/nainya/applydesk/pkg/persist"
)

// Session is one open document. All state changes happen under mu; the
// debounce callbacks and backend completions re-enter through it.
//
// Lock order: grammar and generation trackers, then mu, then the preview
// tracker. The grammar and generation trackers are never touched under mu.
type Session struct {
	handle string
	id     persist.Identity
	deps   Deps
	cfg    Config
	log    *logger.Logger

	mu      sync.Mutex
	doc     *content.Document
	store   *history.Store
	ctrl    *history.Controller
	autosav *debounce.Debouncer
	status  string
	issues  []grammar.Issue
	checked struct {
		ref  string
		text string
	}
	closed bool

	checker   *grammar.Checker
	generator inflight.Tracker
	preview   *Previewer
	events    *feed
	unbind    func()
}

func newSession(handle string, id persist.Identity, deps Deps, cfg Config) (*Session, error) {
	store := deps.History.Load(id)

	var doc *content.Document
	var err error
	if snap, ok := store.Current(); ok {
		doc, err = content.FromContent(snap.Content)
	} else if res, ok := deps.generations(id); ok && res.Content.Kind == id.Kind {
		doc, err = content.FromContent(res.Content)
	} else {
		doc, err = content.NewDocument(id.Kind)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		handle: handle,
		id:     id,
		deps:   deps,
		cfg:    cfg,
		log:    deps.Logger.SessionLogger(id.String()),
		doc:    doc,
		store:  store,
		ctrl:   history.NewController(store, doc),
		events: newFeed(),
	}
	s.autosav = debounce.New(cfg.QuietPeriod, s.autoSnapshot, debounce.WithClock(cfg.Clock))
	if deps.Backend != nil {
		s.checker = grammar.NewChecker(deps.Backend)
		s.preview = NewPreviewer(deps.Backend, cfg.PreviewQuietPeriod, cfg.Clock, cfg.Now, s.latexSource, s.previewDone)
	}
	return s, nil
}

func (d Deps) generations(id persist.Identity) (backend.GenerateResult, bool) {
	if d.Generations == nil {
		return backend.GenerateResult{}, false
	}
	return d.Generations.Get(id)
}

// Handle returns the session's opaque identifier
func (s *Session) Handle() string { return s.handle }

// Identity returns the document identity
func (s *Session) Identity() persist.Identity { return s.id }

// State is a consistent view of a session
type State struct {
	Handle   string          `json:"handle"`
	Kind     content.Kind    `json:"kind"`
	Identity string          `json:"identity"`
	Content  content.Content `json:"content"`
	Position string          `json:"position"`
	Cursor   int             `json:"cursor"`
	Len      int             `json:"len"`
	Max      int             `json:"max"`
	CanUndo  bool            `json:"can_undo"`
	CanRedo  bool            `json:"can_redo"`
	Unsaved  bool            `json:"unsaved"`
	Status   string          `json:"status,omitempty"`
	Issues   []grammar.Issue `json:"issues"`
	Preview  bool            `json:"preview_ready"`
}

// State returns the current session state. CanUndo is true whenever Undo
// would succeed, including when unsaved edits sit on top of the only version.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Handle:   s.handle,
		Kind:     s.id.Kind,
		Identity: s.id.ID,
		Content:  s.doc.Snapshot(),
		Position: s.store.Position().String(),
		Cursor:   s.store.Cursor(),
		Len:      s.store.Len(),
		Max:      s.store.Max(),
		CanUndo:  s.canUndoLocked(),
		CanRedo:  s.store.CanRedo(),
		Unsaved:  s.unsavedLocked(),
		Status:   s.status,
		Issues:   append([]grammar.Issue(nil), s.issues...),
	}
	if s.preview != nil {
		st.Preview = s.preview.Latest().Ready()
	}
	return st
}

// Subscribe returns a channel of session events and a function that ends
// the subscription. The channel closes when the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

// mutate runs fn against the live document and schedules follow-up work
func (s *Session) mutate(fn func(d *content.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := fn(s.doc); err != nil {
		return err
	}
	s.touchLocked()
	return nil
}

// touchLocked restarts the snapshot and preview timers (caller must hold mu)
func (s *Session) touchLocked() {
	s.autosav.Trigger()
	if s.preview != nil {
		s.preview.Schedule()
	}
	s.emitLocked(EventContent, "")
}

// SetField replaces one scalar field
func (s *Session) SetField(name, value string) error {
	return s.mutate(func(d *content.Document) error { return d.SetField(name, value) })
}

// SetText replaces a field or a paragraph addressed as "body.N"
func (s *Session) SetText(ref, value string) error {
	return s.mutate(func(d *content.Document) error { return d.SetText(ref, value) })
}

// SetBody replaces every body paragraph
func (s *Session) SetBody(paragraphs []string) error {
	return s.mutate(func(d *content.Document) error {
		d.SetBody(paragraphs)
		return nil
	})
}

// InsertParagraph inserts text before position at
func (s *Session) InsertParagraph(at int, text string) error {
	return s.mutate(func(d *content.Document) error { return d.InsertParagraph(at, text) })
}

// RemoveParagraph deletes the paragraph at position at
func (s *Session) RemoveParagraph(at int) error {
	return s.mutate(func(d *content.Document) error { return d.RemoveParagraph(at) })
}

// MoveParagraph reorders the body, moving paragraph from to position to
func (s *Session) MoveParagraph(from, to int) error {
	return s.mutate(func(d *content.Document) error { return d.MoveParagraph(from, to) })
}

// autoSnapshot is the quiet-period callback. It commits when there is no
// snapshot yet or the live content moved far enough from the cursor's.
func (s *Session) autoSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	live := s.doc.Snapshot()
	if cur, ok := s.store.Current(); ok {
		change := content.Compare(cur.Content, live)
		if !change.Significant(s.cfg.MinDistance) {
			s.log.Debug("Skipping auto-snapshot").Int("distance", change.Distance).Send()
			return
		}
	}
	s.commitLocked(live, LabelAutoSave, "auto")
}

// commitLocked records c, persists the store and notifies subscribers
// (caller must hold mu)
func (s *Session) commitLocked(c content.Content, label, trigger string) int {
	prevCursor := s.store.Cursor()
	idx := s.store.Commit(c, label)

	// Without eviction the new length would be prevCursor+2
	evicted := prevCursor + 2 - s.store.Len()
	if evicted < 0 {
		evicted = 0
	}
	s.deps.Metrics.RecordCommit(string(s.id.Kind), trigger, evicted)
	s.log.Debug("Snapshot committed").
		Str("label", label).
		Int("cursor", idx).
		Int("len", s.store.Len()).
		Int("evicted", evicted).
		Send()

	s.saveLocked()
	s.emitLocked(EventSnapshot, label)
	return idx
}

// saveLocked writes the store. Failures become a status message; the
// in-memory history stays authoritative (caller must hold mu).
func (s *Session) saveLocked() {
	start := s.cfg.Now()
	err := s.deps.History.Save(s.id, s.store)
	dur := s.cfg.Now().Sub(start)

	s.deps.Metrics.RecordPersist("save", err, dur)
	s.deps.Logger.LogStoreOperation("save", s.id.String(), dur, err)
	if err != nil {
		s.setStatusLocked("Version history could not be saved locally.")
	}
}

// unsavedLocked reports whether the live content differs from the version
// at the cursor (caller must hold mu)
func (s *Session) unsavedLocked() bool {
	cur, ok := s.store.Current()
	return !ok || cur.Content.Canonical() != s.doc.Snapshot().Canonical()
}

// canUndoLocked reports whether undo would move, counting the flush of
// unsaved edits (caller must hold mu)
func (s *Session) canUndoLocked() bool {
	return s.store.Len() > 0 && (s.store.CanUndo() || s.unsavedLocked())
}

// flushLocked commits unsaved edits before the cursor moves so undo never
// discards typing (caller must hold mu)
func (s *Session) flushLocked() {
	s.autosav.Cancel()
	live := s.doc.Snapshot()
	if cur, ok := s.store.Current(); ok && cur.Content.Canonical() == live.Canonical() {
		return
	}
	s.commitLocked(live, LabelAutoSave, "flush")
}

// Snapshot commits the live content explicitly. Content identical to the
// snapshot at the cursor is not committed again.
func (s *Session) Snapshot(label string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSessionClosed
	}
	if label == "" {
		label = LabelManual
	}
	s.autosav.Cancel()

	live := s.doc.Snapshot()
	if cur, ok := s.store.Current(); ok && cur.Content.Canonical() == live.Canonical() {
		return s.store.Cursor(), nil
	}
	return s.commitLocked(live, label, "explicit"), nil
}

// Undo steps back one version. It reports false when there was nothing to
// undo.
func (s *Session) Undo() (history.Snapshot, bool) {
	return s.move(ActionUndo)
}

// Redo steps forward one version. It reports false when there was nothing
// to redo.
func (s *Session) Redo() (history.Snapshot, bool) {
	return s.move(ActionRedo)
}

func (s *Session) move(a Action) (history.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return history.Snapshot{}, false
	}

	var snap history.Snapshot
	var ok bool
	switch a {
	case ActionUndo:
		if !s.canUndoLocked() {
			return history.Snapshot{}, false
		}
		s.flushLocked()
		snap, ok = s.ctrl.Undo()
	case ActionRedo:
		if !s.store.CanRedo() {
			return history.Snapshot{}, false
		}
		s.autosav.Cancel()
		snap, ok = s.ctrl.Redo()
	}
	if !ok {
		return history.Snapshot{}, false
	}

	s.deps.Metrics.RecordMove(string(a))
	s.saveLocked()
	s.afterMoveLocked()
	return snap, true
}

// Restore makes version index current and drops every newer version.
// Unsaved edits are discarded.
func (s *Session) Restore(index int) (history.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return history.Snapshot{}, ErrSessionClosed
	}

	s.autosav.Cancel()
	snap, err := s.ctrl.Restore(index)
	if err != nil {
		return history.Snapshot{}, err
	}

	s.deps.Metrics.RecordMove("restore")
	s.saveLocked()
	s.afterMoveLocked()
	return snap, nil
}

// afterMoveLocked refreshes dependent state after the live content was
// replaced from history (caller must hold mu)
func (s *Session) afterMoveLocked() {
	s.issues = nil
	if s.preview != nil {
		s.preview.Schedule()
	}
	s.emitLocked(EventHistory, "")
}

// Position returns the cursor position
func (s *Session) Position() history.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Position()
}

// Versions lists every stored version, oldest first
func (s *Session) Versions() []history.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshots()
}

// Version returns the snapshot at index
func (s *Session) Version(index int) (history.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.At(index)
}

// Diff compares version index with the live content
func (s *Session) Diff(index int) ([]content.FieldDiff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.At(index)
	if err != nil {
		return nil, err
	}
	return content.Diff(snap.Content, s.doc.Snapshot()), nil
}

// HandleKey resolves combo through hub and applies it to this session
func (s *Session) HandleKey(hub *KeyHub, combo string) (Action, bool) {
	a, ok := hub.Resolve(combo)
	if !ok {
		return "", false
	}
	s.apply(a)
	return a, true
}

func (s *Session) apply(a Action) {
	switch a {
	case ActionUndo:
		s.Undo()
	case ActionRedo:
		s.Redo()
	}
}

// CheckGrammar checks the text at ref. Only the newest check's issues are
// kept; an overtaken check returns inflight.ErrSuperseded.
func (s *Session) CheckGrammar(ctx context.Context, ref string) ([]grammar.Issue, error) {
	if s.checker == nil {
		return nil, ErrNoBackend
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	text, err := s.doc.Text(ref)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var kept []grammar.Issue
	err = s.checker.Check(ctx, text, func(issues []grammar.Issue) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.issues = issues
		s.checked.ref = ref
		s.checked.text = text
		kept = append([]grammar.Issue(nil), issues...)
		s.emitLocked(EventGrammar, "")
	})
	if err != nil {
		s.backendFailed("grammar", err)
		return nil, err
	}
	return kept, nil
}

// ApplyFixes applies every auto-fixable issue from the last check and
// commits the result as its own version. The auto-snapshot timer is held off
// while the fix is written.
func (s *Session) ApplyFixes() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	if len(s.issues) == 0 {
		return 0, nil
	}

	text, err := s.doc.Text(s.checked.ref)
	if err != nil {
		return 0, err
	}
	if text != s.checked.text {
		return 0, ErrStaleIssues
	}

	fixed, applied := grammar.Apply(text, s.issues)
	if len(applied) == 0 {
		return 0, nil
	}

	s.autosav.Suspend()
	defer s.autosav.Resume()

	if err := s.doc.SetText(s.checked.ref, fixed); err != nil {
		return 0, err
	}
	s.issues = nil
	s.commitLocked(s.doc.Snapshot(), LabelGrammarFixes, "grammar")
	if s.preview != nil {
		s.preview.Schedule()
	}
	s.setStatusLocked(fmt.Sprintf("Applied %d grammar fixes.", len(applied)))
	return len(applied), nil
}

// Generate asks the backend for a new document, replaces the live content
// with it and commits it. A generation overtaken by a newer one returns
// inflight.ErrSuperseded.
func (s *Session) Generate(ctx context.Context, req backend.GenerateRequest) (*backend.GenerateResult, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	req.Kind = s.id.Kind
	if req.JobID == "" {
		req.JobID = s.id.ID
	}

	ticket := s.generator.Begin(ctx)
	res, err := s.deps.Backend.Generate(ticket.Context(), req)
	var applyErr error
	err = ticket.Complete(err, func() {
		applyErr = s.applyGeneration(res)
	})
	if err != nil {
		s.backendFailed("generation", err)
		return nil, err
	}
	if applyErr != nil {
		return nil, fmt.Errorf("apply generated content: %w", applyErr)
	}
	return res, nil
}

func (s *Session) applyGeneration(res *backend.GenerateResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if err := s.doc.Replace(res.Content); err != nil {
		s.log.Warn("Generated content rejected").Err(err).Str("kind", string(res.Content.Kind)).Send()
		return err
	}
	s.autosav.Cancel()
	s.issues = nil
	s.commitLocked(s.doc.Snapshot(), LabelGenerated, "generated")

	if s.deps.Generations != nil {
		if err := s.deps.Generations.Put(s.id, *res); err != nil {
			s.log.Warn("Failed to cache generation").Err(err).Send()
		}
	}
	if s.preview != nil {
		if pdf, err := res.PDF(); err == nil && len(pdf) > 0 {
			s.preview.Set(pdf, res.Latex)
		} else {
			s.preview.Schedule()
		}
	}
	s.setStatusLocked("Document generated.")
	return nil
}

// Latex assembles the LaTeX source for the live content
func (s *Session) Latex() (string, error) {
	return s.latexSource()
}

func (s *Session) latexSource() (string, error) {
	var lh latex.Letterhead
	if s.deps.Preferences != nil {
		lh = s.deps.Preferences.Letterhead()
	}
	s.mu.Lock()
	c := s.doc.Snapshot()
	s.mu.Unlock()
	return latex.Render(c, lh)
}

// Preview returns the newest compiled preview, compiling first when none
// exists yet or refresh is set.
func (s *Session) Preview(ctx context.Context, refresh bool) (Preview, error) {
	if s.preview == nil {
		return Preview{}, ErrNoBackend
	}
	if refresh || !s.preview.Latest().Ready() {
		if err := s.preview.Refresh(ctx); err != nil {
			return s.preview.Latest(), err
		}
	}
	return s.preview.Latest(), nil
}

func (s *Session) previewDone(p Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Err != nil {
		if !backend.IsAborted(p.Err) {
			s.setStatusLocked("Preview failed: " + backend.UserMessage(p.Err))
		}
		return
	}
	s.emitLocked(EventPreview, "")
}

// backendFailed logs a backend failure and turns it into a status message.
// Aborted calls are dropped silently.
func (s *Session) backendFailed(what string, err error) {
	if backend.IsAborted(err) {
		if errors.Is(err, inflight.ErrSuperseded) {
			s.deps.Metrics.RecordSuperseded(what)
		}
		return
	}
	s.log.Warn("Backend call failed").Str("operation", what).Err(err).Send()

	s.mu.Lock()
	defer s.mu.Unlock()
	msg := backend.UserMessage(err)
	if msg == "" {
		msg = err.Error()
	}
	s.setStatusLocked(msg)
}

// Status returns the last status message
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatusLocked(msg string) {
	s.status = msg
	s.emitLocked(EventStatus, "")
}

func (s *Session) emitLocked(t EventType, label string) {
	s.events.publish(Event{
		Type:     t,
		Session:  s.handle,
		Position: s.store.Position().String(),
		Cursor:   s.store.Cursor(),
		Len:      s.store.Len(),
		Label:    label,
		Status:   s.status,
		At:       s.cfg.Now(),
	})
}

// close stops timers, unbinds keys, commits unsaved edits and saves
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	live := s.doc.Snapshot()
	cur, ok := s.store.Current()
	if !ok || cur.Content.Canonical() != live.Canonical() {
		if ok || !isBlank(live) {
			s.commitLocked(live, LabelAutoSave, "close")
		}
	}
	if s.store.Len() > 0 || s.deps.History.Exists(s.id) {
		s.saveLocked()
	}
	s.closed = true
	unbind := s.unbind
	final := Event{
		Type:     EventClosed,
		Session:  s.handle,
		Position: s.store.Position().String(),
		Cursor:   s.store.Cursor(),
		Len:      s.store.Len(),
		At:       s.cfg.Now(),
	}
	s.mu.Unlock()

	// Trackers are cancelled outside mu; their completions take mu
	s.autosav.Stop()
	if s.preview != nil {
		s.preview.Stop()
	}
	if s.checker != nil {
		s.checker.Cancel()
	}
	s.generator.Cancel()
	if unbind != nil {
		unbind()
	}
	s.events.close(final)
	s.log.Info("Session closed").Int("versions", final.Len).Send()
}

func isBlank(c content.Content) bool {
	for _, v := range c.Fields {
		if v != "" {
			return false
		}
	}
	for _, p := range c.Body {
		if p != "" {
			return false
		}
	}
	return true
}
