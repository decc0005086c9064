package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/nainya/applydesk/internal/editor"
	"github.com/nainya/applydesk/pkg/backend"
	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/history"
	"github.com/nainya/applydesk/pkg/inflight"
	"github.com/nainya/applydesk/pkg/persist"
)

const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps editor and backend errors onto HTTP status codes
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, editor.ErrSessionNotFound), errors.Is(err, history.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, editor.ErrInvalidIdentity),
		errors.Is(err, content.ErrUnknownKind),
		errors.Is(err, content.ErrUnknownField),
		errors.Is(err, content.ErrKindMismatch),
		errors.Is(err, content.ErrParagraphIndex):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrStaleIssues), errors.Is(err, inflight.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNoBackend):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error(), Message: backend.UserMessage(err)}
	if status >= http.StatusInternalServerError {
		s.log.Warn("Request failed").
			Str("request_id", RequestID(r.Context())).
			Err(err).
			Send()
	}
	writeJSON(w, status, resp)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return &badRequest{err}
	}
	return nil
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sess, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func indexVar(r *http.Request, name string) int {
	n, _ := strconv.Atoi(mux.Vars(r)[name])
	return n
}

// respond writes the session state after a successful mutation
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *editor.Session, err error) {
	if err != nil {
		var bad *badRequest
		if errors.As(err, &bad) {
			writeError(w, http.StatusBadRequest, bad.Error())
			return
		}
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.manager.List()),
	})
}

type openRequest struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := content.ParseKind(req.Kind)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, created, err := s.manager.Open(persist.Identity{Kind: kind, ID: req.ID})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sess.State())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions := s.manager.List()
	out := make([]editor.State, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.State())
	}
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Close(mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type valueRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req valueRequest
	err := decode(r, &req)
	if err == nil {
		err = sess.SetField(mux.Vars(r)["name"], req.Value)
	}
	s.respond(w, r, sess, err)
}

func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req valueRequest
	err := decode(r, &req)
	if err == nil {
		err = sess.SetText(mux.Vars(r)["ref"], req.Value)
	}
	s.respond(w, r, sess, err)
}

type bodyRequest struct {
	Paragraphs []string `json:"paragraphs"`
}

func (s *Server) handleSetBody(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req bodyRequest
	err := decode(r, &req)
	if err == nil {
		err = sess.SetBody(req.Paragraphs)
	}
	s.respond(w, r, sess, err)
}

type insertRequest struct {
	At   *int   `json:"at"`
	Text string `json:"text"`
}

func (s *Server) handleInsertParagraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req insertRequest
	err := decode(r, &req)
	if err == nil {
		at := len(sess.State().Content.Body)
		if req.At != nil {
			at = *req.At
		}
		err = sess.InsertParagraph(at, req.Text)
	}
	s.respond(w, r, sess, err)
}

func (s *Server) handleRemoveParagraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respond(w, r, sess, sess.RemoveParagraph(indexVar(r, "index")))
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s *Server) handleMoveParagraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req moveRequest
	err := decode(r, &req)
	if err == nil {
		err = sess.MoveParagraph(req.From, req.To)
	}
	s.respond(w, r, sess, err)
}

type moveResponse struct {
	Moved bool         `json:"moved"`
	State editor.State `json:"state"`
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		_, moved := sess.Undo()
		writeJSON(w, http.StatusOK, moveResponse{Moved: moved, State: sess.State()})
	}
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		_, moved := sess.Redo()
		writeJSON(w, http.StatusOK, moveResponse{Moved: moved, State: sess.State()})
	}
}

// versionSummary lists a snapshot without its content
type versionSummary struct {
	Index   int       `json:"index"`
	ID      string    `json:"id"`
	Label   string    `json:"label"`
	At      time.Time `json:"timestamp"`
	Current bool      `json:"current"`
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st := sess.State()
	snaps := sess.Versions()
	out := make([]versionSummary, len(snaps))
	for i, snap := range snaps {
		out[i] = versionSummary{
			Index:   i,
			ID:      snap.ID,
			Label:   snap.Label,
			At:      snap.Timestamp,
			Current: i == st.Cursor,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"position": st.Position,
		"cursor":   st.Cursor,
		"max":      st.Max,
		"versions": out,
	})
}

type snapshotRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req snapshotRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	index, err := sess.Snapshot(req.Label)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": index, "state": sess.State()})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Version(indexVar(r, "index"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	_, err := sess.Restore(indexVar(r, "index"))
	s.respond(w, r, sess, err)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	diff, err := sess.Diff(indexVar(r, "index"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": diff})
}

type keyRequest struct {
	Combo string `json:"combo"`
}

type keyResponse struct {
	Handled bool          `json:"handled"`
	Action  editor.Action `json:"action,omitempty"`
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req keyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, handled := sess.HandleKey(s.manager.Keys(), req.Combo)
	writeJSON(w, http.StatusOK, keyResponse{Handled: handled, Action: action})
}

// handleGlobalKey delivers a key press to the most recently opened session
func (s *Server) handleGlobalKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, handled := s.manager.Keys().Dispatch(req.Combo)
	writeJSON(w, http.StatusOK, keyResponse{Handled: handled, Action: action})
}

type grammarRequest struct {
	Ref string `json:"ref"`
}

func (s *Server) handleGrammar(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req grammarRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	issues, err := sess.CheckGrammar(r.Context(), req.Ref)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (s *Server) handleGrammarFix(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, err := sess.ApplyFixes()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": n, "state": sess.State()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req backend.GenerateRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if _, err := sess.Generate(r.Context(), req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleLatex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	src, err := sess.Latex()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-tex; charset=utf-8")
	io.WriteString(w, src)
}

// handlePreview returns the compiled PDF. ?refresh=1 recompiles first.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	p, err := sess.Preview(r.Context(), refresh)
	if !p.Ready() {
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		w.Header().Set("X-Preview-Stale", "true")
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Last-Modified", p.CompiledAt.UTC().Format(http.TimeFormat))
	w.Write(p.PDF)
}
