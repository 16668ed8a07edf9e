package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"composer-backend/internal/compose"
	"composer-backend/internal/gateway"
	"composer-backend/internal/models"
	"composer-backend/internal/session"
)

// TimelineHandler is the thin HTTP surface over timeline sessions. One
// session per project, created lazily on first touch and cached; the engine
// assumes a single active editor per project.
type TimelineHandler struct {
	Gateway gateway.Gateway
	Log     *zap.SugaredLogger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
}

func New(gw gateway.Gateway, log *zap.SugaredLogger) *TimelineHandler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TimelineHandler{
		Gateway:  gw,
		Log:      log,
		sessions: make(map[uuid.UUID]*session.Session),
	}
}

// Register mounts the timeline routes on r (normally the /api/v1 subrouter).
func (h *TimelineHandler) Register(r *mux.Router) {
	r.HandleFunc("/projects/{id}/timeline", h.GetTimeline).Methods("GET")
	r.HandleFunc("/projects/{id}/timeline/suggestions/{suggestionId}", h.AddSuggestion).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/segments/{segmentId}", h.AddTranscriptSegment).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/clips/{clipId}", h.RemoveClip).Methods("DELETE")
	r.HandleFunc("/projects/{id}/timeline/clips/{clipId}/trim", h.TrimClip).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/clips/{clipId}/split", h.SplitClip).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/clips/{clipId}/merge-next", h.MergeClipWithNext).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/reorder", h.ReorderClip).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/projects/{id}/timeline/error/clear", h.ClearError).Methods("POST")
	r.HandleFunc("/projects/{id}/transcript/search", h.SearchTranscript).Methods("GET")
}

// session returns the cached session for the project, creating it on first
// use. A session that failed to load is not cached so the next request
// retries the fetch.
func (h *TimelineHandler) session(r *http.Request) (*session.Session, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return nil, errBadProjectID
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		return s, nil
	}

	s, err := session.New(r.Context(), h.Gateway, id, h.Log)
	if err != nil {
		return s, err
	}
	h.sessions[id] = s
	return s, nil
}

var errBadProjectID = errors.New("invalid project id")

// FlushAll waits for every cached session to finish persisting. Called during
// shutdown so background saves are not cut off mid-flight.
func (h *TimelineHandler) FlushAll(ctx context.Context) error {
	h.mu.Lock()
	sessions := make([]*session.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

type timelineResponse struct {
	State          session.State            `json:"state"`
	ErrorCode      models.Code              `json:"error_code,omitempty"`
	UnsavedChanges bool                     `json:"unsaved_changes"`
	Searching      bool                     `json:"searching,omitempty"`
	Snapshot       *models.TimelineSnapshot `json:"snapshot"`
}

func (h *TimelineHandler) writeSession(w http.ResponseWriter, s *session.Session) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(timelineResponse{
		State:          s.State(),
		ErrorCode:      s.ErrorCode(),
		UnsavedChanges: s.HasUnsavedChanges(),
		Searching:      s.Searching(),
		Snapshot:       s.Snapshot(),
	})
}

func (h *TimelineHandler) writeError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}
	if code, ok := models.CodeOf(err); ok {
		body["code"] = string(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForError(err))
	json.NewEncoder(w).Encode(body)
}

// statusForError maps the stable error taxonomy onto HTTP statuses:
// user-correctable validation failures are 409/422, persistence failures are
// 502, bad references are 404.
func statusForError(err error) int {
	if code, ok := models.CodeOf(err); ok {
		switch code {
		case models.CodeClipOverlap, models.CodeMaxDurationExceeded, models.CodeMergeIncompatible:
			return http.StatusConflict
		case models.CodeClipTooShort, models.CodeInvalidSplitPoint:
			return http.StatusUnprocessableEntity
		case models.CodeSaveFailed, models.CodeLoadFailed, models.CodeTranscriptSearchFailed:
			return http.StatusBadGateway
		}
	}
	switch {
	case errors.Is(err, compose.ErrClipNotFound),
		errors.Is(err, compose.ErrSuggestionNotFound),
		errors.Is(err, compose.ErrSegmentNotFound),
		errors.Is(err, gateway.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, compose.ErrSuggestionAlreadyPlaced):
		return http.StatusConflict
	case errors.Is(err, compose.ErrIndexOutOfRange), errors.Is(err, errBadProjectID):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ── Handlers ──────────────────────────────────────────────────────────────────

func (h *TimelineHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, s)
}

func (h *TimelineHandler) AddSuggestion(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		id, err := uuid.Parse(mux.Vars(r)["suggestionId"])
		if err != nil {
			return compose.ErrSuggestionNotFound
		}
		return s.AddSuggestion(id)
	})
}

func (h *TimelineHandler) AddTranscriptSegment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		id, err := uuid.Parse(mux.Vars(r)["segmentId"])
		if err != nil {
			return compose.ErrSegmentNotFound
		}
		return s.AddTranscriptSegment(id)
	})
}

func (h *TimelineHandler) RemoveClip(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		id, err := uuid.Parse(mux.Vars(r)["clipId"])
		if err != nil {
			return compose.ErrClipNotFound
		}
		return s.RemoveClip(id)
	})
}

func (h *TimelineHandler) TrimClip(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		id, err := uuid.Parse(mux.Vars(r)["clipId"])
		if err != nil {
			return compose.ErrClipNotFound
		}
		var body struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return errBadBody
		}
		return s.TrimClip(id, body.Start, body.End)
	})
}

func (h *TimelineHandler) SplitClip(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		id, err := uuid.Parse(mux.Vars(r)["clipId"])
		if err != nil {
			return compose.ErrClipNotFound
		}
		var body struct {
			At float64 `json:"at"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return errBadBody
		}
		return s.SplitClip(id, body.At)
	})
}

func (h *TimelineHandler) MergeClipWithNext(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		id, err := uuid.Parse(mux.Vars(r)["clipId"])
		if err != nil {
			return compose.ErrClipNotFound
		}
		return s.MergeClipWithNext(id)
	})
}

func (h *TimelineHandler) ReorderClip(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		var body struct {
			OldIndex int `json:"old_index"`
			NewIndex int `json:"new_index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return errBadBody
		}
		return s.ReorderClip(body.OldIndex, body.NewIndex)
	})
}

func (h *TimelineHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *session.Session) error {
		return s.Refresh(r.Context())
	})
}

func (h *TimelineHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	s.ClearError()
	h.writeSession(w, s)
}

func (h *TimelineHandler) SearchTranscript(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := s.SearchTranscript(r.Context(), r.URL.Query().Get("q")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, s)
}

var errBadBody = errors.New("invalid request body")

// mutate runs one session operation and writes either the refreshed session
// envelope or the mapped error.
func (h *TimelineHandler) mutate(w http.ResponseWriter, r *http.Request, op func(*session.Session) error) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := op(s); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSession(w, s)
}
