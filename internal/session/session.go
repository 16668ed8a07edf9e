// Package session implements the timeline session: the single stateful owner
// of a project's current snapshot. Operations validate and apply synchronously
// through the compose package, publish the optimistic snapshot immediately,
// and hand persistence to a background saver that coalesces rapid edits and
// rolls back on failure.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"composer-backend/internal/compose"
	"composer-backend/internal/gateway"
	"composer-backend/internal/models"
)

// State is the session lifecycle. Loading and LoadFailed only occur around
// construction and refresh; Ready and Saving alternate for the session's
// working life.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSaving     State = "saving"
	StateLoadFailed State = "load_failed"
)

// ErrNotReady is returned by mutating operations when the session never
// finished loading.
var ErrNotReady = errors.New("session is not ready")

const defaultSaveTimeout = 10 * time.Second

// Session serializes all mutations of one project's timeline. The snapshot it
// publishes is immutable and safe to hand to any number of readers; only the
// session's own pointer to "current" ever moves.
type Session struct {
	gw        gateway.Gateway
	log       *zap.SugaredLogger
	projectID uuid.UUID

	saveTimeout time.Duration

	mu          sync.Mutex
	state       State
	current     *models.TimelineSnapshot
	persisted   *models.TimelineSnapshot // last server-acknowledged snapshot; rollback target
	errCode     models.Code
	unsaved     bool
	searching   bool
	searchQuery string
	pending     map[uuid.UUID]struct{} // clip ids touched since the last acknowledged save

	seq     uint64 // bumped on every accepted timeline mutation
	loadSeq uint64 // bumped when a refresh replaces the snapshot wholesale

	dirty  bool          // current differs from what the saver last picked up
	saving bool          // saver goroutine running
	idle   chan struct{} // closed when the saver drains
}

// New constructs a session and fetches the project's timeline. On fetch
// failure the session is returned in LoadFailed with the loadFailed code set;
// all mutating operations then reject with ErrNotReady.
func New(ctx context.Context, gw gateway.Gateway, projectID uuid.UUID, log *zap.SugaredLogger) (*Session, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Session{
		gw:          gw,
		log:         log.With("project_id", projectID.String()),
		projectID:   projectID,
		saveTimeout: defaultSaveTimeout,
		state:       StateLoading,
		pending:     make(map[uuid.UUID]struct{}),
	}

	payload, err := gw.FetchProjectTimeline(ctx, projectID)
	if err != nil {
		s.state = StateLoadFailed
		s.errCode = models.CodeLoadFailed
		s.log.Errorw("timeline load failed", "error", err)
		return s, models.WrapError(models.CodeLoadFailed, err)
	}

	snap := snapshotFromPayload(payload)
	s.current = snap
	s.persisted = snap
	s.state = StateReady
	return s, nil
}

func snapshotFromPayload(p *gateway.ProjectPayload) *models.TimelineSnapshot {
	return models.NewSnapshot(p.Timeline, p.Suggestions, p.Metadata)
}

// ── Operations ────────────────────────────────────────────────────────────────

func (s *Session) AddSuggestion(suggestionID uuid.UUID) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.AddSuggestion(cur, suggestionID)
	})
}

func (s *Session) AddTranscriptSegment(segmentID uuid.UUID) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.AddTranscriptSegment(cur, segmentID)
	})
}

func (s *Session) RemoveClip(clipID uuid.UUID) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.RemoveClip(cur, clipID)
	})
}

func (s *Session) ReorderClip(oldIndex, newIndex int) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.ReorderClip(cur, oldIndex, newIndex)
	})
}

func (s *Session) TrimClip(clipID uuid.UUID, newStart, newEnd float64) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.TrimClip(cur, clipID, newStart, newEnd)
	})
}

func (s *Session) SplitClip(clipID uuid.UUID, splitPoint float64) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.SplitClip(cur, clipID, splitPoint)
	})
}

func (s *Session) MergeClipWithNext(clipID uuid.UUID) error {
	return s.apply(func(cur *models.TimelineSnapshot) (*models.TimelineSnapshot, error) {
		return compose.MergeClipWithNext(cur, clipID)
	})
}

// apply runs one compose operation under the session lock. On rejection the
// snapshot is untouched and the code (if any) is attached; on acceptance the
// optimistic snapshot is published and the saver is kicked.
func (s *Session) apply(op func(*models.TimelineSnapshot) (*models.TimelineSnapshot, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady && s.state != StateSaving {
		return ErrNotReady
	}

	next, err := op(s.current)
	if err != nil {
		if code, ok := models.CodeOf(err); ok {
			s.errCode = code
		}
		return err
	}
	if next == s.current {
		// No-op (e.g. reorder to the same position).
		return nil
	}
	s.publishLocked(next)
	return nil
}

// publishLocked makes next the current snapshot and ensures a saver is
// running. Caller holds s.mu.
func (s *Session) publishLocked(next *models.TimelineSnapshot) {
	s.markPendingLocked(next)
	s.seq++
	s.current = next
	s.unsaved = true
	s.dirty = true
	s.state = StateSaving
	if !s.saving {
		s.saving = true
		s.idle = make(chan struct{})
		go s.saveLoop()
	}
}

// markPendingLocked records which clips the incoming snapshot adds or alters
// relative to the current one.
func (s *Session) markPendingLocked(next *models.TimelineSnapshot) {
	before := make(map[uuid.UUID]models.TimelineClip, len(s.current.Clips))
	for _, c := range s.current.Clips {
		before[c.ID] = c
	}
	for _, c := range next.Clips {
		if prev, ok := before[c.ID]; !ok || prev != c {
			s.pending[c.ID] = struct{}{}
		}
	}
}

// ── Non-mutating operations ───────────────────────────────────────────────────

// Refresh re-fetches the project from the gateway. A failed refresh keeps the
// current snapshot (never discard data the user can still see) and attaches
// loadFailed.
func (s *Session) Refresh(ctx context.Context) error {
	payload, err := s.gw.FetchProjectTimeline(ctx, s.projectID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.errCode = models.CodeLoadFailed
		if s.current == nil {
			s.state = StateLoadFailed
		}
		s.log.Errorw("timeline refresh failed", "error", err)
		return models.WrapError(models.CodeLoadFailed, err)
	}

	snap := snapshotFromPayload(payload)
	s.loadSeq++
	s.current = snap
	s.persisted = snap
	s.unsaved = false
	s.pending = make(map[uuid.UUID]struct{})
	if !s.saving {
		s.state = StateReady
	}
	return nil
}

// SearchTranscript replaces the snapshot's transient transcript results. An
// empty query clears them without touching the gateway. Search runs outside
// the save pipeline and never dirties the timeline.
func (s *Session) SearchTranscript(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current != nil {
			s.current = s.current.WithTranscriptResults(nil)
		}
		s.searchQuery = ""
		return nil
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.searching = true
	s.searchQuery = query
	s.mu.Unlock()

	segments, err := s.gw.SearchTranscript(ctx, s.projectID, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.searching = false
	if err != nil {
		s.errCode = models.CodeTranscriptSearchFailed
		s.log.Errorw("transcript search failed", "query", query, "error", err)
		return models.WrapError(models.CodeTranscriptSearchFailed, err)
	}
	s.current = s.current.WithTranscriptResults(segments)
	return nil
}

// ClearError clears the attached error code. No other side effects.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errCode = ""
}

// ── Accessors ─────────────────────────────────────────────────────────────────

// Snapshot returns the current snapshot. The value is immutable; callers may
// keep it as long as they like.
func (s *Session) Snapshot() *models.TimelineSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ErrorCode() models.Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errCode
}

func (s *Session) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsaved
}

func (s *Session) Searching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searching
}

func (s *Session) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery
}

// PendingClipIDs lists clips touched since the last acknowledged save.
func (s *Session) PendingClipIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	return ids
}
