package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"composer-backend/internal/gateway"
	"composer-backend/internal/models"
)

// saveLoop is the session's single persistence worker. It drains the dirty
// flag in a loop: each pass saves the latest snapshot, so edits layered on
// top of an in-flight save coalesce into the next pass instead of racing a
// second save. Exactly one saveLoop runs at a time (guarded by s.saving).
func (s *Session) saveLoop() {
	for {
		s.mu.Lock()
		if !s.dirty {
			s.saving = false
			if s.state == StateSaving {
				s.state = StateReady
			}
			close(s.idle)
			s.mu.Unlock()
			return
		}
		s.dirty = false
		snap := s.current
		seq, loadSeq := s.seq, s.loadSeq
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		resp, err := s.gw.SaveTimeline(ctx, s.projectID, snap.Clips, snap.Suggestions)
		cancel()

		s.mu.Lock()
		if err != nil {
			// Roll back to the last acknowledged snapshot, including any
			// edits layered while this save was in flight; they were built on
			// data the server never accepted.
			s.log.Errorw("timeline save failed, rolling back", "error", err)
			s.current = s.persisted.WithTranscriptResults(s.current.TranscriptResults)
			s.dirty = false
			s.errCode = models.CodeSaveFailed
			s.unsaved = false
			s.pending = make(map[uuid.UUID]struct{})
			s.mu.Unlock()
			continue
		}

		reconciled := reconcile(snap, resp)
		if s.loadSeq == loadSeq {
			s.persisted = reconciled
		}
		if s.seq == seq && s.loadSeq == loadSeq {
			// No edits or refresh layered meanwhile: adopt the reconciled
			// snapshot and clear the unsaved markers, keeping whatever
			// transcript results a concurrent search produced. Otherwise the
			// newer snapshot stays; the next pass persists it.
			s.current = reconciled.WithTranscriptResults(s.current.TranscriptResults)
			s.unsaved = false
			s.pending = make(map[uuid.UUID]struct{})
		}
		s.mu.Unlock()
	}
}

// reconcile folds the server's save response into the optimistic snapshot:
// non-empty echoed collections win over the optimistic ones, server metadata
// wins when present, and last_saved_at comes from the server or is stamped
// locally.
func reconcile(optimistic *models.TimelineSnapshot, resp *gateway.ProjectPayload) *models.TimelineSnapshot {
	next := optimistic

	var savedAt *time.Time
	if resp != nil {
		if len(resp.Timeline) > 0 {
			next = next.WithClips(resp.Timeline)
		}
		if len(resp.Suggestions) > 0 {
			next = next.WithSuggestions(resp.Suggestions)
		}
		meta := next.Metadata
		if resp.Metadata.ProjectID != uuid.Nil {
			meta = resp.Metadata
		}
		savedAt = resp.Metadata.LastSavedAt
		if savedAt == nil {
			now := time.Now().UTC()
			savedAt = &now
		}
		meta.LastSavedAt = savedAt
		next = next.WithMetadata(meta)
	} else {
		meta := next.Metadata
		now := time.Now().UTC()
		meta.LastSavedAt = &now
		next = next.WithMetadata(meta)
	}
	return next
}

// Flush blocks until no save is in flight and no dirty snapshot is waiting.
// Used by shutdown and tests; during normal editing nothing calls it.
func (s *Session) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.saving {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
