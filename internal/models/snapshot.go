package models

import (
	"slices"

	"github.com/google/uuid"
)

// TimelineSnapshot is one immutable, fully consistent version of a project's
// timeline: the ordered clip sequence (timeline order, not creation order),
// the suggestion set, the last transcript search results, and the project
// metadata. Operations build a new snapshot via the With* helpers; a published
// snapshot is never written to again, so any number of readers can hold one
// without locking.
type TimelineSnapshot struct {
	Clips             []TimelineClip      `json:"clips"`
	Suggestions       []SceneSuggestion   `json:"suggestions"`
	TranscriptResults []TranscriptSegment `json:"transcript_results,omitempty"`
	Metadata          ProjectMetadata     `json:"metadata"`
}

// NewSnapshot builds a snapshot and recomputes the derived metadata fields.
func NewSnapshot(clips []TimelineClip, suggestions []SceneSuggestion, meta ProjectMetadata) *TimelineSnapshot {
	s := &TimelineSnapshot{
		Clips:       slices.Clone(clips),
		Suggestions: slices.Clone(suggestions),
		Metadata:    meta,
	}
	s.refreshDerived()
	return s
}

// TotalDuration is the sum of all placed clip durations in seconds.
func (s *TimelineSnapshot) TotalDuration() float64 {
	var total float64
	for _, c := range s.Clips {
		total += c.Duration()
	}
	return total
}

// ClipIndex returns the timeline position of the clip with the given id, or -1.
func (s *TimelineSnapshot) ClipIndex(id uuid.UUID) int {
	return slices.IndexFunc(s.Clips, func(c TimelineClip) bool { return c.ID == id })
}

func (s *TimelineSnapshot) ClipByID(id uuid.UUID) (TimelineClip, bool) {
	if i := s.ClipIndex(id); i >= 0 {
		return s.Clips[i], true
	}
	return TimelineClip{}, false
}

func (s *TimelineSnapshot) SuggestionByID(id uuid.UUID) (SceneSuggestion, bool) {
	for _, sg := range s.Suggestions {
		if sg.ID == id {
			return sg, true
		}
	}
	return SceneSuggestion{}, false
}

func (s *TimelineSnapshot) SegmentByID(id uuid.UUID) (TranscriptSegment, bool) {
	for _, seg := range s.TranscriptResults {
		if seg.ID == id {
			return seg, true
		}
	}
	return TranscriptSegment{}, false
}

// WithClips returns a copy of the snapshot holding the given clip sequence,
// with CurrentDuration and ClipCount recomputed.
func (s *TimelineSnapshot) WithClips(clips []TimelineClip) *TimelineSnapshot {
	next := s.clone()
	next.Clips = slices.Clone(clips)
	next.refreshDerived()
	return next
}

func (s *TimelineSnapshot) WithSuggestions(suggestions []SceneSuggestion) *TimelineSnapshot {
	next := s.clone()
	next.Suggestions = slices.Clone(suggestions)
	return next
}

func (s *TimelineSnapshot) WithTranscriptResults(results []TranscriptSegment) *TimelineSnapshot {
	next := s.clone()
	next.TranscriptResults = slices.Clone(results)
	return next
}

// WithMetadata returns a copy carrying meta, with the derived fields
// recomputed from the clip list so they can never drift.
func (s *TimelineSnapshot) WithMetadata(meta ProjectMetadata) *TimelineSnapshot {
	next := s.clone()
	next.Metadata = meta
	next.refreshDerived()
	return next
}

func (s *TimelineSnapshot) clone() *TimelineSnapshot {
	next := *s
	next.Clips = slices.Clone(s.Clips)
	next.Suggestions = slices.Clone(s.Suggestions)
	next.TranscriptResults = slices.Clone(s.TranscriptResults)
	return &next
}

func (s *TimelineSnapshot) refreshDerived() {
	s.Metadata.CurrentDuration = s.TotalDuration()
	s.Metadata.ClipCount = len(s.Clips)
}
