package models

import (
	"github.com/google/uuid"
)

// SourceKind records where a placed clip came from.
type SourceKind string

const (
	SourceKindAI         SourceKind = "ai"
	SourceKindTranscript SourceKind = "transcript"
	SourceKindManual     SourceKind = "manual"
)

// TimelineClip is a placed segment of the output timeline. A clip is a value:
// once it is part of a published snapshot it is never written to again, editing
// produces a replacement clip in a new snapshot.
type TimelineClip struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  uuid.UUID  `json:"project_id"`
	SourceID   string     `json:"source_id"`
	Name       string     `json:"name"`
	SourceKind SourceKind `json:"source_kind"`

	// Start/End are offsets in seconds from the start of the source media,
	// end exclusive. OriginalStart/OriginalEnd are the bounds before any
	// trimming and act as the trim limits.
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	OriginalStart float64 `json:"original_start"`
	OriginalEnd   float64 `json:"original_end"`

	QualityScore float64 `json:"quality_score"`
	Confidence   float64 `json:"confidence"`

	// OriginSuggestionID is a weak back-reference to the suggestion this clip
	// was materialized from, resolved by lookup in the snapshot's suggestion
	// set. uuid.Nil means the clip has no suggestion lineage (manual clips,
	// merge results, the second half of a split).
	OriginSuggestionID uuid.UUID `json:"origin_suggestion_id"`
	TranscriptPreview  string    `json:"transcript_preview,omitempty"`
}

// Duration is the placed length of the clip in seconds.
func (c TimelineClip) Duration() float64 { return c.End - c.Start }

// Overlaps reports whether the half-open ranges [c.Start, c.End) and
// [o.Start, o.End) intersect. Source ids are not compared here.
func (c TimelineClip) Overlaps(o TimelineClip) bool {
	return c.Start < o.End && o.Start < c.End
}
