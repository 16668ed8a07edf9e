package models

import (
	"github.com/google/uuid"
)

// SceneSuggestion is an AI-proposed segment that has not (necessarily) been
// placed on the timeline yet.
type SceneSuggestion struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SourceID     string    `json:"source_id"`
	Start        float64   `json:"start"`
	End          float64   `json:"end"`
	QualityScore float64   `json:"quality_score"`
	Confidence   float64   `json:"confidence"`

	// AttachedClipID is set when the suggestion has been materialized into a
	// timeline clip. It is a weak reference: the clip is looked up by id, and
	// removing the clip clears this field rather than deleting the suggestion.
	AttachedClipID uuid.UUID `json:"attached_clip_id"`
}

// IsSelected reports whether the suggestion is currently placed.
func (s SceneSuggestion) IsSelected() bool { return s.AttachedClipID != uuid.Nil }

// TranscriptSegment is one hit from a transcript search. Segments are
// transient: they live on the snapshot only until the next search or reload.
type TranscriptSegment struct {
	ID         uuid.UUID `json:"id"`
	SourceID   string    `json:"source_id"`
	Text       string    `json:"text"`
	Start      float64   `json:"start"`
	End        float64   `json:"end"`
	Confidence float64   `json:"confidence"`
}
