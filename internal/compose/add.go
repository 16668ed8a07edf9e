package compose

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"composer-backend/internal/models"
	"composer-backend/internal/validation"
)

// AddSuggestion materializes an unplaced suggestion into a clip at the end of
// the timeline and marks the suggestion as attached. A sub-minimum candidate
// is widened once before validation.
func AddSuggestion(snap *models.TimelineSnapshot, suggestionID uuid.UUID) (*models.TimelineSnapshot, error) {
	sug, ok := snap.SuggestionByID(suggestionID)
	if !ok {
		return nil, ErrSuggestionNotFound
	}
	if sug.IsSelected() {
		return nil, ErrSuggestionAlreadyPlaced
	}

	clip := models.TimelineClip{
		ID:                 uuid.New(),
		ProjectID:          snap.Metadata.ProjectID,
		SourceID:           sug.SourceID,
		Name:               sug.Title,
		SourceKind:         models.SourceKindAI,
		Start:              sug.Start,
		End:                sug.End,
		OriginalStart:      sug.Start,
		OriginalEnd:        sug.End,
		QualityScore:       sug.QualityScore,
		Confidence:         sug.Confidence,
		OriginSuggestionID: sug.ID,
		TranscriptPreview:  sug.Description,
	}
	return placeClip(snap, clip, sug.ID)
}

// AddTranscriptSegment places a clip built from one of the current transcript
// search results. Same acceptance rules as AddSuggestion.
func AddTranscriptSegment(snap *models.TimelineSnapshot, segmentID uuid.UUID) (*models.TimelineSnapshot, error) {
	seg, ok := snap.SegmentByID(segmentID)
	if !ok {
		return nil, ErrSegmentNotFound
	}

	clip := models.TimelineClip{
		ID:                uuid.New(),
		ProjectID:         snap.Metadata.ProjectID,
		SourceID:          seg.SourceID,
		Name:              clipNameFromText(seg.Text),
		SourceKind:        models.SourceKindTranscript,
		Start:             seg.Start,
		End:               seg.End,
		OriginalStart:     seg.Start,
		OriginalEnd:       seg.End,
		QualityScore:      seg.Confidence,
		Confidence:        seg.Confidence,
		TranscriptPreview: seg.Text,
	}
	return placeClip(snap, clip, uuid.Nil)
}

// RemoveClip deletes a clip and clears any suggestion reference to it. The
// suggestion itself stays available for re-adding.
func RemoveClip(snap *models.TimelineSnapshot, clipID uuid.UUID) (*models.TimelineSnapshot, error) {
	idx := snap.ClipIndex(clipID)
	if idx < 0 {
		return nil, ErrClipNotFound
	}
	clips := slices.Delete(slices.Clone(snap.Clips), idx, idx+1)
	return snap.WithClips(clips).WithSuggestions(detachClip(snap.Suggestions, clipID)), nil
}

// placeClip appends clip to the timeline after running the invariant checks,
// recording the suggestion attachment when fromSuggestion is set.
func placeClip(snap *models.TimelineSnapshot, clip models.TimelineClip, fromSuggestion uuid.UUID) (*models.TimelineSnapshot, error) {
	clip = widenToMin(clip)
	if err := validation.CheckMinDuration(clip); err != nil {
		return nil, err
	}
	if err := validation.CheckOverlap(snap.Clips, clip, uuid.Nil); err != nil {
		return nil, err
	}
	candidate := append(slices.Clone(snap.Clips), clip)
	if err := validation.CheckBudget(candidate, snap.Metadata); err != nil {
		return nil, err
	}

	next := snap.WithClips(candidate)
	if fromSuggestion != uuid.Nil {
		next = next.WithSuggestions(attachSuggestion(next.Suggestions, fromSuggestion, clip.ID))
	}
	return next, nil
}

// widenToMin extends a sub-minimum clip to the minimum duration by pushing the
// end out. Applied exactly once; validation still runs on the result.
func widenToMin(clip models.TimelineClip) models.TimelineClip {
	if clip.Duration() >= validation.MinClipDuration {
		return clip
	}
	clip.End = clip.Start + validation.MinClipDuration
	if clip.OriginalEnd < clip.End {
		clip.OriginalEnd = clip.End
	}
	return clip
}

// clipNameFromText derives a short display name from transcript text.
func clipNameFromText(text string) string {
	name := strings.Join(strings.Fields(text), " ")
	const maxLen = 48
	if len(name) > maxLen {
		name = strings.TrimSpace(name[:maxLen]) + "…"
	}
	if name == "" {
		name = "Transcript clip"
	}
	return name
}
