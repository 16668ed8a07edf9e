package compose

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"composer-backend/internal/models"
	"composer-backend/internal/validation"
)

// SplitClip cuts a clip in two at splitPoint (seconds, source time). The
// first half keeps the clip's id and suggestion link; the second half gets a
// fresh id and a severed link, since it is no longer a whole-suggestion
// materialization. Both halves keep the original trim bounds so either can be
// trimmed back out to the full source range later.
func SplitClip(snap *models.TimelineSnapshot, clipID uuid.UUID, splitPoint float64) (*models.TimelineSnapshot, error) {
	idx := snap.ClipIndex(clipID)
	if idx < 0 {
		return nil, ErrClipNotFound
	}
	clip := snap.Clips[idx]

	if splitPoint <= clip.Start || splitPoint >= clip.End {
		return nil, models.NewError(models.CodeInvalidSplitPoint)
	}
	if splitPoint-clip.Start < validation.MinClipDuration || clip.End-splitPoint < validation.MinClipDuration {
		return nil, models.NewError(models.CodeClipTooShort)
	}

	first := clip
	first.End = splitPoint

	second := clip
	second.ID = uuid.New()
	second.Start = splitPoint
	second.OriginSuggestionID = uuid.Nil

	clips := slices.Clone(snap.Clips)
	clips[idx] = first
	clips = slices.Insert(clips, idx+1, second)
	return snap.WithClips(clips), nil
}

// MergeClipWithNext joins a clip with its immediate successor in timeline
// order. Both must reference the same source; otherwise, or when the clip is
// last, the merge is incompatible. The result spans min(start) to max(end),
// its scores are the duration-weighted average of the inputs, and its
// suggestion lineage is severed (any attached suggestions are detached).
func MergeClipWithNext(snap *models.TimelineSnapshot, clipID uuid.UUID) (*models.TimelineSnapshot, error) {
	idx := snap.ClipIndex(clipID)
	if idx < 0 {
		return nil, ErrClipNotFound
	}
	if idx == len(snap.Clips)-1 {
		return nil, models.NewError(models.CodeMergeIncompatible)
	}

	a, b := snap.Clips[idx], snap.Clips[idx+1]
	if a.SourceID != b.SourceID {
		return nil, models.NewError(models.CodeMergeIncompatible)
	}

	merged := models.TimelineClip{
		ID:            a.ID,
		ProjectID:     a.ProjectID,
		SourceID:      a.SourceID,
		Name:          a.Name,
		SourceKind:    a.SourceKind,
		Start:         math.Min(a.Start, b.Start),
		End:           math.Max(a.End, b.End),
		OriginalStart: math.Min(a.OriginalStart, b.OriginalStart),
		OriginalEnd:   math.Max(a.OriginalEnd, b.OriginalEnd),
		QualityScore:  weightedScore(a.QualityScore, a.Duration(), b.QualityScore, b.Duration()),
		Confidence:    weightedScore(a.Confidence, a.Duration(), b.Confidence, b.Duration()),
	}

	// Merging two non-adjacent ranges can swallow source time sitting between
	// them, so the merged span is re-checked against the other clips and the
	// budget.
	if err := validation.CheckOverlap(snap.Clips, merged, b.ID); err != nil {
		return nil, err
	}

	clips := slices.Clone(snap.Clips)
	clips[idx] = merged
	clips = slices.Delete(clips, idx+1, idx+2)
	if err := validation.CheckBudget(clips, snap.Metadata); err != nil {
		return nil, err
	}

	return snap.WithClips(clips).WithSuggestions(detachClip(snap.Suggestions, a.ID, b.ID)), nil
}

// weightedScore is the duration-weighted average of two scores, falling back
// to the arithmetic mean when both durations are zero.
func weightedScore(s1, d1, s2, d2 float64) float64 {
	if d1+d2 == 0 {
		return (s1 + s2) / 2
	}
	return (s1*d1 + s2*d2) / (d1 + d2)
}
