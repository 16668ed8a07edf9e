package compose

import (
	"slices"

	"github.com/google/uuid"

	"composer-backend/internal/models"
	"composer-backend/internal/validation"
)

// ReorderClip moves the clip at oldIndex so it lands where newIndex pointed in
// the pre-move sequence. newIndex is an insertion point and may equal
// len(clips) to mean "after the last clip"; because the clip is removed before
// it is reinserted, a target past the source shifts down by one.
//
// Reordering never touches start/end, so the overlap and duration invariants
// cannot be affected and only the index bounds are checked.
func ReorderClip(snap *models.TimelineSnapshot, oldIndex, newIndex int) (*models.TimelineSnapshot, error) {
	n := len(snap.Clips)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex > n {
		return nil, ErrIndexOutOfRange
	}

	target := newIndex
	if newIndex > oldIndex {
		target = newIndex - 1
	}
	if target == oldIndex {
		return snap, nil
	}

	clips := slices.Clone(snap.Clips)
	moved := clips[oldIndex]
	clips = slices.Delete(clips, oldIndex, oldIndex+1)
	clips = slices.Insert(clips, target, moved)
	return snap.WithClips(clips), nil
}

// TrimClip adjusts a clip's bounds. Inputs are clamped to the clip's original
// bounds; a too-short result is widened once to the minimum by extending the
// end (sliding the window back if that runs past the original end). The trim
// is rejected if the clip would overlap another clip of the same source or if
// widening pushed the total over the duration budget.
func TrimClip(snap *models.TimelineSnapshot, clipID uuid.UUID, newStart, newEnd float64) (*models.TimelineSnapshot, error) {
	idx := snap.ClipIndex(clipID)
	if idx < 0 {
		return nil, ErrClipNotFound
	}
	clip := snap.Clips[idx]

	start := clamp(newStart, clip.OriginalStart, clip.OriginalEnd)
	end := clamp(newEnd, clip.OriginalStart, clip.OriginalEnd)
	if end < start {
		end = start
	}

	if end-start < validation.MinClipDuration {
		end = start + validation.MinClipDuration
		if end > clip.OriginalEnd {
			end = clip.OriginalEnd
			start = end - validation.MinClipDuration
		}
		if start < clip.OriginalStart {
			// The original bounds cannot fit a minimum-length clip.
			return nil, models.NewError(models.CodeClipTooShort)
		}
	}

	trimmed := clip
	trimmed.Start = start
	trimmed.End = end

	if err := validation.CheckMinDuration(trimmed); err != nil {
		return nil, err
	}
	if err := validation.CheckOverlap(snap.Clips, trimmed, uuid.Nil); err != nil {
		return nil, err
	}

	clips := slices.Clone(snap.Clips)
	clips[idx] = trimmed
	if err := validation.CheckBudget(clips, snap.Metadata); err != nil {
		return nil, err
	}
	return snap.WithClips(clips), nil
}
