// Package validation holds the pure invariant predicates the composition
// engine runs against every candidate timeline before accepting it. Each
// check is deterministic and side-effect free: same inputs, same verdict.
package validation

import (
	"github.com/google/uuid"

	"composer-backend/internal/models"
)

// MinClipDuration is the shortest clip the timeline accepts, in seconds.
const MinClipDuration = 2.0

// epsilon absorbs float64 rounding from summing and shifting second offsets;
// the engine only promises millisecond granularity.
const epsilon = 1e-6

// CheckOverlap rejects candidate if it intersects any clip sharing its source,
// skipping the candidate itself and excludeID. Linear scan: timelines are
// tens of clips; an interval tree is the upgrade path if that ever changes.
func CheckOverlap(timeline []models.TimelineClip, candidate models.TimelineClip, excludeID uuid.UUID) error {
	for _, c := range timeline {
		if c.ID == candidate.ID || c.ID == excludeID {
			continue
		}
		if c.SourceID != candidate.SourceID {
			continue
		}
		if c.Overlaps(candidate) {
			return models.NewError(models.CodeClipOverlap)
		}
	}
	return nil
}

// CheckMinDuration rejects clips shorter than MinClipDuration.
func CheckMinDuration(clip models.TimelineClip) error {
	if clip.Duration() < MinClipDuration-epsilon {
		return models.NewError(models.CodeClipTooShort)
	}
	return nil
}

// CheckBudget compares the projected total duration of the candidate timeline
// against the project budget. A non-positive MaxDuration means unbounded.
func CheckBudget(timeline []models.TimelineClip, meta models.ProjectMetadata) error {
	if meta.MaxDuration <= 0 {
		return nil
	}
	var total float64
	for _, c := range timeline {
		total += c.Duration()
	}
	if total > meta.MaxDuration+epsilon {
		return models.NewError(models.CodeMaxDurationExceeded)
	}
	return nil
}
