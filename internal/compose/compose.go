// Package compose implements the timeline operations as pure transformations:
// every function takes a snapshot plus parameters and returns either a new
// snapshot or an error, and never modifies its input. A rejected operation is
// non-destructive: the caller still holds the unchanged snapshot.
//
// Rejections a user can correct (overlap, budget, too short, bad split point,
// incompatible merge) carry a stable models.Code. Malformed references such
// as unknown ids or out-of-range indexes are caller bugs and surface as the
// sentinel errors below instead.
package compose

import (
	"errors"

	"github.com/google/uuid"

	"composer-backend/internal/models"
)

var (
	ErrClipNotFound            = errors.New("clip not found")
	ErrSuggestionNotFound      = errors.New("suggestion not found")
	ErrSegmentNotFound         = errors.New("transcript segment not found")
	ErrSuggestionAlreadyPlaced = errors.New("suggestion already placed on the timeline")
	ErrIndexOutOfRange         = errors.New("reorder index out of range")
)

// attachSuggestion returns a copy of suggestions with the given suggestion
// pointing at clipID.
func attachSuggestion(suggestions []models.SceneSuggestion, suggestionID, clipID uuid.UUID) []models.SceneSuggestion {
	out := make([]models.SceneSuggestion, len(suggestions))
	copy(out, suggestions)
	for i := range out {
		if out[i].ID == suggestionID {
			out[i].AttachedClipID = clipID
		}
	}
	return out
}

// detachClip returns a copy of suggestions with every reference to clipIDs
// cleared. The suggestions themselves are never removed.
func detachClip(suggestions []models.SceneSuggestion, clipIDs ...uuid.UUID) []models.SceneSuggestion {
	out := make([]models.SceneSuggestion, len(suggestions))
	copy(out, suggestions)
	for i := range out {
		for _, id := range clipIDs {
			if out[i].AttachedClipID == id {
				out[i].AttachedClipID = uuid.Nil
			}
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
