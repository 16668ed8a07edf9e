package gateway

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"composer-backend/internal/models"
)

// OfflineFallback wraps another gateway and substitutes a deterministic
// placeholder payload when a fetch fails, so the editor still opens with
// usable data during local development or a backend outage. Placeholder
// payloads carry metadata.offline=true so callers can tell them apart from
// server data. Saves and searches are passed through untouched; a failed
// save must surface as a failure, never a silent no-op.
type OfflineFallback struct {
	inner Gateway
	log   *zap.SugaredLogger
}

func NewOfflineFallback(inner Gateway, log *zap.SugaredLogger) *OfflineFallback {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OfflineFallback{inner: inner, log: log}
}

func (o *OfflineFallback) FetchProjectTimeline(ctx context.Context, projectID uuid.UUID) (*ProjectPayload, error) {
	payload, err := o.inner.FetchProjectTimeline(ctx, projectID)
	if err == nil {
		return payload, nil
	}
	o.log.Warnw("timeline fetch failed, serving offline placeholder",
		"project_id", projectID.String(), "error", err)
	return PlaceholderPayload(projectID), nil
}

func (o *OfflineFallback) SaveTimeline(ctx context.Context, projectID uuid.UUID, timeline []models.TimelineClip, suggestions []models.SceneSuggestion) (*ProjectPayload, error) {
	return o.inner.SaveTimeline(ctx, projectID, timeline, suggestions)
}

func (o *OfflineFallback) SearchTranscript(ctx context.Context, projectID uuid.UUID, query string) ([]models.TranscriptSegment, error) {
	return o.inner.SearchTranscript(ctx, projectID, query)
}

// Fixed ids keep the placeholder fully deterministic across restarts so tests
// and the UI see identical data every time.
var (
	placeholderSuggestionHook    = uuid.MustParse("6f1c9f6e-0001-4a7e-9b5d-7c1f3a2b4c01")
	placeholderSuggestionInsight = uuid.MustParse("6f1c9f6e-0002-4a7e-9b5d-7c1f3a2b4c02")
	placeholderSuggestionCTA     = uuid.MustParse("6f1c9f6e-0003-4a7e-9b5d-7c1f3a2b4c03")
)

// PlaceholderPayload synthesizes the offline payload for a project: an empty
// timeline, a fixed suggestion set, and default metadata flagged as offline.
func PlaceholderPayload(projectID uuid.UUID) *ProjectPayload {
	return &ProjectPayload{
		Suggestions: []models.SceneSuggestion{
			{
				ID:           placeholderSuggestionHook,
				Title:        "Opening hook",
				Description:  "High-energy intro moment to lead the edit with.",
				SourceID:     "local-source-a",
				Start:        4,
				End:          16,
				QualityScore: 0.92,
				Confidence:   0.88,
			},
			{
				ID:           placeholderSuggestionInsight,
				Title:        "Key insight",
				Description:  "The main point of the recording, well articulated.",
				SourceID:     "local-source-a",
				Start:        42,
				End:          63,
				QualityScore: 0.87,
				Confidence:   0.9,
			},
			{
				ID:           placeholderSuggestionCTA,
				Title:        "Closing call to action",
				Description:  "Wrap-up line that works as an outro.",
				SourceID:     "local-source-b",
				Start:        8,
				End:          19,
				QualityScore: 0.78,
				Confidence:   0.82,
			},
		},
		Metadata: models.ProjectMetadata{
			ProjectID:   projectID,
			Title:       "Untitled project",
			MaxDuration: 600,
			Owner:       "local",
			Status:      models.ProjectStatusDraft,
			Offline:     true,
		},
	}
}
