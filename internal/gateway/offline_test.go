package gateway

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"composer-backend/internal/models"
)

type stubGateway struct {
	payload  *ProjectPayload
	fetchErr error
	saveErr  error
}

func (s *stubGateway) FetchProjectTimeline(ctx context.Context, projectID uuid.UUID) (*ProjectPayload, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.payload, nil
}

func (s *stubGateway) SaveTimeline(ctx context.Context, projectID uuid.UUID, timeline []models.TimelineClip, suggestions []models.SceneSuggestion) (*ProjectPayload, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	return &ProjectPayload{}, nil
}

func (s *stubGateway) SearchTranscript(ctx context.Context, projectID uuid.UUID, query string) ([]models.TranscriptSegment, error) {
	return nil, nil
}

func TestOfflineFallbackSubstitutesPlaceholder(t *testing.T) {
	inner := &stubGateway{fetchErr: errors.New("connection refused")}
	gw := NewOfflineFallback(inner, nil)
	projectID := uuid.New()

	payload, err := gw.FetchProjectTimeline(context.Background(), projectID)
	if err != nil {
		t.Fatalf("fallback must swallow the fetch error, got %v", err)
	}
	if !payload.Metadata.Offline {
		t.Fatal("placeholder payload must be flagged offline")
	}
	if payload.Metadata.ProjectID != projectID {
		t.Fatal("placeholder must carry the requested project id")
	}
	if len(payload.Suggestions) == 0 {
		t.Fatal("placeholder must ship a usable suggestion set")
	}
	if len(payload.Timeline) != 0 {
		t.Fatal("placeholder timeline starts empty")
	}
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	projectID := uuid.New()
	first := PlaceholderPayload(projectID)
	second := PlaceholderPayload(projectID)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("placeholder payloads must be identical across calls")
	}
}

func TestOfflineFallbackPassesThrough(t *testing.T) {
	want := &ProjectPayload{Metadata: models.ProjectMetadata{ProjectID: uuid.New(), Title: "real"}}
	gw := NewOfflineFallback(&stubGateway{payload: want}, nil)

	payload, err := gw.FetchProjectTimeline(context.Background(), want.Metadata.ProjectID)
	if err != nil {
		t.Fatalf("FetchProjectTimeline: %v", err)
	}
	if payload.Metadata.Offline {
		t.Fatal("server payloads must not be flagged offline")
	}
	if payload.Metadata.Title != "real" {
		t.Fatal("fallback must pass server payloads through untouched")
	}
}

func TestOfflineFallbackNeverSwallowsSaveFailures(t *testing.T) {
	saveErr := errors.New("gateway down")
	gw := NewOfflineFallback(&stubGateway{saveErr: saveErr}, nil)

	_, err := gw.SaveTimeline(context.Background(), uuid.New(), nil, nil)
	if !errors.Is(err, saveErr) {
		t.Fatalf("save failures must surface, got %v", err)
	}
}
