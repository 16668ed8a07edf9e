// Package gateway is the persistence boundary of the composition engine. The
// session only ever sees the Gateway interface; main.go picks the concrete
// implementation (Postgres for deployments, SQLite for single-machine use)
// and wraps it with the offline fallback. Swapping backends is a wiring
// change; session and handler code never changes.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"composer-backend/internal/models"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectPayload is the unit of exchange with the persistence layer.
type ProjectPayload struct {
	Timeline    []models.TimelineClip    `json:"timeline"`
	Suggestions []models.SceneSuggestion `json:"suggestions"`
	Metadata    models.ProjectMetadata   `json:"metadata"`
}

type Gateway interface {
	// FetchProjectTimeline loads the project's canonical payload.
	FetchProjectTimeline(ctx context.Context, projectID uuid.UUID) (*ProjectPayload, error)

	// SaveTimeline persists the given timeline and suggestion set. The server
	// may echo normalized data back; empty returned collections mean "accept
	// the client values as-is".
	SaveTimeline(ctx context.Context, projectID uuid.UUID, timeline []models.TimelineClip, suggestions []models.SceneSuggestion) (*ProjectPayload, error)

	// SearchTranscript runs a text search over the project's transcript
	// index, ordered by segment start time.
	SearchTranscript(ctx context.Context, projectID uuid.UUID, query string) ([]models.TranscriptSegment, error)
}

const searchLimit = 50

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so a user query containing % or _ matches
// those characters literally. Both SQL gateways pair it with ESCAPE '\'.
func escapeLike(query string) string {
	return likeEscaper.Replace(query)
}

func totalDuration(timeline []models.TimelineClip) float64 {
	var total float64
	for _, c := range timeline {
		total += c.Duration()
	}
	return total
}
