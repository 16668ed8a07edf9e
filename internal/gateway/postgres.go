package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"composer-backend/internal/models"
)

// PostgresGateway persists project timelines in Postgres. The clip sequence
// and suggestion set are stored as JSONB columns on the projects row: the
// snapshot is the unit of consistency, so a row per project keeps save and
// fetch a single statement each. Transcript segments live in their own table
// for text search.
//
// Expected schema:
//
//	CREATE TABLE projects (
//	    project_id       UUID PRIMARY KEY,
//	    title            TEXT NOT NULL DEFAULT '',
//	    description      TEXT NOT NULL DEFAULT '',
//	    max_duration     DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    current_duration DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    clip_count       INTEGER NOT NULL DEFAULT 0,
//	    last_saved_at    TIMESTAMPTZ,
//	    owner_id         TEXT NOT NULL DEFAULT '',
//	    status           TEXT NOT NULL DEFAULT 'draft',
//	    timeline         JSONB NOT NULL DEFAULT '[]',
//	    suggestions      JSONB NOT NULL DEFAULT '[]'
//	);
//
//	CREATE TABLE transcript_segments (
//	    id         UUID PRIMARY KEY,
//	    project_id UUID NOT NULL REFERENCES projects(project_id),
//	    source_id  TEXT NOT NULL,
//	    text       TEXT NOT NULL,
//	    start_sec  DOUBLE PRECISION NOT NULL,
//	    end_sec    DOUBLE PRECISION NOT NULL,
//	    confidence DOUBLE PRECISION NOT NULL DEFAULT 0
//	);
type PostgresGateway struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresGateway {
	return &PostgresGateway{DB: db}
}

func (g *PostgresGateway) FetchProjectTimeline(ctx context.Context, projectID uuid.UUID) (*ProjectPayload, error) {
	query := `
		SELECT title, description, max_duration, current_duration, clip_count,
		       last_saved_at, owner_id, status, timeline, suggestions
		FROM projects
		WHERE project_id = $1
	`

	var (
		meta            models.ProjectMetadata
		lastSavedAt     sql.NullTime
		timelineJSON    []byte
		suggestionsJSON []byte
	)
	err := g.DB.QueryRowContext(ctx, query, projectID).Scan(
		&meta.Title,
		&meta.Description,
		&meta.MaxDuration,
		&meta.CurrentDuration,
		&meta.ClipCount,
		&lastSavedAt,
		&meta.Owner,
		&meta.Status,
		&timelineJSON,
		&suggestionsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch project %s: %w", projectID, err)
	}

	meta.ProjectID = projectID
	if lastSavedAt.Valid {
		t := lastSavedAt.Time
		meta.LastSavedAt = &t
	}

	payload := &ProjectPayload{Metadata: meta}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &payload.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline for project %s: %w", projectID, err)
		}
	}
	if len(suggestionsJSON) > 0 {
		if err := json.Unmarshal(suggestionsJSON, &payload.Suggestions); err != nil {
			return nil, fmt.Errorf("decode suggestions for project %s: %w", projectID, err)
		}
	}
	return payload, nil
}

func (g *PostgresGateway) SaveTimeline(ctx context.Context, projectID uuid.UUID, timeline []models.TimelineClip, suggestions []models.SceneSuggestion) (*ProjectPayload, error) {
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return nil, err
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE projects
		SET timeline         = $1,
		    suggestions      = $2,
		    current_duration = $3,
		    clip_count       = $4,
		    last_saved_at    = NOW()
		WHERE project_id = $5
		RETURNING title, description, max_duration, current_duration, clip_count,
		          last_saved_at, owner_id, status
	`

	var (
		meta        models.ProjectMetadata
		lastSavedAt sql.NullTime
	)
	err = g.DB.QueryRowContext(ctx, query,
		timelineJSON, suggestionsJSON, totalDuration(timeline), len(timeline), projectID,
	).Scan(
		&meta.Title,
		&meta.Description,
		&meta.MaxDuration,
		&meta.CurrentDuration,
		&meta.ClipCount,
		&lastSavedAt,
		&meta.Owner,
		&meta.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("save project %s: %w", projectID, err)
	}

	meta.ProjectID = projectID
	if lastSavedAt.Valid {
		t := lastSavedAt.Time
		meta.LastSavedAt = &t
	}

	// Empty collections in the echo mean "client values accepted as-is"; the
	// normalized metadata is always returned.
	return &ProjectPayload{Metadata: meta}, nil
}

func (g *PostgresGateway) SearchTranscript(ctx context.Context, projectID uuid.UUID, query string) ([]models.TranscriptSegment, error) {
	rows, err := g.DB.QueryContext(ctx, `
		SELECT id, source_id, text, start_sec, end_sec, confidence
		FROM transcript_segments
		WHERE project_id = $1 AND text ILIKE '%' || $2 || '%' ESCAPE '\'
		ORDER BY start_sec
		LIMIT $3
	`, projectID, escapeLike(query), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search transcript for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var segments []models.TranscriptSegment
	for rows.Next() {
		var seg models.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.SourceID, &seg.Text, &seg.Start, &seg.End, &seg.Confidence); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
