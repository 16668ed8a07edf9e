package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"composer-backend/internal/models"
)

// SQLiteGateway is the single-machine persistence backend: same contract as
// the Postgres gateway, one local file, no server. Used for local development
// and the desktop build.
type SQLiteGateway struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS projects (
    project_id       TEXT PRIMARY KEY,
    title            TEXT NOT NULL DEFAULT '',
    description      TEXT NOT NULL DEFAULT '',
    max_duration     REAL NOT NULL DEFAULT 0,
    current_duration REAL NOT NULL DEFAULT 0,
    clip_count       INTEGER NOT NULL DEFAULT 0,
    last_saved_at    TEXT,
    owner_id         TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'draft',
    timeline         TEXT NOT NULL DEFAULT '[]',
    suggestions      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS transcript_segments (
    id         TEXT PRIMARY KEY,
    project_id TEXT NOT NULL,
    source_id  TEXT NOT NULL,
    text       TEXT NOT NULL,
    start_sec  REAL NOT NULL,
    end_sec    REAL NOT NULL,
    confidence REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcript_segments_project
    ON transcript_segments(project_id, start_sec);
`

func OpenSQLite(path string) (*SQLiteGateway, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer; WAL keeps readers from blocking it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteGateway{db: db}, nil
}

func (g *SQLiteGateway) Close() error { return g.db.Close() }

func (g *SQLiteGateway) FetchProjectTimeline(ctx context.Context, projectID uuid.UUID) (*ProjectPayload, error) {
	row := g.db.QueryRowContext(ctx, `
		SELECT title, description, max_duration, current_duration, clip_count,
		       last_saved_at, owner_id, status, timeline, suggestions
		FROM projects
		WHERE project_id = ?
	`, projectID.String())

	var (
		meta            models.ProjectMetadata
		lastSavedAt     sql.NullString
		timelineJSON    string
		suggestionsJSON string
	)
	err := row.Scan(
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
	if lastSavedAt.Valid && lastSavedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, lastSavedAt.String); err == nil {
			meta.LastSavedAt = &t
		}
	}

	payload := &ProjectPayload{Metadata: meta}
	if timelineJSON != "" {
		if err := json.Unmarshal([]byte(timelineJSON), &payload.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline for project %s: %w", projectID, err)
		}
	}
	if suggestionsJSON != "" {
		if err := json.Unmarshal([]byte(suggestionsJSON), &payload.Suggestions); err != nil {
			return nil, fmt.Errorf("decode suggestions for project %s: %w", projectID, err)
		}
	}
	return payload, nil
}

func (g *SQLiteGateway) SaveTimeline(ctx context.Context, projectID uuid.UUID, timeline []models.TimelineClip, suggestions []models.SceneSuggestion) (*ProjectPayload, error) {
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return nil, err
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return nil, err
	}

	savedAt := time.Now().UTC()
	result, err := g.db.ExecContext(ctx, `
		UPDATE projects
		SET timeline         = ?,
		    suggestions      = ?,
		    current_duration = ?,
		    clip_count       = ?,
		    last_saved_at    = ?
		WHERE project_id = ?
	`, string(timelineJSON), string(suggestionsJSON),
		totalDuration(timeline), len(timeline),
		savedAt.Format(time.RFC3339), projectID.String())
	if err != nil {
		return nil, fmt.Errorf("save project %s: %w", projectID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrProjectNotFound
	}

	fetched, err := g.FetchProjectTimeline(ctx, projectID)
	if err != nil {
		return nil, err
	}
	// Echo only the normalized metadata; empty collections tell the session
	// to keep its optimistic values.
	return &ProjectPayload{Metadata: fetched.Metadata}, nil
}

func (g *SQLiteGateway) SearchTranscript(ctx context.Context, projectID uuid.UUID, query string) ([]models.TranscriptSegment, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, source_id, text, start_sec, end_sec, confidence
		FROM transcript_segments
		WHERE project_id = ? AND lower(text) LIKE '%' || lower(?) || '%' ESCAPE '\'
		ORDER BY start_sec
		LIMIT ?
	`, projectID.String(), escapeLike(query), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search transcript for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var segments []models.TranscriptSegment
	for rows.Next() {
		var (
			seg models.TranscriptSegment
			id  string
		)
		if err := rows.Scan(&id, &seg.SourceID, &seg.Text, &seg.Start, &seg.End, &seg.Confidence); err != nil {
			return nil, err
		}
		seg.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("bad segment id %q: %w", id, err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}
