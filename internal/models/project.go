package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusDraft    ProjectStatus = "draft"
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

// ProjectMetadata is the aggregate state of a project. CurrentDuration and
// ClipCount are derived from the clip list but persisted denormalized so list
// views can render them without loading the timeline.
type ProjectMetadata struct {
	ProjectID   uuid.UUID     `json:"project_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`

	// MaxDuration is the output duration budget in seconds; zero means
	// unbounded.
	MaxDuration     float64 `json:"max_duration"`
	CurrentDuration float64 `json:"current_duration"`
	ClipCount       int     `json:"clip_count"`

	LastSavedAt *time.Time    `json:"last_saved_at,omitempty"`
	Owner       string        `json:"owner"`
	Status      ProjectStatus `json:"status"`

	// Offline marks a payload synthesized locally instead of fetched from the
	// server, so callers can tell placeholder data from real data.
	Offline bool `json:"offline,omitempty"`
}
