package entity

import "time"

// ClipStatus is the lifecycle state of a single photo-to-video unit.
type ClipStatus string

const (
	ClipStatusPending    ClipStatus = "pending"
	ClipStatusProcessing ClipStatus = "processing"
	// ClipStatusCompleting is an internal claim state held while the
	// provider output is downloaded and persisted. Clients see it as
	// "processing".
	ClipStatusCompleting ClipStatus = "completing"
	ClipStatusCompleted  ClipStatus = "completed"
	ClipStatusFailed     ClipStatus = "failed"
)

// IsTerminal reports whether the status can never change again.
func (s ClipStatus) IsTerminal() bool {
	return s == ClipStatusCompleted || s == ClipStatusFailed
}

// Public returns the status as reported to clients, hiding the internal
// completing claim state.
func (s ClipStatus) Public() ClipStatus {
	if s == ClipStatusCompleting {
		return ClipStatusProcessing
	}
	return s
}

// clipTransitions enumerates the allowed forward moves. Status changes are
// monotonic: nothing leaves a terminal state, and processing never falls back
// to pending.
var clipTransitions = map[ClipStatus][]ClipStatus{
	ClipStatusPending:    {ClipStatusProcessing, ClipStatusFailed},
	ClipStatusProcessing: {ClipStatusCompleting, ClipStatusFailed},
	ClipStatusCompleting: {ClipStatusCompleted, ClipStatusFailed},
}

// CanTransition reports whether moving from -> to is a legal clip transition.
func CanTransition(from, to ClipStatus) bool {
	for _, allowed := range clipTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DbClip represents one photo-to-video generation unit.
type DbClip struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID string `gorm:"column:project_id;type:varchar(36);index;not null" json:"project_id"`
	UserID    uint   `gorm:"column:user_id;index;not null" json:"user_id"`

	ImageURL string `gorm:"column:image_url;type:text;not null" json:"image_url"`
	Prompt   string `gorm:"column:prompt;type:text" json:"prompt"`

	Status          ClipStatus `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	ProviderID      string     `gorm:"column:provider_id;type:varchar(64)" json:"provider_id"`
	GenerationJobID string     `gorm:"column:generation_job_id;type:varchar(255)" json:"generation_job_id"`
	VideoPath       string     `gorm:"column:video_path;type:text" json:"video_path"`
	ErrorMessage    string     `gorm:"column:error_message;type:text" json:"error_message"`
	RetryCount      int        `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	ClipIndex       int        `gorm:"column:clip_index;not null;default:0" json:"clip_index"`

	EstimatedSeconds int        `gorm:"column:estimated_seconds;not null;default:0" json:"estimated_seconds"`
	SubmittedAt      *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
}

// TableName overrides the table name for DbClip.
func (DbClip) TableName() string {
	return "clips"
}

// ClipQuery supports listing clips.
type ClipQuery struct {
	BaseParams
	ProjectID string     `json:"project_id" form:"project_id" query:"project_id"`
	Status    ClipStatus `json:"status" form:"status" query:"status"`
	UserID    uint       `json:"-" form:"-" query:"-"`
}
