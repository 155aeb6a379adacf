package entity

import "time"

// FinalVideoStatus is the lifecycle state of a compiled video.
type FinalVideoStatus string

const (
	FinalVideoStatusDraft      FinalVideoStatus = "draft"
	FinalVideoStatusProcessing FinalVideoStatus = "processing"
	FinalVideoStatusCompleted  FinalVideoStatus = "completed"
	FinalVideoStatusFailed     FinalVideoStatus = "failed"
)

// IsTerminal reports whether the status can never change again.
func (s FinalVideoStatus) IsTerminal() bool {
	return s == FinalVideoStatusCompleted || s == FinalVideoStatusFailed
}

var finalVideoTransitions = map[FinalVideoStatus][]FinalVideoStatus{
	FinalVideoStatusDraft:      {FinalVideoStatusProcessing},
	FinalVideoStatusProcessing: {FinalVideoStatusCompleted, FinalVideoStatusFailed},
}

// CanFinalVideoTransition reports whether a final video may move between the
// two statuses.
func CanFinalVideoTransition(from, to FinalVideoStatus) bool {
	for _, allowed := range finalVideoTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DbFinalVideo is a compiled output referencing an ordered list of clips and
// an optional music track.
type DbFinalVideo struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID string `gorm:"column:project_id;type:varchar(36);index;not null" json:"project_id"`
	UserID    uint   `gorm:"column:user_id;index;not null" json:"user_id"`

	ClipIDs      StringArray `gorm:"column:clip_ids;type:json" json:"clip_ids"`
	MusicTrackID *uint       `gorm:"column:music_track_id" json:"music_track_id,omitempty"`
	Transition   string      `gorm:"column:transition;type:varchar(32)" json:"transition"`
	AspectRatio  string      `gorm:"column:aspect_ratio;type:varchar(16)" json:"aspect_ratio"`

	Status       FinalVideoStatus `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	VideoPath    string           `gorm:"column:video_path;type:text" json:"video_path"`
	ErrorMessage string           `gorm:"column:error_message;type:text" json:"error_message"`
}

// TableName overrides the table name for DbFinalVideo.
func (DbFinalVideo) TableName() string {
	return "final_videos"
}

// DbMusicTrack is a seeded background-music option for final videos.
type DbMusicTrack struct {
	ID              uint      `gorm:"primarykey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Name            string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	FilePath        string    `gorm:"column:file_path;type:text;not null" json:"file_path"`
	DurationSeconds int       `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName overrides the table name for DbMusicTrack.
func (DbMusicTrack) TableName() string {
	return "music_tracks"
}
