package entity

import "time"

// DbProject groups clips belonging to one user. Projects are created
// implicitly when the first clip is submitted without an explicit project id.
type DbProject struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint   `gorm:"column:user_id;index;not null" json:"user_id"`
	Name   string `gorm:"column:name;type:varchar(255)" json:"name"`
}

// TableName overrides the table name for DbProject.
func (DbProject) TableName() string {
	return "projects"
}

// ProjectQuery supports listing projects with pagination.
type ProjectQuery struct {
	BaseParams
	UserID uint `json:"-" form:"-" query:"-"`
}

// ProjectSummary is the list-endpoint shape: project fields plus clip counts.
type ProjectSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	ClipCount      int64     `json:"clip_count"`
	CompletedCount int64     `json:"completed_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
