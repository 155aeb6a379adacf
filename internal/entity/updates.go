package entity

import "time"

// UserUpdates carries optional user field updates.
type UserUpdates struct {
	DisplayName  *string
	Role         *string
	PasswordHash *string
	IsActive     *bool
}

// ToMap converts to a GORM updates map.
func (u UserUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.DisplayName != nil {
		updates["display_name"] = *u.DisplayName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	if u.PasswordHash != nil {
		updates["password_hash"] = *u.PasswordHash
	}
	if u.IsActive != nil {
		updates["is_active"] = *u.IsActive
	}
	return updates
}

// IsEmpty reports whether no field is set.
func (u UserUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// ClipUpdates carries optional clip field updates applied alongside a status
// transition. Status itself moves through Repository.AdvanceClipStatus so the
// monotonic-transition rule is enforced in one place.
type ClipUpdates struct {
	ProviderID       *string
	GenerationJobID  *string
	VideoPath        *string
	ErrorMessage     *string
	RetryCount       *int
	EstimatedSeconds *int
	SubmittedAt      *time.Time
}

// ToMap converts to a GORM updates map.
func (u ClipUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.ProviderID != nil {
		updates["provider_id"] = *u.ProviderID
	}
	if u.GenerationJobID != nil {
		updates["generation_job_id"] = *u.GenerationJobID
	}
	if u.VideoPath != nil {
		updates["video_path"] = *u.VideoPath
	}
	if u.ErrorMessage != nil {
		updates["error_message"] = *u.ErrorMessage
	}
	if u.RetryCount != nil {
		updates["retry_count"] = *u.RetryCount
	}
	if u.EstimatedSeconds != nil {
		updates["estimated_seconds"] = *u.EstimatedSeconds
	}
	if u.SubmittedAt != nil {
		updates["submitted_at"] = *u.SubmittedAt
	}
	return updates
}

// IsEmpty reports whether no field is set.
func (u ClipUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// FinalVideoUpdates carries optional final-video field updates.
type FinalVideoUpdates struct {
	Status       *FinalVideoStatus
	VideoPath    *string
	ErrorMessage *string
}

// ToMap converts to a GORM updates map.
func (u FinalVideoUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Status != nil {
		updates["status"] = *u.Status
	}
	if u.VideoPath != nil {
		updates["video_path"] = *u.VideoPath
	}
	if u.ErrorMessage != nil {
		updates["error_message"] = *u.ErrorMessage
	}
	return updates
}

// IsEmpty reports whether no field is set.
func (u FinalVideoUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}
