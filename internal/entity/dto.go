package entity

import "time"

// Auth

type RegisterRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	DisplayName  string `json:"display_name"`
	ReferralCode string `json:"referral_code"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// Clips

type SubmitClipRequest struct {
	ImageURL  string `json:"image_url"`
	Prompt    string `json:"prompt"`
	ProjectID string `json:"project_id"`
}

type SubmitClipResponse struct {
	ClipID           string     `json:"clip_id"`
	ProjectID        string     `json:"project_id"`
	Status           ClipStatus `json:"status"`
	CreditsRemaining int        `json:"credits_remaining"`
	EstimatedTime    int        `json:"estimated_time"`
}

type ClipStatusResponse struct {
	ClipID        string     `json:"clip_id"`
	Status        ClipStatus `json:"status"`
	Progress      int        `json:"progress"`
	VideoURL      string     `json:"video_url,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	EstimatedTime int        `json:"estimated_time"`
}

type ClipItem struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"project_id"`
	ImageURL     string     `json:"image_url"`
	Prompt       string     `json:"prompt"`
	Status       ClipStatus `json:"status"`
	ClipIndex    int        `json:"clip_index"`
	VideoURL     string     `json:"video_url,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Projects

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
	Meta     *Meta            `json:"meta"`
}

type ProjectDetailResponse struct {
	Project DbProject  `json:"project"`
	Clips   []ClipItem `json:"clips"`
}

// Final videos

type CreateFinalVideoRequest struct {
	ProjectID    string   `json:"project_id" binding:"required"`
	ClipIDs      []string `json:"clip_ids" binding:"required"`
	MusicTrackID *uint    `json:"music_track_id"`
	Transition   string   `json:"transition"`
	AspectRatio  string   `json:"aspect_ratio"`
}

type FinalVideoResponse struct {
	ID           string           `json:"id"`
	ProjectID    string           `json:"project_id"`
	Status       FinalVideoStatus `json:"status"`
	ClipIDs      []string         `json:"clip_ids"`
	VideoURL     string           `json:"video_url,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Credits

type CreditBalanceResponse struct {
	Credits      int                   `json:"credits"`
	Transactions []DbCreditTransaction `json:"transactions"`
}

type ShareRewardRequest struct {
	Platform string `json:"platform" binding:"required"`
}

type ShareRewardResponse struct {
	Granted          bool `json:"granted"`
	CreditsRemaining int  `json:"credits_remaining"`
}

// TransactionQuery supports listing ledger rows.
type TransactionQuery struct {
	BaseParams
	UserID uint `json:"-" form:"-" query:"-"`
}
