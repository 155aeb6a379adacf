package entity

import "time"

const (
	UserRoleSuperAdmin = "super_admin"
	UserRoleAdmin      = "admin"
	UserRoleUser       = "user"
)

// DbUser represents a persisted user account. Credits is the authoritative
// balance; every change to it has a matching DbCreditTransaction row.
type DbUser struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Email        string    `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string    `gorm:"column:display_name;type:varchar(255)" json:"display_name"`
	Role         string    `gorm:"column:role;type:varchar(50);index;not null" json:"role"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Credits      int       `gorm:"column:credits;not null;default:0" json:"credits"`
	ReferralCode string    `gorm:"column:referral_code;type:varchar(20);uniqueIndex" json:"referral_code"`
}

// TableName overrides default pluralised name.
func (DbUser) TableName() string {
	return "users"
}

// UserSummary is a lightweight user description returned to clients.
type UserSummary struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	Credits      int       `json:"credits"`
	ReferralCode string    `json:"referral_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToSummary converts the row into its client-facing shape.
func (u *DbUser) ToSummary() UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:           u.ID,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		IsActive:     u.IsActive,
		Credits:      u.Credits,
		ReferralCode: u.ReferralCode,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// UserQuery supports listing users with pagination.
type UserQuery struct {
	BaseParams
	Search string `json:"search" form:"search" query:"search"`
	Role   string `json:"role" form:"role" query:"role"`
}
