package entity

import "time"

// DbReferral links a referrer to a referred user. A user can be referred at
// most once, and RewardGranted flips exactly once, on the referred user's
// first completed purchase.
type DbReferral struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReferrerUserID uint `gorm:"column:referrer_user_id;index;not null" json:"referrer_user_id"`
	ReferredUserID uint `gorm:"column:referred_user_id;uniqueIndex;not null" json:"referred_user_id"`
	RewardGranted  bool `gorm:"column:reward_granted;not null;default:false" json:"reward_granted"`
}

// TableName overrides the table name for DbReferral.
func (DbReferral) TableName() string {
	return "referrals"
}

// DbShareReward records a social-share credit grant. The user+platform pair
// is unique, so each platform rewards at most once.
type DbShareReward struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID   uint   `gorm:"column:user_id;uniqueIndex:idx_share_user_platform,priority:1;not null" json:"user_id"`
	Platform string `gorm:"column:platform;type:varchar(64);uniqueIndex:idx_share_user_platform,priority:2;not null" json:"platform"`
	Credits  int    `gorm:"column:credits;not null" json:"credits"`
}

// TableName overrides the table name for DbShareReward.
func (DbShareReward) TableName() string {
	return "share_rewards"
}
