package model

import (
	"context"

	"echoes/internal/entity"
	"echoes/internal/model/sql"
)

// Sentinel errors surfaced by the SQL implementation.
var (
	ErrInsufficientCredits = sql.ErrInsufficientCredits
	ErrDuplicateSale       = sql.ErrDuplicateSale
)

// Repository defines every persistence operation the services need.
type Repository interface {
	// Users
	CreateUser(ctx context.Context, user *entity.DbUser) error
	UpdateUser(ctx context.Context, id uint, updates entity.UserUpdates) error
	GetUserByEmail(ctx context.Context, email string) (*entity.DbUser, error)
	GetUserByID(ctx context.Context, id uint) (*entity.DbUser, error)
	GetUserByReferralCode(ctx context.Context, code string) (*entity.DbUser, error)
	ListUsers(ctx context.Context, params *entity.UserQuery) ([]entity.DbUser, *entity.Meta, error)
	CountUsers(ctx context.Context) (int64, error)

	// Projects
	CreateProject(ctx context.Context, project *entity.DbProject) error
	GetProject(ctx context.Context, id string) (*entity.DbProject, error)
	ListProjectSummaries(ctx context.Context, params *entity.ProjectQuery) ([]entity.ProjectSummary, *entity.Meta, error)
	DeleteProject(ctx context.Context, id string, userID uint) error

	// Clips
	CreateClip(ctx context.Context, clip *entity.DbClip) error
	GetClip(ctx context.Context, id string) (*entity.DbClip, error)
	ListClips(ctx context.Context, params *entity.ClipQuery) ([]entity.DbClip, *entity.Meta, error)
	UpdateClipFields(ctx context.Context, id string, updates entity.ClipUpdates) error
	// AdvanceClipStatus moves a clip from one status to another with a
	// compare-and-swap guard. It reports false when the clip was not in the
	// expected source status.
	AdvanceClipStatus(ctx context.Context, id string, from, to entity.ClipStatus, updates entity.ClipUpdates) (bool, error)
	DeleteClip(ctx context.Context, id string, userID uint) error

	// Final videos
	CreateFinalVideo(ctx context.Context, video *entity.DbFinalVideo) error
	GetFinalVideo(ctx context.Context, id string) (*entity.DbFinalVideo, error)
	ListFinalVideos(ctx context.Context, projectID string, userID uint) ([]entity.DbFinalVideo, error)
	UpdateFinalVideo(ctx context.Context, id string, updates entity.FinalVideoUpdates) error
	// AdvanceFinalVideoStatus moves a final video from one status to another
	// with a compare-and-swap guard. It reports false when the video was not
	// in the expected source status.
	AdvanceFinalVideoStatus(ctx context.Context, id string, from, to entity.FinalVideoStatus, updates entity.FinalVideoUpdates) (bool, error)

	// Credits
	SpendCredits(ctx context.Context, userID uint, amount int, txType entity.CreditTransactionType, referenceID string) (int, error)
	GrantCredits(ctx context.Context, userID uint, amount int, txType entity.CreditTransactionType, referenceID string) (int, error)
	ListCreditTransactions(ctx context.Context, params *entity.TransactionQuery) ([]entity.DbCreditTransaction, *entity.Meta, error)

	// Credit packs and purchases
	ListCreditPacks(ctx context.Context, includeInactive bool) ([]entity.DbCreditPack, error)
	GetCreditPackByProductID(ctx context.Context, productID string) (*entity.DbCreditPack, error)
	UpsertCreditPack(ctx context.Context, pack *entity.DbCreditPack) error
	// ApplyPurchase records the purchase and grants its credits in one
	// transaction. A repeated sale id returns ErrDuplicateSale with no
	// balance change.
	ApplyPurchase(ctx context.Context, purchase *entity.DbPurchase) (int, error)

	// Referrals and share rewards
	CreateReferral(ctx context.Context, referral *entity.DbReferral) error
	GetReferralByReferredUser(ctx context.Context, referredUserID uint) (*entity.DbReferral, error)
	// GrantReferralReward flips the reward flag and credits the referrer.
	// It reports false when the reward was already granted or no referral
	// exists for the user.
	GrantReferralReward(ctx context.Context, referredUserID uint, credits int) (bool, error)
	// GrantShareReward inserts the share row and credits the user. It
	// reports false when the user already claimed that platform.
	GrantShareReward(ctx context.Context, userID uint, platform string, credits int) (bool, int, error)

	// Music tracks
	ListMusicTracks(ctx context.Context) ([]entity.DbMusicTrack, error)
	GetMusicTrack(ctx context.Context, id uint) (*entity.DbMusicTrack, error)
	UpsertMusicTrack(ctx context.Context, track *entity.DbMusicTrack) error
}
