package service

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
)

// sharePlatforms lists the platforms a share reward can be claimed for.
var sharePlatforms = map[string]bool{
	"instagram": true,
	"tiktok":    true,
	"facebook":  true,
	"x":         true,
	"whatsapp":  true,
}

// CreditService exposes the credit balance, ledger and reward operations.
type CreditService struct {
	cfg  config.Config
	repo model.Repository
}

// NewCreditService creates the credit service.
func NewCreditService(cfg config.Config, repo model.Repository) *CreditService {
	return &CreditService{cfg: cfg, repo: repo}
}

// GetBalance returns the current balance with the most recent ledger rows.
func (s *CreditService) GetBalance(ctx context.Context, userID uint) (*entity.CreditBalanceResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	transactions, _, err := s.repo.ListCreditTransactions(ctx, &entity.TransactionQuery{
		BaseParams: entity.BaseParams{PageSize: 20},
		UserID:     userID,
	})
	if err != nil {
		return nil, err
	}

	return &entity.CreditBalanceResponse{
		Credits:      user.Credits,
		Transactions: transactions,
	}, nil
}

// ListTransactions returns a page of the user's credit ledger.
func (s *CreditService) ListTransactions(ctx context.Context, userID uint, params entity.BaseParams) ([]entity.DbCreditTransaction, *entity.Meta, error) {
	return s.repo.ListCreditTransactions(ctx, &entity.TransactionQuery{
		BaseParams: params,
		UserID:     userID,
	})
}

// ListPacks returns the purchasable credit packs.
func (s *CreditService) ListPacks(ctx context.Context) ([]entity.DbCreditPack, error) {
	return s.repo.ListCreditPacks(ctx, false)
}

// ClaimShareReward grants the per-platform share bonus. Repeat claims for the
// same platform return granted=false with the unchanged balance.
func (s *CreditService) ClaimShareReward(ctx context.Context, userID uint, platform string) (*entity.ShareRewardResponse, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if !sharePlatforms[platform] {
		return nil, ErrUnknownPlatform
	}

	granted, balance, err := s.repo.GrantShareReward(ctx, userID, platform, s.cfg.ShareRewardCredits)
	if err != nil {
		return nil, err
	}

	if granted {
		logrus.WithFields(logrus.Fields{
			"user_id":  userID,
			"platform": platform,
			"credits":  s.cfg.ShareRewardCredits,
		}).Info("share_reward_granted")
	}

	return &entity.ShareRewardResponse{
		Granted:          granted,
		CreditsRemaining: balance,
	}, nil
}
