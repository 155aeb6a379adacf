package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
)

var (
	ErrWebhookUnauthorized = errors.New("webhook token mismatch")
	ErrUnknownProduct      = errors.New("unknown product")
	ErrUnknownBuyer        = errors.New("unknown buyer")
)

// PaymentNotification is the parsed form payload from the payment processor.
type PaymentNotification struct {
	SellerToken string
	SaleID      string
	ProductID   string
	BuyerEmail  string
	RawPayload  map[string]interface{}
}

// WebhookService processes payment processor notifications.
type WebhookService struct {
	cfg  config.Config
	repo model.Repository
}

// NewWebhookService creates the webhook service.
func NewWebhookService(cfg config.Config, repo model.Repository) *WebhookService {
	return &WebhookService{cfg: cfg, repo: repo}
}

// ProcessPayment verifies and applies one payment notification. Replays of an
// already-processed sale id succeed without granting credits again, so the
// processor can retry freely. The buyer's first purchase also releases the
// pending referral reward to whoever invited them.
func (s *WebhookService) ProcessPayment(ctx context.Context, note PaymentNotification) error {
	if s.cfg.WebhookSellerToken == "" ||
		subtle.ConstantTimeCompare([]byte(note.SellerToken), []byte(s.cfg.WebhookSellerToken)) != 1 {
		return ErrWebhookUnauthorized
	}

	saleID := strings.TrimSpace(note.SaleID)
	if saleID == "" {
		return fmt.Errorf("sale id is empty")
	}

	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(note.BuyerEmail)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownBuyer
		}
		return err
	}

	pack, err := s.repo.GetCreditPackByProductID(ctx, note.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownProduct
		}
		return err
	}

	balance, err := s.repo.ApplyPurchase(ctx, &entity.DbPurchase{
		SaleID:       saleID,
		UserID:       user.ID,
		CreditPackID: pack.ID,
		Credits:      pack.Credits,
		RawPayload:   note.RawPayload,
	})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateSale) {
			logrus.WithFields(logrus.Fields{
				"sale_id": saleID,
				"user_id": user.ID,
			}).Info("payment_replayed")
			return nil
		}
		return err
	}

	logrus.WithFields(logrus.Fields{
		"sale_id": saleID,
		"user_id": user.ID,
		"product": pack.ProductID,
		"credits": pack.Credits,
		"balance": balance,
	}).Info("payment_applied")

	// First purchase releases the referral bonus to the referrer.
	granted, err := s.repo.GrantReferralReward(ctx, user.ID, s.cfg.ReferralCredits)
	if err != nil {
		// The purchase itself stands; the reward can be reconciled later.
		logrus.WithError(err).WithField("user_id", user.ID).Error("referral reward failed")
		return nil
	}
	if granted {
		logrus.WithFields(logrus.Fields{
			"referred_user_id": user.ID,
			"credits":          s.cfg.ReferralCredits,
		}).Info("referral_reward_granted")
	}
	return nil
}
