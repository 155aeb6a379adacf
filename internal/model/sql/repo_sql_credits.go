package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"echoes/internal/entity"
)

// SpendCredits atomically deducts credits and appends the matching ledger row.
// The balance guard lives in the UPDATE itself, so two concurrent spends can
// never take the balance negative.
func (r *GormRepository) SpendCredits(ctx context.Context, userID uint, amount int, txType entity.CreditTransactionType, referenceID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	if userID == 0 || amount <= 0 {
		return 0, fmt.Errorf("invalid spend request")
	}

	var balance int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.DbUser{}).
			Where("id = ? AND credits >= ?", userID, amount).
			UpdateColumn("credits", gorm.Expr("credits - ?", amount))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var user entity.DbUser
			if err := tx.First(&user, userID).Error; err != nil {
				return err
			}
			return ErrInsufficientCredits
		}

		var user entity.DbUser
		if err := tx.First(&user, userID).Error; err != nil {
			return err
		}
		balance = user.Credits

		return tx.Create(&entity.DbCreditTransaction{
			UserID:       userID,
			Amount:       -amount,
			Type:         txType,
			ReferenceID:  referenceID,
			BalanceAfter: balance,
		}).Error
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// GrantCredits atomically adds credits and appends the matching ledger row.
func (r *GormRepository) GrantCredits(ctx context.Context, userID uint, amount int, txType entity.CreditTransactionType, referenceID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	if userID == 0 || amount <= 0 {
		return 0, fmt.Errorf("invalid grant request")
	}

	var balance int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = grantCreditsTx(tx, userID, amount, txType, referenceID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// grantCreditsTx is the shared grant body used inside larger transactions.
func grantCreditsTx(tx *gorm.DB, userID uint, amount int, txType entity.CreditTransactionType, referenceID string) (int, error) {
	result := tx.Model(&entity.DbUser{}).
		Where("id = ?", userID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var user entity.DbUser
	if err := tx.First(&user, userID).Error; err != nil {
		return 0, err
	}

	if err := tx.Create(&entity.DbCreditTransaction{
		UserID:       userID,
		Amount:       amount,
		Type:         txType,
		ReferenceID:  referenceID,
		BalanceAfter: user.Credits,
	}).Error; err != nil {
		return 0, err
	}
	return user.Credits, nil
}

// ListCreditTransactions returns a user's ledger, newest first.
func (r *GormRepository) ListCreditTransactions(ctx context.Context, params *entity.TransactionQuery) ([]entity.DbCreditTransaction, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}
	if params == nil || params.UserID == 0 {
		return nil, nil, fmt.Errorf("invalid transaction query")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbCreditTransaction{}).Where("user_id = ?", params.UserID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page, pageSize, offset := pageWindow(&params.BaseParams)

	var transactions []entity.DbCreditTransaction
	if err := query.Order("id DESC").Offset(offset).Limit(pageSize).Find(&transactions).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return transactions, meta, nil
}

// ListCreditPacks returns purchasable packs.
func (r *GormRepository) ListCreditPacks(ctx context.Context, includeInactive bool) ([]entity.DbCreditPack, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	query := r.db.WithContext(ctx).Model(&entity.DbCreditPack{})
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var packs []entity.DbCreditPack
	if err := query.Order("price_cents ASC").Find(&packs).Error; err != nil {
		return nil, err
	}
	return packs, nil
}

// GetCreditPackByProductID loads a pack by the payment processor product id.
func (r *GormRepository) GetCreditPackByProductID(ctx context.Context, productID string) (*entity.DbCreditPack, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	trimmed := strings.TrimSpace(productID)
	if trimmed == "" {
		return nil, fmt.Errorf("product id is empty")
	}
	var pack entity.DbCreditPack
	if err := r.db.WithContext(ctx).Where("product_id = ?", trimmed).First(&pack).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

// UpsertCreditPack inserts or refreshes a seeded pack keyed by product id.
func (r *GormRepository) UpsertCreditPack(ctx context.Context, pack *entity.DbCreditPack) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if pack == nil || strings.TrimSpace(pack.ProductID) == "" {
		return fmt.Errorf("invalid credit pack")
	}

	var existing entity.DbCreditPack
	err := r.db.WithContext(ctx).Where("product_id = ?", pack.ProductID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(pack).Error
	}
	if err != nil {
		return err
	}

	pack.ID = existing.ID
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"name":        pack.Name,
		"credits":     pack.Credits,
		"price_cents": pack.PriceCents,
		"is_active":   pack.IsActive,
	}).Error
}

// ApplyPurchase records a processed payment and grants its credits in one
// transaction. The unique sale id makes webhook retries no-ops.
func (r *GormRepository) ApplyPurchase(ctx context.Context, purchase *entity.DbPurchase) (int, error) {
	if r == nil || r.db == nil {
		return 0, fmt.Errorf("repository not initialised")
	}
	if purchase == nil || strings.TrimSpace(purchase.SaleID) == "" || purchase.UserID == 0 || purchase.Credits <= 0 {
		return 0, fmt.Errorf("invalid purchase")
	}

	var balance int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			if isDuplicateKey(err) {
				return ErrDuplicateSale
			}
			return err
		}
		var err error
		balance, err = grantCreditsTx(tx, purchase.UserID, purchase.Credits, entity.CreditTxPurchase, purchase.SaleID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateReferral links a referred user to their referrer.
func (r *GormRepository) CreateReferral(ctx context.Context, referral *entity.DbReferral) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if referral == nil || referral.ReferrerUserID == 0 || referral.ReferredUserID == 0 {
		return fmt.Errorf("invalid referral")
	}
	if referral.ReferrerUserID == referral.ReferredUserID {
		return fmt.Errorf("self referral")
	}
	return r.db.WithContext(ctx).Create(referral).Error
}

// GetReferralByReferredUser loads the referral row for a referred user.
func (r *GormRepository) GetReferralByReferredUser(ctx context.Context, referredUserID uint) (*entity.DbReferral, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if referredUserID == 0 {
		return nil, fmt.Errorf("invalid referred user id")
	}
	var referral entity.DbReferral
	if err := r.db.WithContext(ctx).Where("referred_user_id = ?", referredUserID).First(&referral).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

// GrantReferralReward flips reward_granted exactly once and credits the
// referrer. The guarded UPDATE is the idempotency barrier.
func (r *GormRepository) GrantReferralReward(ctx context.Context, referredUserID uint, credits int) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	if referredUserID == 0 || credits <= 0 {
		return false, fmt.Errorf("invalid referral reward")
	}

	granted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referral entity.DbReferral
		if err := tx.Where("referred_user_id = ?", referredUserID).First(&referral).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		result := tx.Model(&entity.DbReferral{}).
			Where("id = ? AND reward_granted = ?", referral.ID, false).
			Update("reward_granted", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		if _, err := grantCreditsTx(tx, referral.ReferrerUserID, credits, entity.CreditTxReferral, fmt.Sprintf("referral:%d", referredUserID)); err != nil {
			return err
		}
		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// GrantShareReward credits a share reward at most once per user+platform. The
// unique index on the share row is the idempotency barrier.
func (r *GormRepository) GrantShareReward(ctx context.Context, userID uint, platform string, credits int) (bool, int, error) {
	if r == nil || r.db == nil {
		return false, 0, fmt.Errorf("repository not initialised")
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if userID == 0 || platform == "" || credits <= 0 {
		return false, 0, fmt.Errorf("invalid share reward")
	}

	balance := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entity.DbShareReward{
			UserID:   userID,
			Platform: platform,
			Credits:  credits,
		}).Error; err != nil {
			return err
		}

		var err error
		balance, err = grantCreditsTx(tx, userID, credits, entity.CreditTxShare, "share:"+platform)
		return err
	})
	if err != nil {
		// A duplicate insert means this platform was already rewarded.
		// The transaction rolled back, so read the balance outside it.
		if isDuplicateKey(err) {
			user, getErr := r.GetUserByID(ctx, userID)
			if getErr != nil {
				return false, 0, getErr
			}
			return false, user.Credits, nil
		}
		return false, 0, err
	}
	return true, balance, nil
}
