package service

import (
	"context"
	"errors"
	"testing"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
)

func webhookServiceForTest(t *testing.T) (*WebhookService, model.Repository) {
	t.Helper()
	repo := testRepo(t)
	svc := NewWebhookService(config.Config{
		WebhookSellerToken: "seller-token",
		ReferralCredits:    5,
	}, repo)
	return svc, repo
}

func seedPack(t *testing.T, repo model.Repository) *entity.DbCreditPack {
	t.Helper()
	pack := &entity.DbCreditPack{
		ProductID:  "echoes-starter-10",
		Name:       "Starter Pack",
		Credits:    10,
		PriceCents: 499,
		IsActive:   true,
	}
	if err := repo.UpsertCreditPack(context.Background(), pack); err != nil {
		t.Fatalf("UpsertCreditPack: %v", err)
	}
	return pack
}

func TestProcessPaymentGrantsCredits(t *testing.T) {
	svc, repo := webhookServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)
	seedPack(t, repo)

	err := svc.ProcessPayment(ctx, PaymentNotification{
		SellerToken: "seller-token",
		SaleID:      "sale-1",
		ProductID:   "echoes-starter-10",
		BuyerEmail:  user.Email,
	})
	if err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	reloaded, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 10 {
		t.Errorf("credits = %d, want 10", reloaded.Credits)
	}
}

func TestProcessPaymentReplayIsNoOp(t *testing.T) {
	svc, repo := webhookServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)
	seedPack(t, repo)

	note := PaymentNotification{
		SellerToken: "seller-token",
		SaleID:      "sale-1",
		ProductID:   "echoes-starter-10",
		BuyerEmail:  user.Email,
	}
	if err := svc.ProcessPayment(ctx, note); err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}
	if err := svc.ProcessPayment(ctx, note); err != nil {
		t.Fatalf("ProcessPayment replay: %v", err)
	}

	reloaded, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 10 {
		t.Errorf("credits after replay = %d, want 10", reloaded.Credits)
	}
}

func TestProcessPaymentBadToken(t *testing.T) {
	svc, repo := webhookServiceForTest(t)
	user := seedUser(t, repo, 0)
	seedPack(t, repo)

	err := svc.ProcessPayment(context.Background(), PaymentNotification{
		SellerToken: "wrong",
		SaleID:      "sale-1",
		ProductID:   "echoes-starter-10",
		BuyerEmail:  user.Email,
	})
	if !errors.Is(err, ErrWebhookUnauthorized) {
		t.Fatalf("err = %v, want ErrWebhookUnauthorized", err)
	}
}

func TestProcessPaymentUnknownBuyerAndProduct(t *testing.T) {
	svc, repo := webhookServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)
	seedPack(t, repo)

	err := svc.ProcessPayment(ctx, PaymentNotification{
		SellerToken: "seller-token",
		SaleID:      "sale-1",
		ProductID:   "echoes-starter-10",
		BuyerEmail:  "nobody@example.com",
	})
	if !errors.Is(err, ErrUnknownBuyer) {
		t.Fatalf("err = %v, want ErrUnknownBuyer", err)
	}

	err = svc.ProcessPayment(ctx, PaymentNotification{
		SellerToken: "seller-token",
		SaleID:      "sale-2",
		ProductID:   "missing-product",
		BuyerEmail:  user.Email,
	})
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("err = %v, want ErrUnknownProduct", err)
	}
}

func TestProcessPaymentReleasesReferralReward(t *testing.T) {
	svc, repo := webhookServiceForTest(t)
	ctx := context.Background()
	seedPack(t, repo)

	referrer := &entity.DbUser{
		Email: "referrer@example.com", PasswordHash: "hash",
		Role: entity.UserRoleUser, IsActive: true, ReferralCode: "REF-R",
	}
	if err := repo.CreateUser(ctx, referrer); err != nil {
		t.Fatalf("create referrer: %v", err)
	}
	buyer := &entity.DbUser{
		Email: "buyer@example.com", PasswordHash: "hash",
		Role: entity.UserRoleUser, IsActive: true, ReferralCode: "REF-B",
	}
	if err := repo.CreateUser(ctx, buyer); err != nil {
		t.Fatalf("create buyer: %v", err)
	}
	if err := repo.CreateReferral(ctx, &entity.DbReferral{
		ReferrerUserID: referrer.ID,
		ReferredUserID: buyer.ID,
	}); err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}

	note := PaymentNotification{
		SellerToken: "seller-token",
		SaleID:      "sale-1",
		ProductID:   "echoes-starter-10",
		BuyerEmail:  buyer.Email,
	}
	if err := svc.ProcessPayment(ctx, note); err != nil {
		t.Fatalf("ProcessPayment: %v", err)
	}

	reloaded, err := repo.GetUserByID(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 5 {
		t.Errorf("referrer credits = %d, want 5", reloaded.Credits)
	}

	// A second purchase must not reward the referrer again.
	note.SaleID = "sale-2"
	if err := svc.ProcessPayment(ctx, note); err != nil {
		t.Fatalf("ProcessPayment second sale: %v", err)
	}
	reloaded, err = repo.GetUserByID(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 5 {
		t.Errorf("referrer credits after second sale = %d, want 5", reloaded.Credits)
	}
}
