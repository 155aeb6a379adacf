package service

import (
	"context"
	"errors"
	"testing"

	"echoes/internal/config"
	"echoes/internal/entity"
)

func creditServiceForTest(t *testing.T) (*CreditService, *entity.DbUser) {
	t.Helper()
	repo := testRepo(t)
	user := seedUser(t, repo, 2)
	return NewCreditService(config.Config{ShareRewardCredits: 1}, repo), user
}

func TestGetBalance(t *testing.T) {
	svc, user := creditServiceForTest(t)

	resp, err := svc.GetBalance(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if resp.Credits != 2 {
		t.Errorf("credits = %d, want 2", resp.Credits)
	}
}

func TestClaimShareReward(t *testing.T) {
	svc, user := creditServiceForTest(t)
	ctx := context.Background()

	resp, err := svc.ClaimShareReward(ctx, user.ID, "Instagram")
	if err != nil {
		t.Fatalf("ClaimShareReward: %v", err)
	}
	if !resp.Granted || resp.CreditsRemaining != 3 {
		t.Errorf("granted=%v credits=%d, want true/3", resp.Granted, resp.CreditsRemaining)
	}

	resp, err = svc.ClaimShareReward(ctx, user.ID, "instagram")
	if err != nil {
		t.Fatalf("ClaimShareReward repeat: %v", err)
	}
	if resp.Granted {
		t.Error("expected repeat claim to be refused")
	}
	if resp.CreditsRemaining != 3 {
		t.Errorf("credits after repeat = %d, want 3", resp.CreditsRemaining)
	}
}

func TestClaimShareRewardUnknownPlatform(t *testing.T) {
	svc, user := creditServiceForTest(t)

	_, err := svc.ClaimShareReward(context.Background(), user.ID, "myspace")
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("err = %v, want ErrUnknownPlatform", err)
	}
}
