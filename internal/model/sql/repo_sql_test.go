package sql

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"echoes/internal/entity"
)

func repoForTest(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&entity.DbUser{},
		&entity.DbProject{},
		&entity.DbClip{},
		&entity.DbFinalVideo{},
		&entity.DbMusicTrack{},
		&entity.DbCreditPack{},
		&entity.DbCreditTransaction{},
		&entity.DbPurchase{},
		&entity.DbReferral{},
		&entity.DbShareReward{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormRepository(db)
}

func createTestUser(t *testing.T, repo *GormRepository, email, referralCode string, credits int) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Email:        email,
		PasswordHash: "hash",
		Role:         entity.UserRoleUser,
		IsActive:     true,
		Credits:      credits,
		ReferralCode: referralCode,
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestSpendCreditsWritesLedger(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 5)

	balance, err := repo.SpendCredits(ctx, user.ID, 2, entity.CreditTxGeneration, "clip-1")
	if err != nil {
		t.Fatalf("SpendCredits: %v", err)
	}
	if balance != 3 {
		t.Errorf("balance = %d, want 3", balance)
	}

	txs, _, err := repo.ListCreditTransactions(ctx, &entity.TransactionQuery{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListCreditTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(txs))
	}
	if txs[0].Amount != -2 || txs[0].BalanceAfter != 3 {
		t.Errorf("ledger row = %+v", txs[0])
	}
}

func TestSpendCreditsInsufficient(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 1)

	_, err := repo.SpendCredits(ctx, user.ID, 2, entity.CreditTxGeneration, "clip-1")
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// Neither the balance nor the ledger may have changed.
	reloaded, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 1 {
		t.Errorf("credits = %d, want 1", reloaded.Credits)
	}
	txs, _, err := repo.ListCreditTransactions(ctx, &entity.TransactionQuery{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListCreditTransactions: %v", err)
	}
	if len(txs) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(txs))
	}
}

func TestGrantCredits(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 0)

	balance, err := repo.GrantCredits(ctx, user.ID, 5, entity.CreditTxSignup, "signup")
	if err != nil {
		t.Fatalf("GrantCredits: %v", err)
	}
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
}

func TestAdvanceClipStatusCAS(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 5)

	clip := &entity.DbClip{
		ID:        "clip-1",
		ProjectID: "proj-1",
		UserID:    user.ID,
		ImageURL:  "sources/1/clip-1.jpg",
		Status:    entity.ClipStatusPending,
	}
	if err := repo.CreateClip(ctx, clip); err != nil {
		t.Fatalf("CreateClip: %v", err)
	}

	won, err := repo.AdvanceClipStatus(ctx, clip.ID, entity.ClipStatusPending, entity.ClipStatusProcessing, entity.ClipUpdates{})
	if err != nil {
		t.Fatalf("AdvanceClipStatus: %v", err)
	}
	if !won {
		t.Fatal("expected transition to win")
	}

	// Second identical transition loses the CAS.
	won, err = repo.AdvanceClipStatus(ctx, clip.ID, entity.ClipStatusPending, entity.ClipStatusProcessing, entity.ClipUpdates{})
	if err != nil {
		t.Fatalf("AdvanceClipStatus repeat: %v", err)
	}
	if won {
		t.Error("expected repeated transition to lose")
	}
}

func TestAdvanceFinalVideoStatusCAS(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 5)

	video := &entity.DbFinalVideo{
		ID:        "fv-1",
		ProjectID: "proj-1",
		UserID:    user.ID,
		ClipIDs:   entity.StringArray{"clip-1"},
		Status:    entity.FinalVideoStatusDraft,
	}
	if err := repo.CreateFinalVideo(ctx, video); err != nil {
		t.Fatalf("CreateFinalVideo: %v", err)
	}

	won, err := repo.AdvanceFinalVideoStatus(ctx, video.ID, entity.FinalVideoStatusDraft, entity.FinalVideoStatusProcessing, entity.FinalVideoUpdates{})
	if err != nil {
		t.Fatalf("AdvanceFinalVideoStatus: %v", err)
	}
	if !won {
		t.Fatal("expected transition to win")
	}

	// A rival compile attempting the same claim loses the CAS.
	won, err = repo.AdvanceFinalVideoStatus(ctx, video.ID, entity.FinalVideoStatusDraft, entity.FinalVideoStatusProcessing, entity.FinalVideoUpdates{})
	if err != nil {
		t.Fatalf("AdvanceFinalVideoStatus repeat: %v", err)
	}
	if won {
		t.Error("expected repeated claim to lose")
	}

	reloaded, err := repo.GetFinalVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("GetFinalVideo: %v", err)
	}
	if reloaded.Status != entity.FinalVideoStatusProcessing {
		t.Errorf("status = %s, want processing", reloaded.Status)
	}
}

func TestAdvanceFinalVideoStatusIllegalTransition(t *testing.T) {
	repo := repoForTest(t)
	_, err := repo.AdvanceFinalVideoStatus(context.Background(), "fv-1", entity.FinalVideoStatusCompleted, entity.FinalVideoStatusDraft, entity.FinalVideoUpdates{})
	if err == nil {
		t.Fatal("expected error for illegal transition")
	}
}

func TestAdvanceClipStatusIllegalTransition(t *testing.T) {
	repo := repoForTest(t)
	_, err := repo.AdvanceClipStatus(context.Background(), "clip-1", entity.ClipStatusCompleted, entity.ClipStatusPending, entity.ClipUpdates{})
	if err == nil {
		t.Fatal("expected error for illegal transition")
	}
}

func TestApplyPurchaseIdempotent(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 0)

	purchase := &entity.DbPurchase{
		SaleID:       "sale-1",
		UserID:       user.ID,
		CreditPackID: 1,
		Credits:      10,
	}
	balance, err := repo.ApplyPurchase(ctx, purchase)
	if err != nil {
		t.Fatalf("ApplyPurchase: %v", err)
	}
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}

	_, err = repo.ApplyPurchase(ctx, &entity.DbPurchase{
		SaleID:       "sale-1",
		UserID:       user.ID,
		CreditPackID: 1,
		Credits:      10,
	})
	if !errors.Is(err, ErrDuplicateSale) {
		t.Fatalf("err = %v, want ErrDuplicateSale", err)
	}

	reloaded, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 10 {
		t.Errorf("credits after replay = %d, want 10", reloaded.Credits)
	}
}

func TestGrantReferralRewardOnce(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	referrer := createTestUser(t, repo, "ref@example.com", "REF-R", 0)
	referred := createTestUser(t, repo, "new@example.com", "REF-N", 0)

	if err := repo.CreateReferral(ctx, &entity.DbReferral{
		ReferrerUserID: referrer.ID,
		ReferredUserID: referred.ID,
	}); err != nil {
		t.Fatalf("CreateReferral: %v", err)
	}

	granted, err := repo.GrantReferralReward(ctx, referred.ID, 5)
	if err != nil {
		t.Fatalf("GrantReferralReward: %v", err)
	}
	if !granted {
		t.Fatal("expected first grant to succeed")
	}

	granted, err = repo.GrantReferralReward(ctx, referred.ID, 5)
	if err != nil {
		t.Fatalf("GrantReferralReward repeat: %v", err)
	}
	if granted {
		t.Error("expected repeat grant to be a no-op")
	}

	reloaded, err := repo.GetUserByID(ctx, referrer.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 5 {
		t.Errorf("referrer credits = %d, want 5", reloaded.Credits)
	}
}

func TestGrantReferralRewardNoReferral(t *testing.T) {
	repo := repoForTest(t)
	user := createTestUser(t, repo, "solo@example.com", "REF-S", 0)

	granted, err := repo.GrantReferralReward(context.Background(), user.ID, 5)
	if err != nil {
		t.Fatalf("GrantReferralReward: %v", err)
	}
	if granted {
		t.Error("expected no grant without a referral row")
	}
}

func TestGrantShareRewardOncePerPlatform(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 0)

	granted, balance, err := repo.GrantShareReward(ctx, user.ID, "instagram", 1)
	if err != nil {
		t.Fatalf("GrantShareReward: %v", err)
	}
	if !granted || balance != 1 {
		t.Errorf("granted=%v balance=%d, want true/1", granted, balance)
	}

	granted, balance, err = repo.GrantShareReward(ctx, user.ID, "instagram", 1)
	if err != nil {
		t.Fatalf("GrantShareReward repeat: %v", err)
	}
	if granted {
		t.Error("expected repeat share to be a no-op")
	}
	if balance != 1 {
		t.Errorf("balance after repeat = %d, want 1", balance)
	}

	// A different platform rewards again.
	granted, balance, err = repo.GrantShareReward(ctx, user.ID, "tiktok", 1)
	if err != nil {
		t.Fatalf("GrantShareReward tiktok: %v", err)
	}
	if !granted || balance != 2 {
		t.Errorf("granted=%v balance=%d, want true/2", granted, balance)
	}
}

func TestListProjectSummariesCounts(t *testing.T) {
	repo := repoForTest(t)
	ctx := context.Background()
	user := createTestUser(t, repo, "a@example.com", "REF-A", 0)

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: user.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	for i, status := range []entity.ClipStatus{entity.ClipStatusCompleted, entity.ClipStatusProcessing} {
		if err := repo.CreateClip(ctx, &entity.DbClip{
			ID:        clipID(i),
			ProjectID: "proj-1",
			UserID:    user.ID,
			ImageURL:  "x",
			Status:    status,
			ClipIndex: i,
		}); err != nil {
			t.Fatalf("CreateClip: %v", err)
		}
	}

	summaries, meta, err := repo.ListProjectSummaries(ctx, &entity.ProjectQuery{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListProjectSummaries: %v", err)
	}
	if meta.Total != 1 || len(summaries) != 1 {
		t.Fatalf("summaries = %d (total %d), want 1", len(summaries), meta.Total)
	}
	if summaries[0].ClipCount != 2 || summaries[0].CompletedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", summaries[0].ClipCount, summaries[0].CompletedCount)
	}
}

func clipID(i int) string {
	return string(rune('a' + i))
}
