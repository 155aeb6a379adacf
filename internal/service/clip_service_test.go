package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
	modelsql "echoes/internal/model/sql"
	"echoes/internal/provider"
	"echoes/internal/storage"
)

type fakeProvider struct {
	jobID     string
	submitErr error
	status    *provider.JobStatus
	statusErr error
	submitted []provider.GenerateClipRequest
}

func (f *fakeProvider) ID() string { return "fake" }

func (f *fakeProvider) Submit(_ context.Context, req provider.GenerateClipRequest) (string, error) {
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeProvider) Status(context.Context, string) (*provider.JobStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func testRepo(t *testing.T) model.Repository {
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
	return modelsql.NewGormRepository(db)
}

func testStorage(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewLocalStorage(config.Config{
		StorageLocalDir:   t.TempDir(),
		StorageSignSecret: "test-secret",
	})
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return store
}

func clipServiceForTest(t *testing.T, fp *fakeProvider) (*ClipService, model.Repository) {
	t.Helper()
	repo := testRepo(t)
	svc := NewClipService(config.Config{
		ClipCreditCost:  1,
		ClipDurationSec: 5,
		ClipEstimateSec: 90,
		SignedURLTTLSec: 3600,
	}, repo, testStorage(t), fp)
	return svc, repo
}

func seedUser(t *testing.T, repo model.Repository, credits int) *entity.DbUser {
	t.Helper()
	user := &entity.DbUser{
		Email:        "user@example.com",
		PasswordHash: "hash",
		Role:         entity.UserRoleUser,
		IsActive:     true,
		Credits:      credits,
		ReferralCode: "REF-USER",
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestSubmitClipChargesAfterAccept(t *testing.T) {
	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	ctx := context.Background()
	user := seedUser(t, repo, 3)

	resp, err := svc.SubmitClip(ctx, user.ID, SubmitClipInput{
		Prompt:    "gentle camera push in",
		ImageData: testJPEG(t, 640, 360),
	})
	if err != nil {
		t.Fatalf("SubmitClip: %v", err)
	}
	if resp.Status != entity.ClipStatusProcessing {
		t.Errorf("status = %s, want processing", resp.Status)
	}
	if resp.CreditsRemaining != 2 {
		t.Errorf("credits remaining = %d, want 2", resp.CreditsRemaining)
	}

	clip, err := repo.GetClip(ctx, resp.ClipID)
	if err != nil {
		t.Fatalf("GetClip: %v", err)
	}
	if clip.Status != entity.ClipStatusProcessing || clip.GenerationJobID != "job-1" {
		t.Errorf("clip = %s job %q, want processing/job-1", clip.Status, clip.GenerationJobID)
	}
	if clip.SubmittedAt == nil {
		t.Error("expected submitted_at to be recorded")
	}
	if len(fp.submitted) != 1 {
		t.Fatalf("provider submissions = %d, want 1", len(fp.submitted))
	}
	if fp.submitted[0].DurationSec != 5 {
		t.Errorf("duration = %d, want 5", fp.submitted[0].DurationSec)
	}
	if fp.submitted[0].Ratio.Name != "landscape_hd" {
		t.Errorf("ratio = %s, want landscape_hd", fp.submitted[0].Ratio.Name)
	}
}

func TestSubmitClipProviderRejectDoesNotCharge(t *testing.T) {
	fp := &fakeProvider{submitErr: errors.New("content policy")}
	svc, repo := clipServiceForTest(t, fp)
	ctx := context.Background()
	user := seedUser(t, repo, 3)

	_, err := svc.SubmitClip(ctx, user.ID, SubmitClipInput{
		Prompt:    "test",
		ImageData: testJPEG(t, 640, 360),
	})
	if !errors.Is(err, ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}

	reloaded, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if reloaded.Credits != 3 {
		t.Errorf("credits = %d, want 3 (no charge on rejection)", reloaded.Credits)
	}

	clips, _, err := repo.ListClips(ctx, &entity.ClipQuery{UserID: user.ID})
	if err != nil {
		t.Fatalf("ListClips: %v", err)
	}
	if len(clips) != 1 || clips[0].Status != entity.ClipStatusFailed {
		t.Errorf("expected one failed clip, got %+v", clips)
	}
}

func TestSubmitClipInsufficientCredits(t *testing.T) {
	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	user := seedUser(t, repo, 0)

	_, err := svc.SubmitClip(context.Background(), user.ID, SubmitClipInput{
		ImageData: testJPEG(t, 640, 360),
	})
	if !errors.Is(err, model.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if len(fp.submitted) != 0 {
		t.Error("provider must not be called without credits")
	}
}

func TestSubmitClipMissingImage(t *testing.T) {
	svc, repo := clipServiceForTest(t, &fakeProvider{jobID: "job-1"})
	user := seedUser(t, repo, 3)

	_, err := svc.SubmitClip(context.Background(), user.ID, SubmitClipInput{Prompt: "no image"})
	if !errors.Is(err, ErrMissingImage) {
		t.Fatalf("err = %v, want ErrMissingImage", err)
	}
}

func submitProcessingClip(t *testing.T, svc *ClipService, repo model.Repository, userID uint) string {
	t.Helper()
	resp, err := svc.SubmitClip(context.Background(), userID, SubmitClipInput{
		Prompt:    "test",
		ImageData: testJPEG(t, 640, 360),
	})
	if err != nil {
		t.Fatalf("SubmitClip: %v", err)
	}
	return resp.ClipID
}

func TestGetClipStatusCompletesClip(t *testing.T) {
	videoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fake-mp4-bytes"))
	}))
	defer videoServer.Close()

	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	ctx := context.Background()
	user := seedUser(t, repo, 3)
	clipID := submitProcessingClip(t, svc, repo, user.ID)

	fp.status = &provider.JobStatus{State: provider.JobStateCompleted, VideoURL: videoServer.URL}

	resp, err := svc.GetClipStatus(ctx, user.ID, clipID)
	if err != nil {
		t.Fatalf("GetClipStatus: %v", err)
	}
	if resp.Status != entity.ClipStatusCompleted {
		t.Errorf("status = %s, want completed", resp.Status)
	}
	if resp.Progress != 100 {
		t.Errorf("progress = %d, want 100", resp.Progress)
	}
	if resp.VideoURL == "" {
		t.Error("expected a signed video url")
	}

	clip, err := repo.GetClip(ctx, clipID)
	if err != nil {
		t.Fatalf("GetClip: %v", err)
	}
	if clip.Status != entity.ClipStatusCompleted || clip.VideoPath == "" {
		t.Errorf("clip = %s path %q, want completed with path", clip.Status, clip.VideoPath)
	}
}

func TestGetClipStatusProviderFailure(t *testing.T) {
	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	ctx := context.Background()
	user := seedUser(t, repo, 3)
	clipID := submitProcessingClip(t, svc, repo, user.ID)

	fp.status = &provider.JobStatus{State: provider.JobStateFailed, ErrorMessage: "generation failed upstream"}

	resp, err := svc.GetClipStatus(ctx, user.ID, clipID)
	if err != nil {
		t.Fatalf("GetClipStatus: %v", err)
	}
	if resp.Status != entity.ClipStatusFailed {
		t.Errorf("status = %s, want failed", resp.Status)
	}
	if resp.ErrorMessage == "" {
		t.Error("expected an error message")
	}
}

func TestGetClipStatusTransientProviderErrorKeepsStored(t *testing.T) {
	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	ctx := context.Background()
	user := seedUser(t, repo, 3)
	clipID := submitProcessingClip(t, svc, repo, user.ID)

	fp.statusErr = errors.New("timeout")

	resp, err := svc.GetClipStatus(ctx, user.ID, clipID)
	if err != nil {
		t.Fatalf("GetClipStatus: %v", err)
	}
	if resp.Status != entity.ClipStatusProcessing {
		t.Errorf("status = %s, want processing on transient provider error", resp.Status)
	}
}

func TestGetClipStatusHidesOtherUsersClips(t *testing.T) {
	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	user := seedUser(t, repo, 3)
	clipID := submitProcessingClip(t, svc, repo, user.ID)

	_, err := svc.GetClipStatus(context.Background(), user.ID+1, clipID)
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestProgressEstimate(t *testing.T) {
	svc, _ := clipServiceForTest(t, &fakeProvider{})
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base.Add(45 * time.Second) }

	submitted := base
	progress, remaining := svc.progressEstimate(&entity.DbClip{
		EstimatedSeconds: 90,
		SubmittedAt:      &submitted,
	})
	if progress != 50 {
		t.Errorf("progress = %d, want 50", progress)
	}
	if remaining != 45 {
		t.Errorf("remaining = %d, want 45", remaining)
	}

	// Past the estimate the progress saturates below done.
	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	progress, remaining = svc.progressEstimate(&entity.DbClip{
		EstimatedSeconds: 90,
		SubmittedAt:      &submitted,
	})
	if progress != 90 {
		t.Errorf("progress = %d, want 90 cap", progress)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestSubmitClipCreatesProjectWhenMissing(t *testing.T) {
	fp := &fakeProvider{jobID: "job-1"}
	svc, repo := clipServiceForTest(t, fp)
	ctx := context.Background()
	user := seedUser(t, repo, 3)

	resp, err := svc.SubmitClip(ctx, user.ID, SubmitClipInput{
		ImageData: testJPEG(t, 640, 360),
	})
	if err != nil {
		t.Fatalf("SubmitClip: %v", err)
	}
	if resp.ProjectID == "" {
		t.Fatal("expected a project to be created")
	}
	project, err := repo.GetProject(ctx, resp.ProjectID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if project.UserID != user.ID {
		t.Errorf("project owner = %d, want %d", project.UserID, user.ID)
	}
}
