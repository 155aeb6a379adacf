package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
	"echoes/internal/storage"
)

func finalVideoServiceForTest(t *testing.T) (*FinalVideoService, model.Repository, storage.Storage) {
	t.Helper()
	repo := testRepo(t)
	store := testStorage(t)
	svc := NewFinalVideoService(config.Config{
		SignedURLTTLSec: 3600,
		FFmpegWorkDir:   t.TempDir(),
	}, repo, store)
	return svc, repo, store
}

func seedCompletedClip(t *testing.T, repo model.Repository, store storage.Storage, userID uint, projectID string, index int) *entity.DbClip {
	t.Helper()
	ctx := context.Background()
	clipID := uuid.NewString()
	key, err := store.Save(ctx, []byte("clip-bytes-"+clipID), storage.SaveOptions{
		Key: storage.ClipVideoKey(userID, projectID, clipID),
	})
	if err != nil {
		t.Fatalf("save clip video: %v", err)
	}
	clip := &entity.DbClip{
		ID:        clipID,
		ProjectID: projectID,
		UserID:    userID,
		ImageURL:  "x",
		Status:    entity.ClipStatusCompleted,
		VideoPath: key,
		ClipIndex: index,
	}
	if err := repo.CreateClip(ctx, clip); err != nil {
		t.Fatalf("CreateClip: %v", err)
	}
	return clip
}

func TestCreateFinalVideoCompiles(t *testing.T) {
	svc, repo, store := finalVideoServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: user.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	clipA := seedCompletedClip(t, repo, store, user.ID, "proj-1", 0)
	clipB := seedCompletedClip(t, repo, store, user.ID, "proj-1", 1)

	// Stand in for the encoder: verify the staged inputs and emit an output.
	svc.runCommand = func(_ context.Context, _ string, args ...string) error {
		outputPath := args[len(args)-1]
		return os.WriteFile(outputPath, []byte("compiled"), 0o644)
	}

	resp, err := svc.CreateFinalVideo(ctx, user.ID, entity.CreateFinalVideoRequest{
		ProjectID: "proj-1",
		ClipIDs:   []string{clipA.ID, clipB.ID},
	})
	if err != nil {
		t.Fatalf("CreateFinalVideo: %v", err)
	}
	if resp.Status != entity.FinalVideoStatusDraft {
		t.Errorf("status = %s, want draft", resp.Status)
	}

	compiled, err := svc.CompileFinalVideo(ctx, user.ID, resp.ID)
	if err != nil {
		t.Fatalf("CompileFinalVideo: %v", err)
	}
	if compiled.Status != entity.FinalVideoStatusProcessing {
		t.Errorf("status = %s, want processing", compiled.Status)
	}

	video := waitForFinalVideo(t, repo, resp.ID)
	if video.Status != entity.FinalVideoStatusCompleted {
		t.Fatalf("status = %s (%s), want completed", video.Status, video.ErrorMessage)
	}
	if video.VideoPath == "" {
		t.Error("expected a stored video path")
	}

	detail, err := svc.GetFinalVideo(ctx, user.ID, resp.ID)
	if err != nil {
		t.Fatalf("GetFinalVideo: %v", err)
	}
	if detail.VideoURL == "" {
		t.Error("expected a signed playback url")
	}
}

func TestCreateFinalVideoCompileFailure(t *testing.T) {
	svc, repo, store := finalVideoServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: user.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	clip := seedCompletedClip(t, repo, store, user.ID, "proj-1", 0)

	svc.runCommand = func(context.Context, string, ...string) error {
		return errors.New("encoder exploded")
	}

	resp, err := svc.CreateFinalVideo(ctx, user.ID, entity.CreateFinalVideoRequest{
		ProjectID: "proj-1",
		ClipIDs:   []string{clip.ID},
	})
	if err != nil {
		t.Fatalf("CreateFinalVideo: %v", err)
	}
	if _, err := svc.CompileFinalVideo(ctx, user.ID, resp.ID); err != nil {
		t.Fatalf("CompileFinalVideo: %v", err)
	}

	video := waitForFinalVideo(t, repo, resp.ID)
	if video.Status != entity.FinalVideoStatusFailed {
		t.Errorf("status = %s, want failed", video.Status)
	}
	if video.ErrorMessage == "" {
		t.Error("expected an error message")
	}
}

func TestCreateFinalVideoRejectsUnfinishedClips(t *testing.T) {
	svc, repo, _ := finalVideoServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: user.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	clip := &entity.DbClip{
		ID: "clip-1", ProjectID: "proj-1", UserID: user.ID,
		ImageURL: "x", Status: entity.ClipStatusProcessing,
	}
	if err := repo.CreateClip(ctx, clip); err != nil {
		t.Fatalf("CreateClip: %v", err)
	}

	_, err := svc.CreateFinalVideo(ctx, user.ID, entity.CreateFinalVideoRequest{
		ProjectID: "proj-1",
		ClipIDs:   []string{clip.ID},
	})
	if !errors.Is(err, ErrClipsNotCompleted) {
		t.Fatalf("err = %v, want ErrClipsNotCompleted", err)
	}
}

func TestCreateFinalVideoRejectsForeignClips(t *testing.T) {
	svc, repo, store := finalVideoServiceForTest(t)
	ctx := context.Background()
	owner := seedUser(t, repo, 0)
	other := &entity.DbUser{
		Email: "other@example.com", PasswordHash: "hash",
		Role: entity.UserRoleUser, IsActive: true, ReferralCode: "REF-O",
	}
	if err := repo.CreateUser(ctx, other); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: owner.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	clip := seedCompletedClip(t, repo, store, owner.ID, "proj-1", 0)

	_, err := svc.CreateFinalVideo(ctx, other.ID, entity.CreateFinalVideoRequest{
		ProjectID: "proj-1",
		ClipIDs:   []string{clip.ID},
	})
	if !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
}

func TestCompileFinalVideoRequiresDraft(t *testing.T) {
	svc, repo, store := finalVideoServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: user.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	clip := seedCompletedClip(t, repo, store, user.ID, "proj-1", 0)

	svc.runCommand = func(_ context.Context, _ string, args ...string) error {
		return os.WriteFile(args[len(args)-1], []byte("compiled"), 0o644)
	}

	resp, err := svc.CreateFinalVideo(ctx, user.ID, entity.CreateFinalVideoRequest{
		ProjectID: "proj-1",
		ClipIDs:   []string{clip.ID},
	})
	if err != nil {
		t.Fatalf("CreateFinalVideo: %v", err)
	}
	if _, err := svc.CompileFinalVideo(ctx, user.ID, resp.ID); err != nil {
		t.Fatalf("CompileFinalVideo: %v", err)
	}

	_, err = svc.CompileFinalVideo(ctx, user.ID, resp.ID)
	if !errors.Is(err, ErrFinalVideoNotDraft) {
		t.Fatalf("err = %v, want ErrFinalVideoNotDraft", err)
	}
}

func TestCompileFinalVideoSingleClaim(t *testing.T) {
	svc, repo, store := finalVideoServiceForTest(t)
	ctx := context.Background()
	user := seedUser(t, repo, 0)

	if err := repo.CreateProject(ctx, &entity.DbProject{ID: "proj-1", UserID: user.ID, Name: "Trip"}); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	clip := seedCompletedClip(t, repo, store, user.ID, "proj-1", 0)

	encodes := 0
	svc.runCommand = func(_ context.Context, _ string, args ...string) error {
		encodes++
		return os.WriteFile(args[len(args)-1], []byte("compiled"), 0o644)
	}

	resp, err := svc.CreateFinalVideo(ctx, user.ID, entity.CreateFinalVideoRequest{
		ProjectID: "proj-1",
		ClipIDs:   []string{clip.ID},
	})
	if err != nil {
		t.Fatalf("CreateFinalVideo: %v", err)
	}

	// A rival request claims the draft first; this call must lose the
	// status compare-and-swap and start no encode of its own.
	won, err := repo.AdvanceFinalVideoStatus(ctx, resp.ID, entity.FinalVideoStatusDraft, entity.FinalVideoStatusProcessing, entity.FinalVideoUpdates{})
	if err != nil || !won {
		t.Fatalf("AdvanceFinalVideoStatus: won=%v err=%v", won, err)
	}

	_, err = svc.CompileFinalVideo(ctx, user.ID, resp.ID)
	if !errors.Is(err, ErrFinalVideoNotDraft) {
		t.Fatalf("err = %v, want ErrFinalVideoNotDraft", err)
	}
	if encodes != 0 {
		t.Errorf("encodes = %d, want 0", encodes)
	}

	video, err := repo.GetFinalVideo(ctx, resp.ID)
	if err != nil {
		t.Fatalf("GetFinalVideo: %v", err)
	}
	if video.Status != entity.FinalVideoStatusProcessing {
		t.Errorf("status = %s, want processing", video.Status)
	}
}

func TestCompileArgs(t *testing.T) {
	args := compileArgs("/tmp/inputs.txt", "", "/tmp/out.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f concat") || !strings.Contains(joined, "/tmp/out.mp4") {
		t.Errorf("args = %q", joined)
	}
	if strings.Contains(joined, "-map") {
		t.Error("no audio mapping expected without music")
	}

	args = compileArgs("/tmp/inputs.txt", "/tmp/music.mp3", "/tmp/out.mp4")
	joined = strings.Join(args, " ")
	if !strings.Contains(joined, "-map 1:a:0") || !strings.Contains(joined, "-shortest") {
		t.Errorf("music args = %q", joined)
	}
}

func TestConcatListEscapesQuotes(t *testing.T) {
	list := concatList([]string{"/tmp/it's.mp4"})
	if !strings.Contains(list, `'\''`) {
		t.Errorf("list = %q, want escaped quote", list)
	}
}

func waitForFinalVideo(t *testing.T, repo model.Repository, id string) *entity.DbFinalVideo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		video, err := repo.GetFinalVideo(context.Background(), id)
		if err != nil {
			t.Fatalf("GetFinalVideo: %v", err)
		}
		if video.Status.IsTerminal() {
			return video
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("final video never reached a terminal status")
	return nil
}
