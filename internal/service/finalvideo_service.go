package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
	"echoes/internal/storage"
)

const compileTimeout = 10 * time.Minute

// blobReader is implemented by storage backends that can hand bytes back
// directly. Remote backends are read through their signed URLs instead.
type blobReader interface {
	ReadFile(ctx context.Context, key string) ([]byte, error)
}

// FinalVideoService compiles completed clips into a single shareable video.
type FinalVideoService struct {
	cfg   config.Config
	repo  model.Repository
	store storage.Storage

	httpClient *http.Client

	// notifyFunc pushes terminal compile transitions to connected clients.
	notifyFunc func(userID uint, videoID string, status entity.FinalVideoStatus, errMsg string)

	// runCommand executes the compile command; swapped out in tests.
	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewFinalVideoService creates the final-video service.
func NewFinalVideoService(cfg config.Config, repo model.Repository, store storage.Storage) *FinalVideoService {
	s := &FinalVideoService{
		cfg:        cfg,
		repo:       repo,
		store:      store,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	s.runCommand = func(ctx context.Context, name string, args ...string) error {
		cmd := exec.CommandContext(ctx, name, args...)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%s: %w: %s", name, err, truncate(string(output), 800))
		}
		return nil
	}
	return s
}

// SetNotifyFunc sets the completion callback used for SSE pushes.
func (s *FinalVideoService) SetNotifyFunc(fn func(userID uint, videoID string, status entity.FinalVideoStatus, errMsg string)) {
	s.notifyFunc = fn
}

// CreateFinalVideo validates the selection and records a draft compilation.
// Every referenced clip must be completed and owned by the caller; the encode
// itself starts on an explicit compile call.
func (s *FinalVideoService) CreateFinalVideo(ctx context.Context, userID uint, req entity.CreateFinalVideoRequest) (*entity.FinalVideoResponse, error) {
	project, err := s.repo.GetProject(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrNotOwner
	}

	if _, _, err := s.resolveInputs(ctx, userID, project.ID, req.ClipIDs, req.MusicTrackID); err != nil {
		return nil, err
	}

	video := &entity.DbFinalVideo{
		ID:           uuid.NewString(),
		ProjectID:    project.ID,
		UserID:       userID,
		ClipIDs:      entity.StringArray(req.ClipIDs),
		MusicTrackID: req.MusicTrackID,
		Transition:   normalizeTransition(req.Transition),
		AspectRatio:  strings.TrimSpace(req.AspectRatio),
		Status:       entity.FinalVideoStatusDraft,
	}
	if err := s.repo.CreateFinalVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("create final video: %w", err)
	}

	return finalVideoResponse(video, ""), nil
}

// CompileFinalVideo moves a draft to processing and starts the background
// encode. Clip statuses are re-checked so a clip deleted or failed since the
// draft was created cannot slip into the output.
func (s *FinalVideoService) CompileFinalVideo(ctx context.Context, userID uint, id string) (*entity.FinalVideoResponse, error) {
	video, err := s.loadOwnedFinalVideo(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	clipKeys, musicKey, err := s.resolveInputs(ctx, userID, video.ProjectID, []string(video.ClipIDs), video.MusicTrackID)
	if err != nil {
		return nil, err
	}

	// The draft claim is compare-and-swapped on the status column so two
	// concurrent compile calls cannot both start an encode.
	claimed, err := s.repo.AdvanceFinalVideoStatus(ctx, video.ID, entity.FinalVideoStatusDraft, entity.FinalVideoStatusProcessing, entity.FinalVideoUpdates{})
	if err != nil {
		return nil, fmt.Errorf("mark final video processing: %w", err)
	}
	if !claimed {
		return nil, fmt.Errorf("%w: final video is %s", ErrFinalVideoNotDraft, video.Status)
	}
	video.Status = entity.FinalVideoStatusProcessing

	go s.compileAsync(video.ID, userID, clipKeys, musicKey)

	return finalVideoResponse(video, ""), nil
}

// resolveInputs validates ownership and completion of every selected clip and
// returns the storage keys the encoder needs.
func (s *FinalVideoService) resolveInputs(ctx context.Context, userID uint, projectID string, clipIDs []string, musicTrackID *uint) ([]string, string, error) {
	if len(clipIDs) == 0 {
		return nil, "", fmt.Errorf("%w: no clips selected", ErrClipsNotCompleted)
	}

	clipKeys := make([]string, 0, len(clipIDs))
	for _, clipID := range clipIDs {
		clip, err := s.repo.GetClip(ctx, clipID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", ErrClipNotFound
			}
			return nil, "", err
		}
		if clip.UserID != userID || clip.ProjectID != projectID {
			return nil, "", fmt.Errorf("%w: clip %s is not part of this project", ErrClipsNotCompleted, clip.ID)
		}
		if clip.Status != entity.ClipStatusCompleted || clip.VideoPath == "" {
			return nil, "", fmt.Errorf("%w: clip %s is %s", ErrClipsNotCompleted, clip.ID, clip.Status.Public())
		}
		clipKeys = append(clipKeys, clip.VideoPath)
	}

	var musicKey string
	if musicTrackID != nil {
		track, err := s.repo.GetMusicTrack(ctx, *musicTrackID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", ErrTrackNotFound
			}
			return nil, "", err
		}
		musicKey = track.FilePath
	}

	return clipKeys, musicKey, nil
}

func (s *FinalVideoService) loadOwnedFinalVideo(ctx context.Context, userID uint, id string) (*entity.DbFinalVideo, error) {
	video, err := s.repo.GetFinalVideo(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFinalVideoNotFound
		}
		return nil, err
	}
	if video.UserID != userID {
		return nil, ErrNotOwner
	}
	return video, nil
}

// GetFinalVideo returns a final video's state with a fresh playback URL when
// it is completed.
func (s *FinalVideoService) GetFinalVideo(ctx context.Context, userID uint, id string) (*entity.FinalVideoResponse, error) {
	video, err := s.loadOwnedFinalVideo(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var url string
	if video.Status == entity.FinalVideoStatusCompleted && video.VideoPath != "" {
		signed, err := s.store.SignedURL(ctx, video.VideoPath, time.Duration(s.cfg.SignedURLTTLSec)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("sign final video url: %w", err)
		}
		url = signed
	}
	return finalVideoResponse(video, url), nil
}

// ListFinalVideos returns a project's compilations.
func (s *FinalVideoService) ListFinalVideos(ctx context.Context, userID uint, projectID string) ([]entity.FinalVideoResponse, error) {
	videos, err := s.repo.ListFinalVideos(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	out := make([]entity.FinalVideoResponse, 0, len(videos))
	for i := range videos {
		out = append(out, *finalVideoResponse(&videos[i], ""))
	}
	return out, nil
}

// ListMusicTracks returns the selectable background tracks.
func (s *FinalVideoService) ListMusicTracks(ctx context.Context) ([]entity.DbMusicTrack, error) {
	return s.repo.ListMusicTracks(ctx)
}

func (s *FinalVideoService) compileAsync(videoID string, userID uint, clipKeys []string, musicKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), compileTimeout)
	defer cancel()

	log := logrus.WithFields(logrus.Fields{
		"final_video_id": videoID,
		"user_id":        userID,
		"clips":          len(clipKeys),
	})

	outputKey, err := s.compile(ctx, videoID, userID, clipKeys, musicKey)
	if err != nil {
		log.WithError(err).Error("final video compile failed")
		s.markFinalVideoFailed(ctx, videoID, "video compilation failed")
		s.notifyFinalVideo(userID, videoID, entity.FinalVideoStatusFailed, "video compilation failed")
		return
	}

	won, err := s.repo.AdvanceFinalVideoStatus(ctx, videoID, entity.FinalVideoStatusProcessing, entity.FinalVideoStatusCompleted, entity.FinalVideoUpdates{
		VideoPath: &outputKey,
	})
	if err != nil {
		log.WithError(err).Error("failed to record compiled video")
		return
	}
	if !won {
		log.Warn("final video left processing before completion was recorded")
		return
	}
	log.WithField("video_path", outputKey).Info("final_video_completed")
	s.notifyFinalVideo(userID, videoID, entity.FinalVideoStatusCompleted, "")
}

func (s *FinalVideoService) notifyFinalVideo(userID uint, videoID string, status entity.FinalVideoStatus, errMsg string) {
	if s.notifyFunc != nil {
		s.notifyFunc(userID, videoID, status, errMsg)
	}
}

// compile stages all inputs into a scratch directory, runs the encoder and
// stores the result.
func (s *FinalVideoService) compile(ctx context.Context, videoID string, userID uint, clipKeys []string, musicKey string) (string, error) {
	workDir, err := os.MkdirTemp(s.ensureWorkRoot(), "compile-"+videoID+"-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputs := make([]string, 0, len(clipKeys))
	for i, key := range clipKeys {
		path := filepath.Join(workDir, fmt.Sprintf("clip_%03d.mp4", i))
		if err := s.fetchToFile(ctx, key, path); err != nil {
			return "", fmt.Errorf("stage clip %d: %w", i, err)
		}
		inputs = append(inputs, path)
	}

	musicPath := ""
	if musicKey != "" {
		musicPath = filepath.Join(workDir, "music"+filepath.Ext(musicKey))
		if err := s.fetchToFile(ctx, musicKey, musicPath); err != nil {
			// Music is an enhancement; compile without it rather than fail.
			logrus.WithError(err).WithField("music_key", musicKey).Warn("music track unavailable, compiling without audio")
			musicPath = ""
		}
	}

	listPath := filepath.Join(workDir, "inputs.txt")
	if err := os.WriteFile(listPath, []byte(concatList(inputs)), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}

	outputPath := filepath.Join(workDir, "final.mp4")
	args := compileArgs(listPath, musicPath, outputPath)
	if err := s.runCommand(ctx, s.ffmpegPath(), args...); err != nil {
		return "", err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("read compiled video: %w", err)
	}

	outputKey := storage.FinalVideoKey(userID, videoID)
	if _, err := s.store.Save(ctx, data, storage.SaveOptions{Key: outputKey}); err != nil {
		return "", fmt.Errorf("persist compiled video: %w", err)
	}
	return outputKey, nil
}

// fetchToFile materialises a stored object on local disk, reading directly
// when the backend supports it and falling back to its signed URL.
func (s *FinalVideoService) fetchToFile(ctx context.Context, key, path string) error {
	if reader, ok := s.store.(blobReader); ok {
		data, err := reader.ReadFile(ctx, key)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}

	url, err := s.store.SignedURL(ctx, key, 15*time.Minute)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch object http %d", resp.StatusCode)
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func (s *FinalVideoService) markFinalVideoFailed(ctx context.Context, videoID, message string) {
	if _, err := s.repo.AdvanceFinalVideoStatus(ctx, videoID, entity.FinalVideoStatusProcessing, entity.FinalVideoStatusFailed, entity.FinalVideoUpdates{
		ErrorMessage: &message,
	}); err != nil {
		logrus.WithError(err).WithField("final_video_id", videoID).Error("failed to mark final video failed")
	}
}

func (s *FinalVideoService) ffmpegPath() string {
	if s.cfg.FFmpegPath != "" {
		return s.cfg.FFmpegPath
	}
	return "ffmpeg"
}

func (s *FinalVideoService) ensureWorkRoot() string {
	root := s.cfg.FFmpegWorkDir
	if root == "" {
		root = os.TempDir()
	}
	_ = os.MkdirAll(root, 0o755)
	return root
}

// concatList renders the ffmpeg concat demuxer input list.
func concatList(inputs []string) string {
	var b strings.Builder
	for _, input := range inputs {
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(input, "'", `'\''`))
	}
	return b.String()
}

// compileArgs builds the encoder invocation. Clips are concatenated through
// the demuxer and re-encoded for uniform playback; a music track replaces the
// audio and is cut to the video's length.
func compileArgs(listPath, musicPath, outputPath string) []string {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
	}
	if musicPath != "" {
		args = append(args,
			"-i", musicPath,
			"-map", "0:v:0",
			"-map", "1:a:0",
			"-shortest",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		outputPath,
	)
	return args
}

func normalizeTransition(transition string) string {
	transition = strings.ToLower(strings.TrimSpace(transition))
	switch transition {
	case "", "cut":
		return "cut"
	case "fade", "crossfade":
		return transition
	default:
		return "cut"
	}
}

func finalVideoResponse(video *entity.DbFinalVideo, url string) *entity.FinalVideoResponse {
	return &entity.FinalVideoResponse{
		ID:           video.ID,
		ProjectID:    video.ProjectID,
		Status:       video.Status,
		ClipIDs:      []string(video.ClipIDs),
		VideoURL:     url,
		ErrorMessage: video.ErrorMessage,
		CreatedAt:    video.CreatedAt,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
