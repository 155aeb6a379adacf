package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/imaging"
	"echoes/internal/model"
	"echoes/internal/provider"
	"echoes/internal/storage"
)

// Service-level sentinel errors mapped to API error codes by the handlers.
var (
	ErrClipNotFound       = errors.New("clip not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrProviderRejected   = errors.New("provider rejected the generation request")
	ErrMissingImage       = errors.New("a source image is required")
	ErrNotOwner           = errors.New("resource belongs to another user")
	ErrClipsNotCompleted  = errors.New("all clips must be completed")
	ErrUnknownPlatform    = errors.New("unknown share platform")
	ErrFinalVideoNotFound = errors.New("final video not found")
	ErrFinalVideoNotDraft = errors.New("final video is not a draft")
	ErrTrackNotFound      = errors.New("music track not found")
)

// ClipService owns the clip lifecycle: submission, provider status
// reconciliation and signed playback URLs.
type ClipService struct {
	cfg      config.Config
	repo     model.Repository
	store    storage.Storage
	provider provider.VideoProvider

	// notifyFunc pushes terminal clip transitions to connected clients.
	notifyFunc func(userID uint, clipID string, status entity.ClipStatus, errMsg string)

	httpClient *http.Client
	now        func() time.Time
}

// NewClipService creates the clip service.
func NewClipService(cfg config.Config, repo model.Repository, store storage.Storage, videoProvider provider.VideoProvider) *ClipService {
	return &ClipService{
		cfg:        cfg,
		repo:       repo,
		store:      store,
		provider:   videoProvider,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}
}

// SetNotifyFunc sets the completion callback used for SSE pushes.
func (s *ClipService) SetNotifyFunc(fn func(userID uint, clipID string, status entity.ClipStatus, errMsg string)) {
	s.notifyFunc = fn
}

// SubmitClipInput carries a submission: either raw uploaded image bytes or a
// URL the image should be fetched from.
type SubmitClipInput struct {
	ProjectID string
	Prompt    string
	ImageData []byte
	ImageURL  string
}

// SubmitClip runs the full submission flow: normalise the image, persist it,
// hand the job to the provider and only then charge the user. A provider
// rejection therefore never costs credits.
func (s *ClipService) SubmitClip(ctx context.Context, userID uint, input SubmitClipInput) (*entity.SubmitClipResponse, error) {
	if userID == 0 {
		return nil, fmt.Errorf("invalid user")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.Credits < s.cfg.ClipCreditCost {
		return nil, model.ErrInsufficientCredits
	}

	imageData, err := s.resolveImage(ctx, input)
	if err != nil {
		return nil, err
	}

	normalized, err := imaging.Normalize(imageData)
	if err != nil {
		return nil, err
	}

	project, err := s.resolveProject(ctx, userID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	clipID := uuid.NewString()
	imageKey, err := s.store.Save(ctx, normalized.Data, storage.SaveOptions{
		Key: storage.SourceImageKey(userID, clipID),
	})
	if err != nil {
		return nil, fmt.Errorf("persist source image: %w", err)
	}

	clipIndex, err := s.nextClipIndex(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	clip := &entity.DbClip{
		ID:               clipID,
		ProjectID:        project.ID,
		UserID:           userID,
		ImageURL:         imageKey,
		Prompt:           strings.TrimSpace(input.Prompt),
		Status:           entity.ClipStatusPending,
		ClipIndex:        clipIndex,
		EstimatedSeconds: s.cfg.ClipEstimateSec,
	}
	if err := s.repo.CreateClip(ctx, clip); err != nil {
		return nil, fmt.Errorf("create clip: %w", err)
	}

	// The provider fetches the image itself, so it gets a signed URL
	// rather than the bytes.
	signedImageURL, err := s.store.SignedURL(ctx, imageKey, s.signedURLTTL())
	if err != nil {
		s.failClip(ctx, clip.ID, entity.ClipStatusPending, "could not prepare source image")
		return nil, fmt.Errorf("sign source image: %w", err)
	}

	jobID, err := s.provider.Submit(ctx, provider.GenerateClipRequest{
		ImageURL:    signedImageURL,
		Prompt:      clip.Prompt,
		Ratio:       normalized.Ratio,
		DurationSec: s.cfg.ClipDurationSec,
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"clip_id":  clip.ID,
			"provider": s.provider.ID(),
		}).Error("provider submission failed")
		s.failClip(ctx, clip.ID, entity.ClipStatusPending, trimProviderError(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}

	// Charge only after the provider accepted the job.
	balance, err := s.repo.SpendCredits(ctx, userID, s.cfg.ClipCreditCost, entity.CreditTxGeneration, clip.ID)
	if err != nil {
		s.failClip(ctx, clip.ID, entity.ClipStatusPending, "credit deduction failed")
		return nil, err
	}

	now := s.now().UTC()
	providerID := s.provider.ID()
	if _, err := s.repo.AdvanceClipStatus(ctx, clip.ID, entity.ClipStatusPending, entity.ClipStatusProcessing, entity.ClipUpdates{
		ProviderID:      &providerID,
		GenerationJobID: &jobID,
		SubmittedAt:     &now,
	}); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"clip_id":  clip.ID,
		"user_id":  userID,
		"provider": providerID,
		"job_id":   jobID,
		"ratio":    normalized.Ratio.Name,
		"cropped":  normalized.Cropped,
	}).Info("clip_submitted")

	return &entity.SubmitClipResponse{
		ClipID:           clip.ID,
		ProjectID:        project.ID,
		Status:           entity.ClipStatusProcessing,
		CreditsRemaining: balance,
		EstimatedTime:    s.cfg.ClipEstimateSec,
	}, nil
}

// GetClipStatus reports a clip's current state, reconciling it with the
// provider when the clip is still in flight. Completed clips get a fresh
// signed playback URL on every call.
func (s *ClipService) GetClipStatus(ctx context.Context, userID uint, clipID string) (*entity.ClipStatusResponse, error) {
	clip, err := s.loadOwnedClip(ctx, userID, clipID)
	if err != nil {
		return nil, err
	}

	if !clip.Status.IsTerminal() && clip.GenerationJobID != "" {
		clip = s.reconcileWithProvider(ctx, clip)
	}

	return s.buildStatusResponse(ctx, clip)
}

// ListProjectClips returns a project's clips with playback URLs for the
// completed ones.
func (s *ClipService) ListProjectClips(ctx context.Context, userID uint, projectID string) ([]entity.ClipItem, error) {
	clips, _, err := s.repo.ListClips(ctx, &entity.ClipQuery{
		BaseParams: entity.BaseParams{PageSize: 200},
		ProjectID:  projectID,
		UserID:     userID,
	})
	if err != nil {
		return nil, err
	}

	items := make([]entity.ClipItem, 0, len(clips))
	for _, clip := range clips {
		item := entity.ClipItem{
			ID:           clip.ID,
			ProjectID:    clip.ProjectID,
			ImageURL:     clip.ImageURL,
			Prompt:       clip.Prompt,
			Status:       clip.Status.Public(),
			ClipIndex:    clip.ClipIndex,
			ErrorMessage: clip.ErrorMessage,
			CreatedAt:    clip.CreatedAt,
		}
		if clip.Status == entity.ClipStatusCompleted && clip.VideoPath != "" {
			if url, err := s.store.SignedURL(ctx, clip.VideoPath, s.signedURLTTL()); err == nil {
				item.VideoURL = url
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// reconcileWithProvider advances the clip row based on one provider status
// observation. Every transition is a CAS, so concurrent pollers converge on a
// single winner and losers just re-read the row.
func (s *ClipService) reconcileWithProvider(ctx context.Context, clip *entity.DbClip) *entity.DbClip {
	status, err := s.provider.Status(ctx, clip.GenerationJobID)
	if err != nil {
		// Transient provider trouble keeps the stored status.
		logrus.WithError(err).WithFields(logrus.Fields{
			"clip_id": clip.ID,
			"job_id":  clip.GenerationJobID,
		}).Warn("provider status check failed")
		return clip
	}

	switch status.State {
	case provider.JobStatePending:
		// Not started yet, nothing to record.
	case provider.JobStateProcessing:
		if clip.Status == entity.ClipStatusPending {
			if _, err := s.repo.AdvanceClipStatus(ctx, clip.ID, entity.ClipStatusPending, entity.ClipStatusProcessing, entity.ClipUpdates{}); err != nil {
				logrus.WithError(err).WithField("clip_id", clip.ID).Error("failed to mark clip processing")
			}
		}
	case provider.JobStateCompleted:
		s.finalizeCompletedClip(ctx, clip, status.VideoURL)
	case provider.JobStateFailed:
		s.failClip(ctx, clip.ID, clip.Status, status.ErrorMessage)
		s.notifyClip(clip.UserID, clip.ID, entity.ClipStatusFailed, status.ErrorMessage)
	}

	reloaded, err := s.repo.GetClip(ctx, clip.ID)
	if err != nil {
		return clip
	}
	return reloaded
}

// finalizeCompletedClip claims the completion, downloads the provider output
// and persists it. The completing claim makes the download-and-store section
// single-writer; the loser of the claim simply observes the winner's result.
func (s *ClipService) finalizeCompletedClip(ctx context.Context, clip *entity.DbClip, providerURL string) {
	from := clip.Status
	if from == entity.ClipStatusPending {
		// Jumped straight to completed; walk through processing first.
		if _, err := s.repo.AdvanceClipStatus(ctx, clip.ID, entity.ClipStatusPending, entity.ClipStatusProcessing, entity.ClipUpdates{}); err != nil {
			logrus.WithError(err).WithField("clip_id", clip.ID).Error("failed to mark clip processing")
			return
		}
		from = entity.ClipStatusProcessing
	}

	won, err := s.repo.AdvanceClipStatus(ctx, clip.ID, from, entity.ClipStatusCompleting, entity.ClipUpdates{})
	if err != nil {
		logrus.WithError(err).WithField("clip_id", clip.ID).Error("failed to claim clip completion")
		return
	}
	if !won {
		return
	}

	data, err := provider.DownloadVideo(ctx, providerURL)
	if err != nil {
		logrus.WithError(err).WithField("clip_id", clip.ID).Error("failed to download provider output")
		s.failClip(ctx, clip.ID, entity.ClipStatusCompleting, "could not retrieve generated video")
		s.notifyClip(clip.UserID, clip.ID, entity.ClipStatusFailed, "could not retrieve generated video")
		return
	}

	videoKey, err := s.store.Save(ctx, data, storage.SaveOptions{
		Key: storage.ClipVideoKey(clip.UserID, clip.ProjectID, clip.ID),
	})
	if err != nil {
		logrus.WithError(err).WithField("clip_id", clip.ID).Error("failed to persist generated video")
		s.failClip(ctx, clip.ID, entity.ClipStatusCompleting, "could not store generated video")
		s.notifyClip(clip.UserID, clip.ID, entity.ClipStatusFailed, "could not store generated video")
		return
	}

	if _, err := s.repo.AdvanceClipStatus(ctx, clip.ID, entity.ClipStatusCompleting, entity.ClipStatusCompleted, entity.ClipUpdates{
		VideoPath: &videoKey,
	}); err != nil {
		logrus.WithError(err).WithField("clip_id", clip.ID).Error("failed to complete clip")
		return
	}

	logrus.WithFields(logrus.Fields{
		"clip_id":    clip.ID,
		"user_id":    clip.UserID,
		"video_path": videoKey,
	}).Info("clip_completed")
	s.notifyClip(clip.UserID, clip.ID, entity.ClipStatusCompleted, "")
}

func (s *ClipService) buildStatusResponse(ctx context.Context, clip *entity.DbClip) (*entity.ClipStatusResponse, error) {
	resp := &entity.ClipStatusResponse{
		ClipID:       clip.ID,
		Status:       clip.Status.Public(),
		ErrorMessage: clip.ErrorMessage,
	}

	switch clip.Status {
	case entity.ClipStatusCompleted:
		resp.Progress = 100
		if clip.VideoPath != "" {
			url, err := s.store.SignedURL(ctx, clip.VideoPath, s.signedURLTTL())
			if err != nil {
				return nil, fmt.Errorf("sign video url: %w", err)
			}
			resp.VideoURL = url
		}
	case entity.ClipStatusFailed:
		resp.Progress = 0
	case entity.ClipStatusPending:
		resp.Progress = 5
		resp.EstimatedTime = clip.EstimatedSeconds
	default:
		resp.Progress, resp.EstimatedTime = s.progressEstimate(clip)
	}

	return resp, nil
}

// progressEstimate derives a display progress from elapsed time against the
// provider estimate. It caps at 90 so only real completion reports done.
func (s *ClipService) progressEstimate(clip *entity.DbClip) (int, int) {
	estimate := clip.EstimatedSeconds
	if estimate <= 0 {
		estimate = s.cfg.ClipEstimateSec
	}
	if clip.SubmittedAt == nil {
		return 0, estimate
	}

	elapsed := int(s.now().UTC().Sub(*clip.SubmittedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := estimate - elapsed
	if remaining < 0 {
		remaining = 0
	}

	progress := 0
	if estimate > 0 {
		progress = elapsed * 100 / estimate
	}
	if progress > 90 {
		progress = 90
	}
	return progress, remaining
}

func (s *ClipService) loadOwnedClip(ctx context.Context, userID uint, clipID string) (*entity.DbClip, error) {
	clip, err := s.repo.GetClip(ctx, clipID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClipNotFound
		}
		return nil, err
	}
	if clip.UserID != userID {
		return nil, ErrNotOwner
	}
	return clip, nil
}

func (s *ClipService) resolveProject(ctx context.Context, userID uint, projectID string) (*entity.DbProject, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		project := &entity.DbProject{
			ID:     uuid.NewString(),
			UserID: userID,
			Name:   "Untitled " + s.now().UTC().Format("Jan 2"),
		}
		if err := s.repo.CreateProject(ctx, project); err != nil {
			return nil, fmt.Errorf("create project: %w", err)
		}
		return project, nil
	}

	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.UserID != userID {
		return nil, ErrNotOwner
	}
	return project, nil
}

func (s *ClipService) nextClipIndex(ctx context.Context, projectID string) (int, error) {
	_, meta, err := s.repo.ListClips(ctx, &entity.ClipQuery{
		BaseParams: entity.BaseParams{PageSize: 1},
		ProjectID:  projectID,
	})
	if err != nil {
		return 0, err
	}
	return int(meta.Total), nil
}

func (s *ClipService) resolveImage(ctx context.Context, input SubmitClipInput) ([]byte, error) {
	if len(input.ImageData) > 0 {
		return input.ImageData, nil
	}

	trimmed := strings.TrimSpace(input.ImageURL)
	if trimmed == "" {
		return nil, ErrMissingImage
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return nil, fmt.Errorf("%w: unsupported image reference", ErrMissingImage)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, imaging.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) > imaging.MaxImageBytes {
		return nil, imaging.ErrImageTooLarge
	}
	return data, nil
}

func (s *ClipService) failClip(ctx context.Context, clipID string, from entity.ClipStatus, message string) {
	if message == "" {
		message = "generation failed"
	}
	if _, err := s.repo.AdvanceClipStatus(ctx, clipID, from, entity.ClipStatusFailed, entity.ClipUpdates{
		ErrorMessage: &message,
	}); err != nil {
		logrus.WithError(err).WithField("clip_id", clipID).Error("failed to mark clip failed")
	}
}

func (s *ClipService) notifyClip(userID uint, clipID string, status entity.ClipStatus, errMsg string) {
	if s.notifyFunc != nil {
		s.notifyFunc(userID, clipID, status, errMsg)
	}
}

func (s *ClipService) signedURLTTL() time.Duration {
	ttl := time.Duration(s.cfg.SignedURLTTLSec) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return ttl
}

// trimProviderError keeps provider failures short enough for an error column.
func trimProviderError(err error) string {
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}
