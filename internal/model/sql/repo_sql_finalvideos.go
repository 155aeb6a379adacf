package sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"echoes/internal/entity"
)

// CreateFinalVideo persists a new final-video row.
func (r *GormRepository) CreateFinalVideo(ctx context.Context, video *entity.DbFinalVideo) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if video == nil {
		return fmt.Errorf("final video is nil")
	}
	return r.db.WithContext(ctx).Create(video).Error
}

// GetFinalVideo loads a final video by ID.
func (r *GormRepository) GetFinalVideo(ctx context.Context, id string) (*entity.DbFinalVideo, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("invalid final video id")
	}
	var video entity.DbFinalVideo
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// ListFinalVideos returns a project's final videos, newest first.
func (r *GormRepository) ListFinalVideos(ctx context.Context, projectID string, userID uint) ([]entity.DbFinalVideo, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(projectID) == "" || userID == 0 {
		return nil, fmt.Errorf("invalid final video query")
	}
	var videos []entity.DbFinalVideo
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Order("created_at DESC").
		Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// UpdateFinalVideo applies field updates to a final video.
func (r *GormRepository) UpdateFinalVideo(ctx context.Context, id string, updates entity.FinalVideoUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid final video id")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.DbFinalVideo{}).Where("id = ?", id).Updates(updates.ToMap()).Error
}

// AdvanceFinalVideoStatus performs a guarded status transition. The WHERE
// clause carries the expected source status so two concurrent compile calls
// cannot both claim the same draft; RowsAffected tells the caller whether this
// call won.
func (r *GormRepository) AdvanceFinalVideoStatus(ctx context.Context, id string, from, to entity.FinalVideoStatus, updates entity.FinalVideoUpdates) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("invalid final video id")
	}
	if !entity.CanFinalVideoTransition(from, to) {
		return false, fmt.Errorf("illegal final video transition %s -> %s", from, to)
	}

	values := updates.ToMap()
	values["status"] = to

	result := r.db.WithContext(ctx).Model(&entity.DbFinalVideo{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListMusicTracks returns the active seeded music tracks.
func (r *GormRepository) ListMusicTracks(ctx context.Context) ([]entity.DbMusicTrack, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	var tracks []entity.DbMusicTrack
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&tracks).Error; err != nil {
		return nil, err
	}
	return tracks, nil
}

// GetMusicTrack loads a music track by ID.
func (r *GormRepository) GetMusicTrack(ctx context.Context, id uint) (*entity.DbMusicTrack, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if id == 0 {
		return nil, fmt.Errorf("invalid music track id")
	}
	var track entity.DbMusicTrack
	if err := r.db.WithContext(ctx).First(&track, id).Error; err != nil {
		return nil, err
	}
	return &track, nil
}

// UpsertMusicTrack inserts or refreshes a seeded track keyed by name.
func (r *GormRepository) UpsertMusicTrack(ctx context.Context, track *entity.DbMusicTrack) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if track == nil || strings.TrimSpace(track.Name) == "" {
		return fmt.Errorf("invalid music track")
	}

	var existing entity.DbMusicTrack
	err := r.db.WithContext(ctx).Where("name = ?", track.Name).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(track).Error
		}
		return err
	}

	track.ID = existing.ID
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"file_path":        track.FilePath,
		"duration_seconds": track.DurationSeconds,
		"is_active":        track.IsActive,
	}).Error
}
