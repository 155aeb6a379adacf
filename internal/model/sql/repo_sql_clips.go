package sql

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"echoes/internal/entity"
)

// CreateClip persists a new clip row.
func (r *GormRepository) CreateClip(ctx context.Context, clip *entity.DbClip) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if clip == nil {
		return fmt.Errorf("clip is nil")
	}
	return r.db.WithContext(ctx).Create(clip).Error
}

// GetClip loads a clip by ID.
func (r *GormRepository) GetClip(ctx context.Context, id string) (*entity.DbClip, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("invalid clip id")
	}
	var clip entity.DbClip
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&clip).Error; err != nil {
		return nil, err
	}
	return &clip, nil
}

// ListClips returns clips filtered by project, owner and status, ordered by
// clip index then creation time.
func (r *GormRepository) ListClips(ctx context.Context, params *entity.ClipQuery) ([]entity.DbClip, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbClip{})
	if params != nil {
		if params.UserID != 0 {
			query = query.Where("user_id = ?", params.UserID)
		}
		if trimmed := strings.TrimSpace(params.ProjectID); trimmed != "" {
			query = query.Where("project_id = ?", trimmed)
		}
		if params.Status != "" {
			query = query.Where("status = ?", params.Status)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	var base *entity.BaseParams
	if params != nil {
		base = &params.BaseParams
	}
	page, pageSize, offset := pageWindow(base)

	var clips []entity.DbClip
	if err := query.Order("clip_index ASC, created_at ASC").Offset(offset).Limit(pageSize).Find(&clips).Error; err != nil {
		return nil, nil, err
	}

	meta := r.calculatePagination(total, page, pageSize)
	return clips, meta, nil
}

// UpdateClipFields applies non-status field updates to a clip.
func (r *GormRepository) UpdateClipFields(ctx context.Context, id string, updates entity.ClipUpdates) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid clip id")
	}
	if updates.IsEmpty() {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.DbClip{}).Where("id = ?", id).Updates(updates.ToMap()).Error
}

// DeleteClip removes a clip owned by the given user.
func (r *GormRepository) DeleteClip(ctx context.Context, id string, userID uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" || userID == 0 {
		return fmt.Errorf("invalid clip delete request")
	}

	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&entity.DbClip{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AdvanceClipStatus performs a guarded status transition. The WHERE clause
// carries the expected source status so concurrent pollers cannot double-apply
// a transition; RowsAffected tells the caller whether this call won.
func (r *GormRepository) AdvanceClipStatus(ctx context.Context, id string, from, to entity.ClipStatus, updates entity.ClipUpdates) (bool, error) {
	if r == nil || r.db == nil {
		return false, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return false, fmt.Errorf("invalid clip id")
	}
	if !entity.CanTransition(from, to) {
		return false, fmt.Errorf("illegal clip transition %s -> %s", from, to)
	}

	values := updates.ToMap()
	values["status"] = to

	result := r.db.WithContext(ctx).Model(&entity.DbClip{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
