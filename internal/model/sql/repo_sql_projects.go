package sql

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"echoes/internal/entity"
)

// CreateProject persists a new project.
func (r *GormRepository) CreateProject(ctx context.Context, project *entity.DbProject) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if project == nil {
		return fmt.Errorf("project is nil")
	}
	return r.db.WithContext(ctx).Create(project).Error
}

// GetProject loads a project by ID.
func (r *GormRepository) GetProject(ctx context.Context, id string) (*entity.DbProject, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("invalid project id")
	}
	var project entity.DbProject
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjectSummaries returns a user's projects with clip counts, newest
// first.
func (r *GormRepository) ListProjectSummaries(ctx context.Context, params *entity.ProjectQuery) ([]entity.ProjectSummary, *entity.Meta, error) {
	if r == nil || r.db == nil {
		return nil, nil, fmt.Errorf("repository not initialised")
	}
	if params == nil || params.UserID == 0 {
		return nil, nil, fmt.Errorf("invalid project query")
	}

	base := r.db.WithContext(ctx).Model(&entity.DbProject{}).Where("user_id = ?", params.UserID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page, pageSize, offset := pageWindow(&params.BaseParams)

	var projects []entity.DbProject
	if err := base.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&projects).Error; err != nil {
		return nil, nil, err
	}

	summaries := make([]entity.ProjectSummary, 0, len(projects))
	for _, project := range projects {
		summary := entity.ProjectSummary{
			ID:        project.ID,
			Name:      project.Name,
			CreatedAt: project.CreatedAt,
			UpdatedAt: project.UpdatedAt,
		}
		if err := r.db.WithContext(ctx).Model(&entity.DbClip{}).
			Where("project_id = ?", project.ID).
			Count(&summary.ClipCount).Error; err != nil {
			return nil, nil, err
		}
		if err := r.db.WithContext(ctx).Model(&entity.DbClip{}).
			Where("project_id = ? AND status = ?", project.ID, entity.ClipStatusCompleted).
			Count(&summary.CompletedCount).Error; err != nil {
			return nil, nil, err
		}
		summaries = append(summaries, summary)
	}

	meta := r.calculatePagination(total, page, pageSize)
	return summaries, meta, nil
}

// DeleteProject removes a project owned by the user along with its clips.
func (r *GormRepository) DeleteProject(ctx context.Context, id string, userID uint) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repository not initialised")
	}
	if strings.TrimSpace(id) == "" || userID == 0 {
		return fmt.Errorf("invalid project delete")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&entity.DbProject{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("project_id = ?", id).Delete(&entity.DbClip{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", id).Delete(&entity.DbFinalVideo{}).Error
	})
}
