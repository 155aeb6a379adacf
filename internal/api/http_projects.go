package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/entity"
)

// ListProjects returns the caller's projects with clip counts.
func (h *HTTPHandler) ListProjects(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var params entity.ProjectQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		InvalidPayload(c)
		return
	}
	params.UserID = user.ID

	summaries, meta, err := h.repo.ListProjectSummaries(c.Request.Context(), &params)
	if err != nil {
		logrus.WithError(err).Error("failed to list projects")
		InternalError(c, "failed to list projects")
		return
	}

	c.JSON(http.StatusOK, entity.ProjectListResponse{
		Projects: summaries,
		Meta:     meta,
	})
}

// CreateProject creates an empty named project.
func (h *HTTPHandler) CreateProject(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		MissingField(c, "name")
		return
	}

	project := &entity.DbProject{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Name:   name,
	}
	if err := h.repo.CreateProject(c.Request.Context(), project); err != nil {
		logrus.WithError(err).Error("failed to create project")
		InternalError(c, "failed to create project")
		return
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject returns one project with its clips.
func (h *HTTPHandler) GetProject(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	projectID := strings.TrimSpace(c.Param("id"))
	if projectID == "" {
		MissingField(c, "id")
		return
	}

	project, err := h.repo.GetProject(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeProjectNotFound, "project not found")
			return
		}
		logrus.WithError(err).Error("failed to load project")
		InternalError(c, "failed to load project")
		return
	}
	if project.UserID != user.ID {
		NotFound(c, ErrCodeProjectNotFound, "project not found")
		return
	}

	clips, err := h.clipService.ListProjectClips(c.Request.Context(), user.ID, projectID)
	if err != nil {
		logrus.WithError(err).Error("failed to list project clips")
		InternalError(c, "failed to load project")
		return
	}

	c.JSON(http.StatusOK, entity.ProjectDetailResponse{
		Project: *project,
		Clips:   clips,
	})
}

// DeleteProject removes a project with its clips and final videos.
func (h *HTTPHandler) DeleteProject(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	projectID := strings.TrimSpace(c.Param("id"))
	if projectID == "" {
		MissingField(c, "id")
		return
	}

	if err := h.repo.DeleteProject(c.Request.Context(), projectID, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeProjectNotFound, "project not found")
			return
		}
		logrus.WithError(err).Error("failed to delete project")
		InternalError(c, "failed to delete project")
		return
	}

	c.Status(http.StatusNoContent)
}
