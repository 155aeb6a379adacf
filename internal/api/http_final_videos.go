package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"echoes/internal/entity"
	"echoes/internal/service"
)

// CreateFinalVideo starts compiling the selected clips into one video.
func (h *HTTPHandler) CreateFinalVideo(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.CreateFinalVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	resp, err := h.finalVideoService.CreateFinalVideo(c.Request.Context(), user.ID, req)
	if err != nil {
		h.writeFinalVideoError(c, err, "failed to create final video")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CompileFinalVideo starts the asynchronous encode of a draft compilation.
func (h *HTTPHandler) CompileFinalVideo(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		MissingField(c, "id")
		return
	}

	resp, err := h.finalVideoService.CompileFinalVideo(c.Request.Context(), user.ID, id)
	if err != nil {
		h.writeFinalVideoError(c, err, "failed to compile final video")
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *HTTPHandler) writeFinalVideoError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		NotFound(c, ErrCodeProjectNotFound, "project not found")
	case errors.Is(err, service.ErrFinalVideoNotFound):
		NotFound(c, ErrCodeVideoNotFound, "final video not found")
	case errors.Is(err, service.ErrClipNotFound):
		NotFound(c, ErrCodeClipNotFound, "clip not found")
	case errors.Is(err, service.ErrTrackNotFound):
		NotFound(c, ErrCodeTrackNotFound, "music track not found")
	case errors.Is(err, service.ErrNotOwner):
		Forbidden(c, "resource belongs to another user")
	case errors.Is(err, service.ErrClipsNotCompleted):
		BadRequest(c, ErrCodeClipsNotCompleted, err.Error())
	case errors.Is(err, service.ErrFinalVideoNotDraft):
		BadRequest(c, ErrCodeInvalidRequest, err.Error())
	default:
		logrus.WithError(err).Error(logMsg)
		InternalError(c, logMsg)
	}
}

// GetFinalVideo reports a compilation's state with a playback URL when done.
func (h *HTTPHandler) GetFinalVideo(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		MissingField(c, "id")
		return
	}

	resp, err := h.finalVideoService.GetFinalVideo(c.Request.Context(), user.ID, id)
	if err != nil {
		h.writeFinalVideoError(c, err, "failed to load final video")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListFinalVideos returns a project's compilations.
func (h *HTTPHandler) ListFinalVideos(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	projectID := strings.TrimSpace(c.Query("project_id"))
	if projectID == "" {
		MissingField(c, "project_id")
		return
	}

	videos, err := h.finalVideoService.ListFinalVideos(c.Request.Context(), user.ID, projectID)
	if err != nil {
		logrus.WithError(err).Error("failed to list final videos")
		InternalError(c, "failed to list final videos")
		return
	}

	c.JSON(http.StatusOK, gin.H{"final_videos": videos})
}

// ListMusicTracks returns the selectable background tracks.
func (h *HTTPHandler) ListMusicTracks(c *gin.Context) {
	tracks, err := h.finalVideoService.ListMusicTracks(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("failed to list music tracks")
		InternalError(c, "failed to list music tracks")
		return
	}

	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}
