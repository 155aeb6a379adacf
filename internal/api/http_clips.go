package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/entity"
	"echoes/internal/imaging"
	"echoes/internal/model"
	"echoes/internal/service"
)

// SubmitClip accepts either a multipart upload (field "image") or a JSON body
// with an image_url and starts a generation.
func (h *HTTPHandler) SubmitClip(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	input, ok := h.bindSubmitClip(c)
	if !ok {
		return
	}

	resp, err := h.clipService.SubmitClip(c.Request.Context(), user.ID, input)
	if err != nil {
		h.writeClipError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) bindSubmitClip(c *gin.Context) (service.SubmitClipInput, bool) {
	var input service.SubmitClipInput

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, err := c.FormFile("image")
		if err != nil {
			MissingField(c, "image")
			return input, false
		}
		if file.Size > imaging.MaxImageBytes {
			BadRequest(c, ErrCodeImageTooLarge, "image exceeds the 16MB limit")
			return input, false
		}
		src, err := file.Open()
		if err != nil {
			InternalError(c, "failed to read upload")
			return input, false
		}
		defer src.Close()
		data, err := io.ReadAll(io.LimitReader(src, imaging.MaxImageBytes+1))
		if err != nil {
			InternalError(c, "failed to read upload")
			return input, false
		}
		if len(data) > imaging.MaxImageBytes {
			BadRequest(c, ErrCodeImageTooLarge, "image exceeds the 16MB limit")
			return input, false
		}
		input.ImageData = data
		input.Prompt = c.PostForm("prompt")
		input.ProjectID = c.PostForm("project_id")
		return input, true
	}

	var req entity.SubmitClipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return input, false
	}
	input.ImageURL = req.ImageURL
	input.Prompt = req.Prompt
	input.ProjectID = req.ProjectID
	return input, true
}

// GetClipStatus reports the clip's state, reconciling with the provider when
// the clip is still in flight.
func (h *HTTPHandler) GetClipStatus(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	clipID := strings.TrimSpace(c.Param("id"))
	if clipID == "" {
		MissingField(c, "id")
		return
	}

	resp, err := h.clipService.GetClipStatus(c.Request.Context(), user.ID, clipID)
	if err != nil {
		h.writeClipError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteClip removes a clip the caller owns.
func (h *HTTPHandler) DeleteClip(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	clipID := strings.TrimSpace(c.Param("id"))
	if clipID == "" {
		MissingField(c, "id")
		return
	}

	if err := h.repo.DeleteClip(c.Request.Context(), clipID, user.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeClipNotFound, "clip not found")
			return
		}
		logrus.WithError(err).WithField("clip_id", clipID).Error("failed to delete clip")
		InternalError(c, "failed to delete clip")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) writeClipError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInsufficientCredits):
		BadRequest(c, ErrCodeInsufficientCredits, "insufficient credits")
	case errors.Is(err, service.ErrNotOwner):
		Forbidden(c, "resource belongs to another user")
	case errors.Is(err, service.ErrClipNotFound):
		NotFound(c, ErrCodeClipNotFound, "clip not found")
	case errors.Is(err, service.ErrProjectNotFound):
		NotFound(c, ErrCodeProjectNotFound, "project not found")
	case errors.Is(err, service.ErrMissingImage):
		MissingField(c, "image")
	case errors.Is(err, imaging.ErrImageTooLarge):
		BadRequest(c, ErrCodeImageTooLarge, "image exceeds the 16MB limit")
	case errors.Is(err, imaging.ErrUnreadableImage):
		BadRequest(c, ErrCodeInvalidImage, "image could not be decoded")
	case errors.Is(err, service.ErrProviderRejected):
		ErrorResponse(c, http.StatusInternalServerError, ErrCodeProviderFailed, "generation provider rejected the request")
	default:
		logrus.WithError(err).Error("clip request failed")
		InternalError(c, "request failed")
	}
}
