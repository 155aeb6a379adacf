package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/entity"
)

// ListUsers returns accounts for the admin console.
func (h *HTTPHandler) ListUsers(c *gin.Context) {
	var params entity.UserQuery
	if err := c.ShouldBindQuery(&params); err != nil {
		InvalidPayload(c)
		return
	}

	users, meta, err := h.repo.ListUsers(c.Request.Context(), &params)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		InternalError(c, "failed to list users")
		return
	}

	summaries := make([]entity.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].ToSummary())
	}

	c.JSON(http.StatusOK, gin.H{
		"users": summaries,
		"meta":  meta,
	})
}

// UpdateUser lets an admin change a user's role or active flag.
func (h *HTTPHandler) UpdateUser(c *gin.Context) {
	current := CurrentUser(c)

	id, err := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, ErrCodeInvalidRequest, "invalid user id")
		return
	}
	userID := uint(id)

	var req struct {
		DisplayName *string `json:"display_name"`
		Role        *string `json:"role"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	if req.Role != nil {
		switch *req.Role {
		case entity.UserRoleUser, entity.UserRoleAdmin, entity.UserRoleSuperAdmin:
		default:
			BadRequest(c, ErrCodeInvalidRequest, "invalid role")
			return
		}
	}

	// Admins cannot lock themselves out.
	if current != nil && current.ID == userID && req.IsActive != nil && !*req.IsActive {
		BadRequest(c, ErrCodeInvalidRequest, "cannot deactivate your own account")
		return
	}

	updates := entity.UserUpdates{
		DisplayName: req.DisplayName,
		Role:        req.Role,
		IsActive:    req.IsActive,
	}
	if err := h.repo.UpdateUser(c.Request.Context(), userID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "user not found")
			return
		}
		logrus.WithError(err).WithField("user_id", userID).Error("failed to update user")
		InternalError(c, "failed to update user")
		return
	}

	user, err := h.repo.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, ErrCodeUserNotFound, "user not found")
			return
		}
		logrus.WithError(err).WithField("user_id", userID).Error("failed to load user")
		InternalError(c, "failed to load user")
		return
	}

	c.JSON(http.StatusOK, user.ToSummary())
}
