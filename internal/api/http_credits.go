package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"echoes/internal/entity"
	"echoes/internal/service"
)

// GetCreditBalance returns the caller's balance with recent ledger entries.
func (h *HTTPHandler) GetCreditBalance(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	resp, err := h.creditService.GetBalance(c.Request.Context(), user.ID)
	if err != nil {
		logrus.WithError(err).Error("failed to load credit balance")
		InternalError(c, "failed to load balance")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListCreditTransactions returns a page of the caller's credit ledger.
func (h *HTTPHandler) ListCreditTransactions(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var params entity.BaseParams
	if err := c.ShouldBindQuery(&params); err != nil {
		InvalidPayload(c)
		return
	}

	transactions, meta, err := h.creditService.ListTransactions(c.Request.Context(), user.ID, params)
	if err != nil {
		logrus.WithError(err).Error("failed to list credit transactions")
		InternalError(c, "failed to list transactions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"meta":         meta,
	})
}

// ListCreditPacks returns the purchasable credit packs.
func (h *HTTPHandler) ListCreditPacks(c *gin.Context) {
	packs, err := h.creditService.ListPacks(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("failed to list credit packs")
		InternalError(c, "failed to list packs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"packs": packs})
}

// ClaimShareReward grants the one-time share bonus for a platform.
func (h *HTTPHandler) ClaimShareReward(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	var req entity.ShareRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	resp, err := h.creditService.ClaimShareReward(c.Request.Context(), user.ID, req.Platform)
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlatform) {
			BadRequest(c, ErrCodeUnknownPlatform, "unknown share platform")
			return
		}
		logrus.WithError(err).Error("failed to claim share reward")
		InternalError(c, "failed to claim reward")
		return
	}

	c.JSON(http.StatusOK, resp)
}
