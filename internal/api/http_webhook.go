package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"echoes/internal/service"
)

// PaymentWebhook receives the payment processor's form-encoded sale
// notification. It is unauthenticated; the seller token inside the payload is
// the credential. The processor retries on non-2xx, so only genuinely
// retryable failures return an error status.
func (h *HTTPHandler) PaymentWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		BadRequest(c, ErrCodeInvalidRequest, "malformed form payload")
		return
	}

	raw := make(map[string]interface{}, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}

	note := service.PaymentNotification{
		SellerToken: c.PostForm("seller_token"),
		SaleID:      c.PostForm("sale_id"),
		ProductID:   c.PostForm("product_id"),
		BuyerEmail:  c.PostForm("email"),
		RawPayload:  raw,
	}

	err := h.webhookService.ProcessPayment(c.Request.Context(), note)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, service.ErrWebhookUnauthorized):
		Unauthorized(c, "invalid seller token")
	case errors.Is(err, service.ErrUnknownBuyer):
		// Acknowledged so the processor stops retrying a sale this app can
		// never attribute. The log line is the audit trail.
		logrus.WithField("sale_id", note.SaleID).Warn("payment for unknown buyer")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	case errors.Is(err, service.ErrUnknownProduct):
		logrus.WithFields(logrus.Fields{
			"sale_id": note.SaleID,
			"product": note.ProductID,
		}).Warn("payment for unknown product")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		logrus.WithError(err).WithField("sale_id", note.SaleID).Error("failed to process payment")
		InternalError(c, "failed to process payment")
	}
}
