package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// API error codes
const (
	// Common
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"

	// Auth
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeEmailExists        = "ERR_EMAIL_EXISTS"
	ErrCodeUserDisabled       = "ERR_USER_DISABLED"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"

	// Resources
	ErrCodeClipNotFound    = "ERR_CLIP_NOT_FOUND"
	ErrCodeProjectNotFound = "ERR_PROJECT_NOT_FOUND"
	ErrCodeVideoNotFound   = "ERR_VIDEO_NOT_FOUND"
	ErrCodeTrackNotFound   = "ERR_TRACK_NOT_FOUND"
	ErrCodeUserNotFound    = "ERR_USER_NOT_FOUND"

	// Business logic
	ErrCodeMissingField        = "ERR_MISSING_FIELD"
	ErrCodeInsufficientCredits = "ERR_INSUFFICIENT_CREDITS"
	ErrCodeProviderFailed      = "ERR_PROVIDER_FAILED"
	ErrCodeClipsNotCompleted   = "ERR_CLIPS_NOT_COMPLETED"
	ErrCodeUnknownPlatform     = "ERR_UNKNOWN_PLATFORM"
	ErrCodeInvalidImage        = "ERR_INVALID_IMAGE"
	ErrCodeImageTooLarge       = "ERR_IMAGE_TOO_LARGE"
)

// APIError is the uniform error response body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse writes a uniform error response.
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails writes an error response carrying extra details.
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// Shortcut responders

func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}
