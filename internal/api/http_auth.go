package api

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"echoes/internal/auth"
	"echoes/internal/entity"
)

// Register creates a new account, grants the signup credits and links the
// referral when a valid code was supplied.
func (h *HTTPHandler) Register(c *gin.Context) {
	if h.repo == nil {
		ServiceUnavailable(c, "user repository not available")
		return
	}

	var req entity.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" {
		BadRequest(c, ErrCodeInvalidRequest, "email and password are required")
		return
	}
	if len(password) < auth.MinPasswordLength {
		BadRequest(c, ErrCodeInvalidRequest, fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	hash, err := auth.HashPassword(password)
	if err != nil {
		logrus.WithError(err).Error("failed to hash password")
		InternalError(c, "failed to register user")
		return
	}

	// The first account becomes the administrator.
	role := entity.UserRoleUser
	count, err := h.repo.CountUsers(ctx)
	if err != nil {
		logrus.WithError(err).Error("failed to count users during registration")
		InternalError(c, "failed to process registration")
		return
	}
	if count == 0 {
		role = entity.UserRoleSuperAdmin
	}

	// Resolve the referrer before creating the account so a bad code fails
	// fast instead of leaving a half-linked signup.
	var referrer *entity.DbUser
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		referrer, err = h.repo.GetUserByReferralCode(ctx, code)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				logrus.WithError(err).Error("failed to resolve referral code")
				InternalError(c, "failed to process registration")
				return
			}
			BadRequest(c, ErrCodeInvalidRequest, "unknown referral code")
			return
		}
	}

	user := &entity.DbUser{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         role,
		IsActive:     true,
		ReferralCode: newReferralCode(),
	}

	if err := h.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			BadRequest(c, ErrCodeEmailExists, "email already registered")
			return
		}
		logrus.WithError(err).Error("failed to create user")
		InternalError(c, "failed to register user")
		return
	}

	if h.cfg.SignupCredits > 0 {
		if _, err := h.repo.GrantCredits(ctx, user.ID, h.cfg.SignupCredits, entity.CreditTxSignup, "signup"); err != nil {
			logrus.WithError(err).WithField("user_id", user.ID).Error("failed to grant signup credits")
		}
	}

	if referrer != nil && referrer.ID != user.ID {
		if err := h.repo.CreateReferral(ctx, &entity.DbReferral{
			ReferrerUserID: referrer.ID,
			ReferredUserID: user.ID,
		}); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"referrer_id": referrer.ID,
				"user_id":     user.ID,
			}).Error("failed to record referral")
		}
	}

	// Reload so the response carries the granted balance.
	created, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		created = user
	}

	token, expiresAt, err := h.authManager.GenerateToken(created)
	if err != nil {
		logrus.WithError(err).Error("failed to create token for user")
		InternalError(c, "failed to create session")
		return
	}

	c.JSON(http.StatusCreated, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      created.ToSummary(),
	})
}

// Login exchanges credentials for a session token.
func (h *HTTPHandler) Login(c *gin.Context) {
	if h.repo == nil {
		ServiceUnavailable(c, "user repository not available")
		return
	}

	var req entity.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	password := strings.TrimSpace(req.Password)
	if email == "" || password == "" {
		BadRequest(c, ErrCodeInvalidRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	user, err := h.repo.GetUserByEmail(ctx, email)
	if err != nil {
		logrus.WithError(err).WithField("email", email).Warn("login attempt failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		return
	}

	if !user.IsActive {
		ErrorResponse(c, http.StatusForbidden, ErrCodeUserDisabled, "account is disabled")
		return
	}

	if err := auth.VerifyPassword(user.PasswordHash, password); err != nil {
		logrus.WithError(err).WithField("email", email).Warn("password verification failed")
		ErrorResponse(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password")
		return
	}

	token, expiresAt, err := h.authManager.GenerateToken(user)
	if err != nil {
		logrus.WithError(err).Error("failed to generate token")
		InternalError(c, "failed to create session")
		return
	}

	c.JSON(http.StatusOK, entity.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToSummary(),
	})
}

// Me returns the authenticated user's profile with the live credit balance.
func (h *HTTPHandler) Me(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		Unauthorized(c, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbUser, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to load user profile")
		InternalError(c, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, dbUser.ToSummary())
}

// referralCodeAlphabet avoids lookalike characters.
const referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newReferralCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("EC%d", time.Now().UnixNano()%100000000)
	}
	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return "EC" + string(buf)
}
