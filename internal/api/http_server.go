package api

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"echoes/internal/auth"
	"echoes/internal/config"
	"echoes/internal/entity"
	"echoes/internal/model"
	"echoes/internal/provider"
	"echoes/internal/service"
	"echoes/internal/storage"
)

// HTTPHandler carries every dependency the HTTP layer needs.
type HTTPHandler struct {
	cfg               config.Config
	repo              model.Repository
	storage           storage.Storage
	storagePublicBase string
	authManager       *auth.Manager

	clipService       *service.ClipService
	creditService     *service.CreditService
	webhookService    *service.WebhookService
	finalVideoService *service.FinalVideoService

	// SSE clients keyed by user id
	sseClients map[uint][]chan sseMessage
	sseMu      sync.Mutex
}

// NewHTTPHandler wires the services and the auth manager.
func NewHTTPHandler(cfg config.Config, repo model.Repository, store storage.Storage, videoProvider provider.VideoProvider) (*HTTPHandler, error) {
	expiry := time.Duration(cfg.JWTExpirationMinutes) * time.Minute
	authManager, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, expiry)
	if err != nil {
		return nil, err
	}

	clipSvc := service.NewClipService(cfg, repo, store, videoProvider)
	finalVideoSvc := service.NewFinalVideoService(cfg, repo, store)

	handler := &HTTPHandler{
		cfg:               cfg,
		repo:              repo,
		storage:           store,
		storagePublicBase: normalisePublicBase(cfg.StoragePublicBaseURL),
		authManager:       authManager,
		clipService:       clipSvc,
		creditService:     service.NewCreditService(cfg, repo),
		webhookService:    service.NewWebhookService(cfg, repo),
		finalVideoService: finalVideoSvc,
		sseClients:        make(map[uint][]chan sseMessage),
	}

	clipSvc.SetNotifyFunc(handler.notifyClipComplete)
	finalVideoSvc.SetNotifyFunc(handler.notifyFinalVideoComplete)

	return handler, nil
}

// normalisePublicBase normalises the public base path for stored files.
func normalisePublicBase(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = "/files"
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return strings.TrimRight(trimmed, "/")
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// notifyClipComplete pushes a terminal clip transition over SSE.
func (h *HTTPHandler) notifyClipComplete(userID uint, clipID string, status entity.ClipStatus, errMsg string) {
	if userID == 0 {
		return
	}
	payload := gin.H{
		"clip_id": clipID,
		"status":  status.Public(),
	}
	if trimmed := strings.TrimSpace(errMsg); trimmed != "" {
		payload["error"] = trimmed
	}
	h.publishSSEMessage(userID, sseMessage{
		event: "clip_completed",
		data:  payload,
	})
}

// notifyFinalVideoComplete pushes a terminal compile transition over SSE.
func (h *HTTPHandler) notifyFinalVideoComplete(userID uint, videoID string, status entity.FinalVideoStatus, errMsg string) {
	if userID == 0 {
		return
	}
	payload := gin.H{
		"final_video_id": videoID,
		"status":         status,
	}
	if trimmed := strings.TrimSpace(errMsg); trimmed != "" {
		payload["error"] = trimmed
	}
	h.publishSSEMessage(userID, sseMessage{
		event: "final_video_completed",
		data:  payload,
	})
}
