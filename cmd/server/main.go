package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"echoes/internal/api"
	"echoes/internal/config"
	"echoes/internal/model"
	"echoes/internal/provider"
	"echoes/internal/storage"
)

func main() {
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		return
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	repo, err := model.InitRepository(&cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise repository")
		return
	}

	if repo != nil {
		if err := model.SeedDefaults(context.Background(), repo); err != nil {
			logrus.WithError(err).Warn("failed to seed defaults")
		}
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise storage")
		return
	}

	videoProvider, err := provider.NewProvider(cfg)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise video provider")
		return
	}

	httpHandler, err := api.NewHTTPHandler(cfg, repo, store, videoProvider)
	if err != nil {
		logrus.WithError(err).Error("failed to initialise http handler")
		return
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiGroup := r.Group("/api")

	authGroup := apiGroup.Group("/auth")
	authGroup.POST("/register", httpHandler.Register)
	authGroup.POST("/login", httpHandler.Login)
	authGroup.GET("/me", httpHandler.AuthMiddleware(), httpHandler.Me)

	// The payment processor posts here; the seller token in the payload is
	// the credential, so no auth middleware.
	apiGroup.POST("/webhooks/payment", httpHandler.PaymentWebhook)

	protected := apiGroup.Group("")
	protected.Use(httpHandler.AuthMiddleware())

	protected.POST("/clips", httpHandler.SubmitClip)
	protected.GET("/clips/:id/status", httpHandler.GetClipStatus)
	protected.DELETE("/clips/:id", httpHandler.DeleteClip)
	protected.GET("/events", httpHandler.ClipEvents)

	protected.GET("/projects", httpHandler.ListProjects)
	protected.POST("/projects", httpHandler.CreateProject)
	protected.GET("/projects/:id", httpHandler.GetProject)
	protected.DELETE("/projects/:id", httpHandler.DeleteProject)

	protected.GET("/credits", httpHandler.GetCreditBalance)
	protected.GET("/credits/transactions", httpHandler.ListCreditTransactions)
	protected.GET("/credit-packs", httpHandler.ListCreditPacks)
	protected.POST("/credits/share-reward", httpHandler.ClaimShareReward)

	protected.POST("/final-videos", httpHandler.CreateFinalVideo)
	protected.GET("/final-videos", httpHandler.ListFinalVideos)
	protected.GET("/final-videos/:id", httpHandler.GetFinalVideo)
	protected.POST("/final-videos/:id/compile", httpHandler.CompileFinalVideo)
	protected.GET("/music-tracks", httpHandler.ListMusicTracks)

	userAdmin := protected.Group("/users")
	userAdmin.Use(httpHandler.RequireAdmin())
	userAdmin.GET("", httpHandler.ListUsers)
	userAdmin.PATCH(":id", httpHandler.UpdateUser)

	// Locally stored media is served through the signed-url handler.
	if _, ok := store.(*storage.LocalStorage); ok {
		r.GET("/files/*filepath", httpHandler.ServeLocalFile)
	}

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logger.WithField("host", serverHost).Info("server starting")
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("server failed to start")
	}
}

// CORSMiddleware handles cross-origin requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		logrus.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  duration.String(),
			"size":      c.Writer.Size(),
			"client_ip": c.ClientIP(),
		}).Info("http_request")
	}
}
