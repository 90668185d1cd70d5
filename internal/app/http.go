package app

import (
	"context"

	"session-service/internal/config"
	"session-service/internal/handler"
	"session-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, *Infra, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionHandler := handler.NewHandler(infra.Store)
	authMiddleware := middleware.NewAuthMiddleware(infra.Store)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	sessionHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireSession(authMiddleware))

	api.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api.GET("/me", func(c *gin.Context) {
		sessionID, _ := middleware.SessionIDFromContext(c.Request.Context())
		principal, _ := middleware.PrincipalFromContext(c.Request.Context())
		c.JSON(200, gin.H{
			"session_id": sessionID,
			"principal":  principal,
		})
	})

	return router, infra, nil
}
