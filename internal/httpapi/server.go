// Package httpapi exposes enrollment, booking, checkout, catalog, and
// dashboard routes over gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/academy/internal/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const claimsContextKey = "auth_claims"

// Serve runs the router until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, cfg Config, router http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("academy api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter wires the public and session-protected routes.
func NewRouter(cfg Config, handler *Handler, validator *sessionvalidator.Validator, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", logging.RequestIDHeader},
		ExposeHeaders:    []string{logging.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/courses", handler.handleListCourses)
	api.POST("/courses", handler.handleCreateCourse)
	api.POST("/courses/enroll", handler.handleEnroll)
	api.GET("/live-lessons", handler.handleListLiveLessons)
	api.POST("/live-lessons", handler.handleCreateLiveLesson)
	api.POST("/live-lessons/book", handler.handleBook)

	authenticated := api.Group("")
	authenticated.Use(validator.GinMiddleware(claimsContextKey))
	authenticated.POST("/payments/course-checkout", handler.handleCourseCheckout)
	authenticated.POST("/payments/live-lesson-checkout", handler.handleLiveLessonCheckout)
	authenticated.POST("/payments/verify-payment", handler.handleVerifyPayment)
	authenticated.GET("/user/dashboard", handler.handleDashboard)

	return router
}
