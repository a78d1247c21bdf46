// Package httpserver exposes the REST API: authentication, projects, the
// credit wallet, purchases, and the operator endpoints.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/podcraft/backend/internal/account"
	"github.com/podcraft/backend/internal/admin"
	"github.com/podcraft/backend/internal/billing"
	"github.com/podcraft/backend/internal/project"
	"github.com/podcraft/backend/pkg/ledger"
)

// Server wires the domain services behind the REST routes.
type Server struct {
	logger   *zap.Logger
	accounts *account.Service
	projects *project.Service
	billing  *billing.Service
	admins   *admin.Service
	credits  *ledger.Service
	cfg      Config
}

// New builds a Server.
func New(
	logger *zap.Logger,
	accounts *account.Service,
	projects *project.Service,
	billingService *billing.Service,
	admins *admin.Service,
	credits *ledger.Service,
	cfg Config,
) *Server {
	return &Server{
		logger:   logger,
		accounts: accounts,
		projects: projects,
		billing:  billingService,
		admins:   admins,
		credits:  credits,
		cfg:      cfg,
	}
}

// Router assembles the gin engine with all routes and middleware.
func (server *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/register", server.handleRegister)
	auth.POST("/login", server.handleLogin)
	auth.POST("/forgot-password", server.handleForgotPassword)
	auth.POST("/reset-password", server.handleResetPassword)
	auth.POST("/logout", server.authRequired(), server.handleLogout)
	auth.GET("/me", server.authRequired(), server.handleMe)

	users := api.Group("/users", server.authRequired())
	users.PUT("/me", server.handleUpdateProfile)

	projects := api.Group("/projects", server.authRequired())
	projects.POST("", server.handleCreateProject)
	projects.GET("", server.handleListProjects)
	projects.GET("/:projectID", server.handleGetProject)
	projects.PUT("/:projectID", server.handleUpdateProject)
	projects.DELETE("/:projectID", server.handleDeleteProject)
	projects.POST("/:projectID/generate", server.handleGenerateProject)

	credits := api.Group("/credits", server.authRequired())
	credits.GET("/balance", server.handleBalance)
	credits.GET("/transactions", server.handleListTransactions)
	credits.POST("/purchases", server.handleStartPurchase)
	credits.POST("/purchases/:transactionID/confirm", server.handleConfirmPurchase)
	credits.POST("/purchases/:transactionID/cancel", server.handleCancelPurchase)

	operators := api.Group("/admin", server.authRequired(), server.adminRequired())
	operators.GET("/users", server.handleAdminListUsers)
	operators.PUT("/users/:userID", server.handleAdminUpdateUser)
	operators.DELETE("/users/:userID", server.handleAdminDeleteUser)
	operators.POST("/users/:userID/credits", server.handleAdminGrantCredits)
	operators.PUT("/users/:userID/balance", server.handleAdminSetBalance)
	operators.GET("/stats", server.handleAdminStats)

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: server.cfg.RequestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.cfg.ShutdownGracePeriod)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
