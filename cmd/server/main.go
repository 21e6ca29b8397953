package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sumire/timeledger/internal/auth"
	"github.com/sumire/timeledger/internal/config"
	"github.com/sumire/timeledger/internal/handler"
	"github.com/sumire/timeledger/internal/invoice"
	"github.com/sumire/timeledger/internal/migrate"
	"github.com/sumire/timeledger/internal/repository"
	"github.com/sumire/timeledger/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// All pending migrations run to completion before anything serves.
	if err := migrate.Initialize(cfg.DatabasePath, cfg.TokenExpiration); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	db, err := repository.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database ready", "path", cfg.DatabasePath)

	projectRepo := repository.NewProjectRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	timeRepo := repository.NewTimeEntryRepository(db)
	payRepo := repository.NewPayEntryRepository(db)
	allocRepo := repository.NewAllocationRepository(db)

	authSvc := auth.NewService(db, cfg.JWTSecret, cfg.TokenExpiration,
		auth.LogMailer{Log: slog.Info}, service.InviteCallbacks())
	projectSvc := service.NewProjectService(projectRepo, memberRepo)
	ledgerSvc := service.NewLedgerService(projectRepo, memberRepo, timeRepo, payRepo, allocRepo)
	renderer := invoice.NewRenderer(cfg.TypstBinary, cfg.InvoiceDir)

	authHandler := handler.NewAuthHandler(authSvc)
	dispatchHandler := handler.NewDispatchHandler(projectSvc, ledgerSvc, renderer)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewAppValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Use(middleware.Recover())
	e.Use(handler.RequestLogger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.GET("/confirm", authHandler.Confirm)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)

	authed := api.Group("", handler.TokenAuth(authSvc))
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/invite", authHandler.Invite)
	authed.POST("/user", dispatchHandler.User)

	api.POST("/public", dispatchHandler.Public)

	// Daily sweep of expired auth tokens, same work the migration
	// engine does once at startup.
	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if err := auth.PurgeLoginTokens(db, cfg.TokenExpiration); err != nil {
					slog.Error("purge login tokens", "error", err)
				}
				if err := auth.PurgeEmailTokens(db, cfg.EmailTokenExpiration); err != nil {
					slog.Error("purge email tokens", "error", err)
				}
				if err := auth.PurgeResetTokens(db, cfg.ResetTokenExpiration); err != nil {
					slog.Error("purge reset tokens", "error", err)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
