package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/epsgw/epsgw/internal/config"
	"github.com/epsgw/epsgw/internal/gateway"
	"github.com/epsgw/epsgw/internal/platform/auth"
	"github.com/epsgw/epsgw/internal/platform/hl7v3"
	"github.com/epsgw/epsgw/internal/platform/middleware"
	"github.com/epsgw/epsgw/internal/platform/signing"
	"github.com/epsgw/epsgw/internal/platform/spine"
	"github.com/epsgw/epsgw/internal/platform/translator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "epsgw-server",
		Short: "Electronic prescription gateway",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	// Translator
	trans := translator.New(translator.Config{
		FromASID: cfg.FromASID,
		ToASID:   cfg.ToASID,
		Agent: hl7v3.Agent{
			RoleProfileID: cfg.SDSRoleProfileID,
			UserID:        cfg.SDSUserID,
			JobRoleCode:   cfg.SDSJobRoleCode,
		},
	})

	// Signature verification
	trusted, err := cfg.TrustedCertificates()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load trusted certificates")
	}
	if len(trusted) == 0 {
		logger.Warn().Msg("no trusted certificates configured, signature trust checks will fail")
	}
	crlClient := &http.Client{Timeout: cfg.CRLTimeout()}
	revocation := signing.NewRevocationChecker(crlClient, logger)
	verifier := signing.NewVerifier(trusted, revocation, logger)

	// Collaborator clients
	var tracker spine.Tracker
	if trackerURL := cfg.ResolvedTrackerBaseURL(); trackerURL != "" {
		tracker = spine.NewTrackerClient(trackerURL, nil, logger)
	}
	var directory spine.Directory
	if cfg.ODSBaseURL != "" {
		directory = spine.NewDirectoryClient(cfg.ODSBaseURL, nil, logger)
	}

	svc := gateway.NewService(trans, verifier, tracker, directory, logger)
	handler := gateway.NewHandler(svc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))

	// Auth middleware guards the operation routes, not the status endpoint.
	var authMW echo.MiddlewareFunc
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("running in development mode, requests without tokens get a fixed identity")
		authMW = auth.DevAuthMiddleware()
	} else {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.JWTSecret),
		})
	}

	handler.RegisterRoutes(e, authMW)

	e.GET("/_status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "pass",
			"version": "1.0.0",
		})
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
