package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chartd/chartd/internal/config"
	"github.com/chartd/chartd/internal/domain/appointment"
	"github.com/chartd/chartd/internal/domain/encounter"
	"github.com/chartd/chartd/internal/domain/investigation"
	"github.com/chartd/chartd/internal/domain/progressnote"
	"github.com/chartd/chartd/internal/domain/provenance"
	"github.com/chartd/chartd/internal/platform/auth"
	"github.com/chartd/chartd/internal/platform/db"
	"github.com/chartd/chartd/internal/platform/events"
	"github.com/chartd/chartd/internal/platform/middleware"
	"github.com/chartd/chartd/internal/platform/stream"
)

// encounterDirectoryAdapter adapts the encounter repository to the progress
// note package's EncounterDirectory port, avoiding a circular import between
// the two domain packages.
type encounterDirectoryAdapter struct {
	repo encounter.Repository
}

func (a *encounterDirectoryAdapter) PatientForEncounter(ctx context.Context, encounterID uuid.UUID) (uuid.UUID, error) {
	enc, err := a.repo.GetByID(ctx, encounterID)
	if err != nil {
		return uuid.Nil, err
	}
	return enc.PatientID, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "chartd-server",
		Short: "Clinical documentation workflow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
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
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Event bus. Finalized notes are logged and relayed to WebSocket
	// subscribers on the stream hub.
	bus := events.NewBus(logger)
	hub := stream.NewHub(logger)
	bus.Subscribe(events.TopicNoteFinalized, func(ctx context.Context, payload interface{}) {
		evt, ok := payload.(events.NoteFinalized)
		if !ok {
			return
		}
		logger.Info().
			Str("note_id", evt.NoteID.String()).
			Str("patient_id", evt.PatientID.String()).
			Time("finalized_at", evt.FinalizedAt).
			Msg("note finalized event")
		hub.Broadcast(events.TopicNoteFinalized, evt)
	})

	// Audit trail
	auditRepo := provenance.NewRepo(pool)
	auditRecorder := provenance.NewRecorder(auditRepo, logger)
	auditSvc := provenance.NewService(auditRepo)

	// Domain wiring
	apptRepo := appointment.NewRepo(pool)
	encounterRepo := encounter.NewRepo(pool)
	noteRepo := progressnote.NewRepo(pool)
	resultRepo := investigation.NewRepo(pool)

	noteSvc := progressnote.NewService(
		noteRepo,
		&encounterDirectoryAdapter{repo: encounterRepo},
		auditRecorder,
		bus,
		cfg.SignatureMinLength,
		logger,
	)
	encounterSvc := encounter.NewService(encounterRepo, noteSvc, apptRepo, auditRecorder, logger)
	investigationSvc := investigation.NewService(resultRepo, auditRecorder)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health check, outside the authenticated group
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	// Authenticated API
	apiV1 := e.Group("/api/v1", auth.Middleware(auth.Config{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}))

	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1)
	progressnote.NewHandler(noteSvc).RegisterRoutes(apiV1)
	investigation.NewHandler(investigationSvc).RegisterRoutes(apiV1)
	provenance.NewHandler(auditSvc).RegisterRoutes(apiV1)
	stream.NewHandler(hub).RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
