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
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/iago1460/django-radio-sub000/internal/auth"
	"github.com/iago1460/django-radio-sub000/internal/calendar"
	"github.com/iago1460/django-radio-sub000/internal/config"
	"github.com/iago1460/django-radio-sub000/internal/db"
	"github.com/iago1460/django-radio-sub000/internal/events"
	"github.com/iago1460/django-radio-sub000/internal/logging"
	"github.com/iago1460/django-radio-sub000/internal/server"
	"github.com/iago1460/django-radio-sub000/internal/telemetry"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "radioco",
	Short: "RadioCo - programme catalogue and broadcast calendar",
	Long:  "RadioCo manages a station's programme catalogue, recurring broadcast schedules and episode assignments, and serves the transmission guide over HTTP.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RadioCo server",
	Long:  "Start the HTTP API server, the transmission guide and the background episode rearranger",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	RunE:  runMigrate,
}

var rearrangeCmd = &cobra.Command{
	Use:   "rearrange",
	Short: "Recompute episode issue dates against the live calendar",
	RunE:  runRearrange,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed API token",
	RunE:  runToken,
}

var (
	rearrangeProgramme string
	rearrangeFrom      string
	tokenRoles         []string
	tokenTTL           time.Duration
)

func init() {
	rearrangeCmd.Flags().StringVar(&rearrangeProgramme, "programme", "", "programme ID to rearrange (default: all programmes)")
	rearrangeCmd.Flags().StringVar(&rearrangeFrom, "from", "", "pivot instant in RFC 3339 (default: now)")

	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{"manager"}, "roles to embed in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(rearrangeCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("RadioCo starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "radioco",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("RadioCo stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Msg("migrations applied")
	return nil
}

func runRearrange(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	from := time.Now()
	if rearrangeFrom != "" {
		parsed, err := time.Parse(time.RFC3339, rearrangeFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value %q: %w", rearrangeFrom, err)
		}
		from = parsed
	}

	database, err := initDatabase()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	svc := newCalendarService(database)
	ctx := context.Background()

	if rearrangeProgramme != "" {
		if err := svc.Rearrange(ctx, rearrangeProgramme, from); err != nil {
			return fmt.Errorf("rearrange programme %s: %w", rearrangeProgramme, err)
		}
	} else if err := svc.RearrangeAll(ctx, from); err != nil {
		return fmt.Errorf("rearrange all: %w", err)
	}

	logger.Info().Time("from", from).Msg("rearrangement complete")
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	claims := auth.Claims{
		UserID: uuid.NewString(),
		Roles:  tokenRoles,
	}
	token, err := auth.Issue([]byte(cfg.JWTSigningKey), claims, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// initDatabase initializes the database connection (used by maintenance commands)
func initDatabase() (*gorm.DB, error) {
	return db.Connect(cfg)
}

// newCalendarService builds a calendar service without cache or HTTP
// wiring, for one-shot maintenance commands.
func newCalendarService(database *gorm.DB) *calendar.Service {
	return calendar.New(database, nil, events.NewBus(), logger)
}
