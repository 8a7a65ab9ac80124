package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rcollings/realtyads/internal/ad"
	"github.com/rcollings/realtyads/internal/config"
	"github.com/rcollings/realtyads/internal/email"
	"github.com/rcollings/realtyads/internal/geo"
	"github.com/rcollings/realtyads/internal/logging"
	"github.com/rcollings/realtyads/internal/store"
	"github.com/rcollings/realtyads/internal/user"
	"github.com/rcollings/realtyads/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the HTTP server for the classifieds JSON API.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (overrides config)")

	return cmd
}

func runServe(port int) error {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}

	logging.Setup(cfg.DevMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.Mongo.URL, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connecting to mongodb: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			slog.Warn("closing mongo connection", "error", err)
		}
	}()

	geocoder, err := geo.NewClient(cfg.Geocoder.APIKey)
	if err != nil {
		return fmt.Errorf("configuring geocoder: %w", err)
	}
	cached := geo.NewCachedGeocoder(geocoder, cfg.Geocoder.MemcachedAddr)

	sender := email.NewSender(email.SMTPConfig{
		Host: cfg.SMTP.Host,
		Port: cfg.SMTP.Port,
		User: cfg.SMTP.User,
		Pass: cfg.SMTP.Pass,
		From: cfg.SMTP.From,
	})

	users := user.NewRepository(st.Users())
	ads := ad.NewRepository(st.Ads())
	svc := ad.NewService(ads, users, cached, sender, cfg.BaseURL, cfg.PageSize)

	server := web.NewServer(svc, users, cfg.Auth.JWTSecret, cfg.DevMode)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting api server", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	// Let in-flight view increments land before the store closes.
	svc.FlushViews()

	return nil
}
