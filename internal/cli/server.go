package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/config"
	transport "classroom-maestro/internal/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the classroom server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	backends, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer backends.Close()

	var generator app.Generator
	if cfg.AI.Endpoint != "" {
		generator = app.NewHTTPGenerator(cfg.AI.Endpoint, cfg.AI.APIKey, config.TTLDuration(cfg.AI.Timeout, 30*time.Second))
	}
	services := app.NewServices(backends.classrooms, backends.courseware, generator, app.Options{
		RaceCountdown: config.TTLDuration(cfg.Session.RaceCountdown, app.RaceCountdown),
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewServer(services, cfg.Public).Routes(),
		ReadTimeout: 15 * time.Second,
		// Websocket connections outlive a single write deadline; the handler sets its own.
		WriteTimeout: 0,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting classroom service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return services.Sweeper.Run(gctx, config.TTLDuration(cfg.Session.SweepInterval, app.DefaultSweepInterval))
	})
	g.Go(func() error {
		select {
		case <-stop:
			log.Println("shutting down server...")
		case <-gctx.Done():
			log.Println("context canceled, shutting down server...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// Stops the sweeper once the listener is gone.
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
