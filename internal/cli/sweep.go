package cli

import (
	"context"
	"fmt"
	"log"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/config"
	"github.com/spf13/cobra"
)

// NewSweepCmd dismisses every classroom whose session end time has passed, once.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Dismiss expired classrooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath)
		},
	}
}

func runSweep(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	n, err := app.NewSweeper(b.classrooms, nil).Sweep(ctx)
	if err != nil {
		return err
	}
	log.Printf("sweep complete: %d classrooms dismissed", n)
	return nil
}
