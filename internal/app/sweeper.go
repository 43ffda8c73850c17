package app

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DefaultSweepInterval is how often expired classrooms are dismissed.
const DefaultSweepInterval = time.Minute

// Sweeper dismisses classrooms whose session end time has passed.
type Sweeper struct {
	store ClassroomStore
	now   func() time.Time
}

func NewSweeper(store ClassroomStore, now func() time.Time) *Sweeper {
	return &Sweeper{store: store, now: clock(now)}
}

// Sweep runs one pass and returns how many classrooms it dismissed. Re-running over the
// same window is a no-op because dismissed classrooms no longer match the query.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired classrooms: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(expired))
	for _, c := range expired {
		ids = append(ids, c.ID)
	}
	n, err := s.store.Dismiss(ctx, ids, now)
	if err != nil {
		return 0, fmt.Errorf("dismiss classrooms: %w", err)
	}
	log.Printf("sweep dismissed %d classrooms", n)
	return n, nil
}

// Run sweeps every interval until ctx is cancelled. Failed passes are logged and retried
// on the next tick.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("sweep failed: %v", err)
			}
		}
	}
}
