package app_test

import (
	"context"
	"testing"
	"time"

	"classroom-maestro/internal/app"
)

func TestSweepDismissesExpiredOnce(t *testing.T) {
	ctx := context.Background()
	services, clk := newTestServices(t)

	end := clk.Now().Add(time.Minute)
	expiring, err := services.Classrooms.CreateClassroom(ctx, "teacher-1", "Morning", []app.NewStudent{{ID: "s1", Name: "Amy"}}, &end)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	later := clk.Now().Add(time.Hour)
	lasting, _ := services.Classrooms.CreateClassroom(ctx, "teacher-1", "Afternoon", nil, &later)
	open := seedClassroom(t, services)

	_, _ = services.Classrooms.JoinClassroom(ctx, expiring.ID, "s1", "Amy")
	_, _ = services.Rounds.SetActiveQuestion(ctx, expiring.ID, trueFalse("O"))

	if n, _ := services.Sweeper.Sweep(ctx); n != 0 {
		t.Fatalf("expected nothing to sweep yet, got %d", n)
	}

	clk.Advance(2 * time.Minute)
	n, err := services.Sweeper.Sweep(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one dismissal, n=%d err=%v", n, err)
	}
	got, _ := services.Classrooms.GetClassroom(ctx, expiring.ID)
	if !got.IsDismissed || got.ActiveQuestion != nil || got.Students[0].IsOnline {
		t.Fatalf("expected dismissed classroom without round or presence, got %+v", got)
	}

	if n, _ := services.Sweeper.Sweep(ctx); n != 0 {
		t.Fatalf("expected re-run to be a no-op, got %d", n)
	}
	for _, id := range []string{lasting.ID, open.ID} {
		c, _ := services.Classrooms.GetClassroom(ctx, id)
		if c.IsDismissed {
			t.Fatalf("classroom %s should not be dismissed", id)
		}
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	services, _ := newTestServices(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- services.Sweeper.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop")
	}
}
