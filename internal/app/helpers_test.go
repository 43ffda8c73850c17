package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"classroom-maestro/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fixedSource always returns the same index, clamped to n.
type fixedSource int

func (f fixedSource) Intn(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

func newTestServices(t *testing.T) (*app.Services, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	services := app.NewServices(memory.NewClassroomStore(), memory.NewCoursewareRepository(), nil, app.Options{Now: clk.Now})
	return services, clk
}

func seedClassroom(t *testing.T, services *app.Services) domain.Classroom {
	t.Helper()
	classroom, err := services.Classrooms.CreateClassroom(context.Background(), "teacher-1", "Period 1", []app.NewStudent{
		{ID: "s1", Name: "Amy"},
		{ID: "s2", Name: "Ben"},
	}, nil)
	if err != nil {
		t.Fatalf("create classroom: %v", err)
	}
	return classroom
}

func trueFalse(answer string) *domain.Question {
	return &domain.Question{
		Kind:     domain.KindTrueFalse,
		Question: "Is the sky blue?",
		Answer:   &domain.Answer{Text: answer},
	}
}
