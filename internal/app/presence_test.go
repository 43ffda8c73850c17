package app_test

import (
	"context"
	"testing"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
)

func TestClassify(t *testing.T) {
	ping := &domain.PingRequest{Timestamp: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	before := ping.Timestamp.Add(-time.Second)
	after := ping.Timestamp.Add(time.Second)

	cases := []struct {
		name    string
		student domain.Student
		ping    *domain.PingRequest
		want    domain.Attentiveness
	}{
		{"offline", domain.Student{IsOnline: false, LastSeen: after}, ping, domain.Offline},
		{"online without ping", domain.Student{IsOnline: true, LastSeen: before}, nil, domain.Attentive},
		{"refreshed after ping", domain.Student{IsOnline: true, LastSeen: after}, ping, domain.Attentive},
		{"seen exactly at ping", domain.Student{IsOnline: true, LastSeen: ping.Timestamp}, ping, domain.Inattentive},
		{"stale since ping", domain.Student{IsOnline: true, LastSeen: before}, ping, domain.Inattentive},
	}
	for _, tc := range cases {
		if got := app.Classify(tc.student, tc.ping); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestPingThenRefreshClassification(t *testing.T) {
	ctx := context.Background()
	services, clk := newTestServices(t)
	classroom := seedClassroom(t, services)

	_, _ = services.Presence.UpdatePresence(ctx, classroom.ID, "s1", true)
	_, _ = services.Presence.UpdatePresence(ctx, classroom.ID, "s2", true)
	clk.Advance(time.Second)
	_, _ = services.Presence.PingStudents(ctx, classroom.ID)
	clk.Advance(time.Second)
	updated, err := services.Presence.UpdatePresence(ctx, classroom.ID, "s1", true)
	if err != nil {
		t.Fatalf("presence: %v", err)
	}

	groups := app.Attendance(updated)
	if len(groups[domain.Attentive]) != 1 || groups[domain.Attentive][0] != "s1" {
		t.Fatalf("expected s1 attentive, got %v", groups)
	}
	if len(groups[domain.Inattentive]) != 1 || groups[domain.Inattentive][0] != "s2" {
		t.Fatalf("expected s2 inattentive, got %v", groups)
	}

	updated, _ = services.Presence.UpdatePresence(ctx, classroom.ID, "s2", false)
	if got := app.Attendance(updated)[domain.Offline]; len(got) != 1 || got[0] != "s2" {
		t.Fatalf("expected s2 offline, got %v", got)
	}
}
