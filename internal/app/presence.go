package app

import (
	"context"
	"time"

	"classroom-maestro/internal/domain"
)

// PresenceTracker stamps student liveness and the teacher's attentiveness pings.
type PresenceTracker struct {
	store ClassroomStore
	now   func() time.Time
}

func NewPresenceTracker(store ClassroomStore, now func() time.Time) *PresenceTracker {
	return &PresenceTracker{store: store, now: clock(now)}
}

// UpdatePresence sets lastSeen to now and records whether the student is online.
func (p *PresenceTracker) UpdatePresence(ctx context.Context, classroomID, studentID string, online bool) (domain.Classroom, error) {
	return p.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		i := c.StudentIndex(studentID)
		if i < 0 {
			return domain.ErrStudentNotFound
		}
		now := p.now()
		c.Students[i].IsOnline = online
		c.Students[i].LastSeen = now
		c.UpdatedAt = now
		return nil
	})
}

// PingStudents starts an attentiveness probe. Clients viewing the session answer by
// refreshing their presence; there is no acknowledgement beyond that.
func (p *PresenceTracker) PingStudents(ctx context.Context, classroomID string) (domain.Classroom, error) {
	return p.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		now := p.now()
		c.PingRequest = &domain.PingRequest{Timestamp: now}
		c.UpdatedAt = now
		return nil
	})
}

// Classify derives attentiveness from lastSeen versus the last ping.
func Classify(student domain.Student, ping *domain.PingRequest) domain.Attentiveness {
	if !student.IsOnline {
		return domain.Offline
	}
	if ping == nil || ping.Timestamp.IsZero() || student.LastSeen.After(ping.Timestamp) {
		return domain.Attentive
	}
	return domain.Inattentive
}

// Attendance groups student ids by attentiveness.
func Attendance(c domain.Classroom) map[domain.Attentiveness][]string {
	out := map[domain.Attentiveness][]string{
		domain.Attentive:   {},
		domain.Inattentive: {},
		domain.Offline:     {},
	}
	for _, st := range c.Students {
		class := Classify(st, c.PingRequest)
		out[class] = append(out[class], st.ID)
	}
	return out
}
