package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"classroom-maestro/internal/domain"
	"github.com/google/uuid"
)

// ClassroomService owns classroom lifecycle and roster changes.
type ClassroomService struct {
	store ClassroomStore
	now   func() time.Time
}

func NewClassroomService(store ClassroomStore, now func() time.Time) *ClassroomService {
	return &ClassroomService{store: store, now: clock(now)}
}

// NewStudent is the roster input for CreateClassroom.
type NewStudent struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// CreateClassroom stores a new classroom owned by ownerID. Duplicate student ids keep the first entry.
func (s *ClassroomService) CreateClassroom(ctx context.Context, ownerID, name string, students []NewStudent, sessionEnd *time.Time) (domain.Classroom, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return domain.Classroom{}, fmt.Errorf("%w: owner and name are required", domain.ErrInvalidInput)
	}
	now := s.now()
	roster := make([]domain.Student, 0, len(students))
	seen := make(map[string]bool, len(students))
	for _, st := range students {
		if st.ID == "" || seen[st.ID] {
			continue
		}
		seen[st.ID] = true
		roster = append(roster, domain.Student{ID: st.ID, Name: st.Name})
	}

	classroom := domain.Classroom{
		ID:        uuid.NewString(),
		Name:      name,
		OwnerID:   ownerID,
		Students:  roster,
		Scores:    make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sessionEnd != nil {
		end := *sessionEnd
		classroom.SessionEndTime = &end
	}
	if err := s.store.Create(ctx, classroom); err != nil {
		return domain.Classroom{}, fmt.Errorf("create classroom: %w", err)
	}
	log.Printf("created classroom id=%s owner=%s students=%d", classroom.ID, ownerID, len(roster))
	return classroom, nil
}

func (s *ClassroomService) GetClassroom(ctx context.Context, id string) (domain.Classroom, error) {
	return s.store.Get(ctx, id)
}

func (s *ClassroomService) ListClassrooms(ctx context.Context, ownerID string) ([]domain.Classroom, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Authorize returns ErrPermissionDenied unless userID owns the classroom.
func (s *ClassroomService) Authorize(ctx context.Context, classroomID, userID string) error {
	classroom, err := s.store.Get(ctx, classroomID)
	if err != nil {
		return err
	}
	if classroom.OwnerID != userID {
		return domain.ErrPermissionDenied
	}
	return nil
}

// DeleteClassroom hard-deletes a classroom and its submissions. Only the owner may do this.
func (s *ClassroomService) DeleteClassroom(ctx context.Context, ownerID, id string) error {
	if err := s.Authorize(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	log.Printf("deleted classroom id=%s", id)
	return nil
}

// JoinClassroom adds a student or refreshes an existing roster entry.
func (s *ClassroomService) JoinClassroom(ctx context.Context, id, studentID, name string) (domain.Classroom, error) {
	if studentID == "" {
		return domain.Classroom{}, fmt.Errorf("%w: student id is required", domain.ErrInvalidInput)
	}
	return s.store.Update(ctx, id, func(c *domain.Classroom) error {
		if c.IsDismissed {
			return domain.ErrClassroomDismissed
		}
		now := s.now()
		if i := c.StudentIndex(studentID); i >= 0 {
			if name != "" {
				c.Students[i].Name = name
			}
			c.Students[i].IsOnline = true
			c.Students[i].LastSeen = now
			c.Students[i].ForceLogout = false
			c.UpdatedAt = now
			return nil
		}
		if c.IsLocked {
			return domain.ErrClassroomLocked
		}
		c.Students = append(c.Students, domain.Student{
			ID:       studentID,
			Name:     name,
			IsOnline: true,
			LastSeen: now,
		})
		c.UpdatedAt = now
		return nil
	})
}

func (s *ClassroomService) SetLocked(ctx context.Context, id string, locked bool) (domain.Classroom, error) {
	return s.store.Update(ctx, id, func(c *domain.Classroom) error {
		c.IsLocked = locked
		c.UpdatedAt = s.now()
		return nil
	})
}

// DismissClassroom ends the session immediately, the same way the sweeper does.
func (s *ClassroomService) DismissClassroom(ctx context.Context, id string) error {
	if _, err := s.store.Dismiss(ctx, []string{id}, s.now()); err != nil {
		return err
	}
	log.Printf("dismissed classroom id=%s", id)
	return nil
}

// ForceLogout flags a student so their client signs out.
func (s *ClassroomService) ForceLogout(ctx context.Context, id, studentID string) (domain.Classroom, error) {
	return s.store.Update(ctx, id, func(c *domain.Classroom) error {
		i := c.StudentIndex(studentID)
		if i < 0 {
			return domain.ErrStudentNotFound
		}
		c.Students[i].ForceLogout = true
		c.Students[i].IsOnline = false
		c.UpdatedAt = s.now()
		return nil
	})
}

// RemoveStudent drops a student from the roster. Their score entry is kept.
func (s *ClassroomService) RemoveStudent(ctx context.Context, id, studentID string) (domain.Classroom, error) {
	return s.store.Update(ctx, id, func(c *domain.Classroom) error {
		i := c.StudentIndex(studentID)
		if i < 0 {
			return domain.ErrStudentNotFound
		}
		c.Students = append(c.Students[:i], c.Students[i+1:]...)
		c.UpdatedAt = s.now()
		return nil
	})
}

// Subscribe returns a channel of classroom snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ClassroomService) Subscribe(ctx context.Context, id string) (<-chan domain.Classroom, func(), error) {
	return s.store.Subscribe(ctx, id)
}
