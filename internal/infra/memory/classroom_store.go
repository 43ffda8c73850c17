package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
)

var _ app.ClassroomStore = (*ClassroomStore)(nil)

// ClassroomStore is an in-memory implementation of app.ClassroomStore.
// Each classroom has its own lock and subscriber set.
type ClassroomStore struct {
	mu         sync.RWMutex
	classrooms map[string]*entry
}

type entry struct {
	mu          sync.Mutex
	doc         domain.Classroom
	deleted     bool
	submissions []domain.Submission
	subscribers map[chan domain.Classroom]struct{}
}

func NewClassroomStore() *ClassroomStore {
	return &ClassroomStore{
		classrooms: make(map[string]*entry),
	}
}

func (s *ClassroomStore) Create(_ context.Context, classroom domain.Classroom) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classrooms[classroom.ID] = &entry{
		doc:         classroom.Clone(),
		subscribers: make(map[chan domain.Classroom]struct{}),
	}
	return nil
}

func (s *ClassroomStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.classrooms[id]
	if !ok {
		return nil, domain.ErrClassroomNotFound
	}
	return e, nil
}

func (s *ClassroomStore) Get(_ context.Context, id string) (domain.Classroom, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.Classroom{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone(), nil
}

func (s *ClassroomStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Classroom, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.classrooms))
	for _, e := range s.classrooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]domain.Classroom, 0)
	for _, e := range entries {
		e.mu.Lock()
		if e.doc.OwnerID == ownerID {
			out = append(out, e.doc.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *ClassroomStore) Update(_ context.Context, id string, mutate func(*domain.Classroom) error) (domain.Classroom, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.Classroom{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.Classroom{}, domain.ErrClassroomNotFound
	}

	next := e.doc.Clone()
	if err := mutate(&next); err != nil {
		return domain.Classroom{}, err
	}
	next.Version = e.doc.Version + 1
	e.doc = next
	e.broadcastLocked()
	return next.Clone(), nil
}

func (s *ClassroomStore) ClaimRace(_ context.Context, id string, claim app.RaceClaim) (domain.Classroom, app.ClaimOutcome, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.Classroom{}, "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return domain.Classroom{}, "", domain.ErrClassroomNotFound
	}

	if outcome := app.JudgeClaim(e.doc.Race, claim); outcome != app.ClaimWon {
		return e.doc.Clone(), outcome, nil
	}
	next := e.doc.Clone()
	next.Race.Status = domain.RaceFinished
	next.Race.WinnerID = claim.StudentID
	next.Race.WinnerName = claim.StudentName
	next.Version = e.doc.Version + 1
	e.doc = next
	e.broadcastLocked()
	return next.Clone(), app.ClaimWon, nil
}

func (s *ClassroomStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.classrooms[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrClassroomNotFound
	}
	delete(s.classrooms, id)
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = true
	e.submissions = nil
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
	return nil
}

func (s *ClassroomStore) AddSubmission(_ context.Context, submission domain.Submission) error {
	e, err := s.lookup(submission.ClassroomID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	submission.Answer = submission.Answer.Clone()
	e.submissions = append(e.submissions, submission)
	return nil
}

func (s *ClassroomStore) ListSubmissions(_ context.Context, classroomID, questionID string) ([]domain.Submission, error) {
	e, err := s.lookup(classroomID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Submission, 0)
	for _, sub := range e.submissions {
		if sub.QuestionID == questionID {
			sub.Answer = sub.Answer.Clone()
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *ClassroomStore) Subscribe(ctx context.Context, id string) (<-chan domain.Classroom, func(), error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Classroom, 8)

	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	ch <- e.doc.Clone()
	e.mu.Unlock()

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			e.mu.Lock()
			if _, ok := e.subscribers[ch]; ok {
				delete(e.subscribers, ch)
				close(ch)
			}
			e.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, teardown)
	cancel := func() {
		stop()
		teardown()
	}
	return ch, cancel, nil
}

func (s *ClassroomStore) ListExpired(_ context.Context, now time.Time) ([]domain.Classroom, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.classrooms))
	for _, e := range s.classrooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]domain.Classroom, 0)
	for _, e := range entries {
		e.mu.Lock()
		if expired(e.doc, now) {
			out = append(out, e.doc.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

// Dismiss holds every affected classroom lock for the duration of the batch so
// observers see either none or all of the changes.
func (s *ClassroomStore) Dismiss(_ context.Context, ids []string, at time.Time) (int, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range sorted {
		if e, ok := s.classrooms[id]; ok && !seen[id] {
			seen[id] = true
			entries = append(entries, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
	}
	defer func() {
		for _, e := range entries {
			e.mu.Unlock()
		}
	}()

	changed := 0
	for _, e := range entries {
		if e.deleted || e.doc.IsDismissed {
			continue
		}
		next := e.doc.Clone()
		next.Dismiss(at)
		next.Version = e.doc.Version + 1
		e.doc = next
		e.broadcastLocked()
		changed++
	}
	return changed, nil
}

func (e *entry) broadcastLocked() {
	for ch := range e.subscribers {
		snapshot := e.doc.Clone()
		select {
		case ch <- snapshot:
		default:
			// Snapshots are self-contained, so a slow reader only needs the latest one.
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}

func expired(c domain.Classroom, now time.Time) bool {
	return !c.IsDismissed && c.SessionEndTime != nil && !c.SessionEndTime.After(now)
}
