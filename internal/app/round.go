package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"classroom-maestro/internal/domain"
	"github.com/google/uuid"
)

// RoundController manages the single active question of a classroom.
type RoundController struct {
	store ClassroomStore
	now   func() time.Time

	mu    sync.Mutex
	views map[string]int
}

func NewRoundController(store ClassroomStore, now func() time.Time) *RoundController {
	return &RoundController{store: store, now: clock(now), views: make(map[string]int)}
}

// SetActiveQuestion replaces the classroom's active question wholesale. A nil question ends the round.
// Submissions of the replaced round stay stored under their question id.
func (r *RoundController) SetActiveQuestion(ctx context.Context, classroomID string, question *domain.Question) (domain.Classroom, error) {
	var next *domain.Question
	if question != nil {
		if err := ValidateQuestion(*question); err != nil {
			return domain.Classroom{}, err
		}
		q := question.Clone()
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.ShowAnswer = false
		q.StartedAt = r.now()
		next = &q
	}

	classroom, err := r.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		if next != nil && c.IsDismissed {
			return domain.ErrClassroomDismissed
		}
		c.ActiveQuestion = next
		c.UpdatedAt = r.now()
		return nil
	})
	if err != nil {
		return domain.Classroom{}, err
	}
	if next != nil {
		log.Printf("round started classroom=%s question=%s kind=%s", classroomID, next.ID, next.Kind)
	} else {
		log.Printf("round ended classroom=%s", classroomID)
	}
	return classroom, nil
}

// EndRound clears the active question. Ending an already ended round is a no-op.
func (r *RoundController) EndRound(ctx context.Context, classroomID string) error {
	current, err := r.store.Get(ctx, classroomID)
	if err != nil {
		return err
	}
	if current.ActiveQuestion == nil {
		return nil
	}
	_, err = r.SetActiveQuestion(ctx, classroomID, nil)
	return err
}

// RoundScope ends the live round when the last observing view goes away.
type RoundScope struct {
	rounds      *RoundController
	classroomID string
	once        sync.Once
	err         error
}

// OpenRound registers a teacher view of the classroom and returns its scope. Callers defer
// Close for the lifetime of the view; the round ends when the last open scope closes, so a
// reloaded view that opens before the old one closes keeps the round alive.
func (r *RoundController) OpenRound(classroomID string) *RoundScope {
	r.mu.Lock()
	r.views[classroomID]++
	r.mu.Unlock()
	return &RoundScope{rounds: r, classroomID: classroomID}
}

// Close releases the view once; later calls return the first result.
func (s *RoundScope) Close() error {
	s.once.Do(func() {
		if !s.rounds.release(s.classroomID) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.err = s.rounds.EndRound(ctx, s.classroomID)
	})
	return s.err
}

// release drops one view and reports whether it was the last.
func (r *RoundController) release(classroomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[classroomID]--
	if r.views[classroomID] > 0 {
		return false
	}
	delete(r.views, classroomID)
	return true
}

// Submit records a student's answer for the current round.
func (r *RoundController) Submit(ctx context.Context, classroomID, studentID string, answer domain.Answer) (domain.Submission, error) {
	classroom, err := r.store.Get(ctx, classroomID)
	if err != nil {
		return domain.Submission{}, err
	}
	if classroom.IsDismissed {
		return domain.Submission{}, domain.ErrClassroomDismissed
	}
	if classroom.ActiveQuestion == nil {
		return domain.Submission{}, domain.ErrNoActiveRound
	}
	i := classroom.StudentIndex(studentID)
	if i < 0 {
		return domain.Submission{}, domain.ErrStudentNotFound
	}

	submission := domain.Submission{
		ID:          uuid.NewString(),
		ClassroomID: classroomID,
		StudentID:   studentID,
		StudentName: classroom.Students[i].Name,
		QuestionID:  classroom.ActiveQuestion.ID,
		Answer:      answer.Clone(),
		Timestamp:   r.now(),
	}
	if err := r.store.AddSubmission(ctx, submission); err != nil {
		return domain.Submission{}, fmt.Errorf("add submission: %w", err)
	}
	return submission, nil
}

// Results aggregates the current round. Submissions from earlier rounds are never
// counted, and a student who answered more than once is counted by their last submission.
func (r *RoundController) Results(ctx context.Context, classroomID string) (domain.RoundResults, error) {
	classroom, err := r.store.Get(ctx, classroomID)
	if err != nil {
		return domain.RoundResults{}, err
	}
	if classroom.ActiveQuestion == nil {
		return domain.RoundResults{}, domain.ErrNoActiveRound
	}
	question := *classroom.ActiveQuestion
	submissions, err := r.store.ListSubmissions(ctx, classroomID, question.ID)
	if err != nil {
		return domain.RoundResults{}, fmt.Errorf("list submissions: %w", err)
	}
	return Aggregate(question, submissions), nil
}

// Aggregate tallies submissions for question, ignoring those tagged with another question id.
func Aggregate(question domain.Question, submissions []domain.Submission) domain.RoundResults {
	answers := LatestPerStudent(question.ID, submissions)
	tallies := make(map[string]int)
	for _, sub := range answers {
		for _, key := range tallyKeys(question, sub.Answer) {
			tallies[key]++
		}
	}
	return domain.RoundResults{
		QuestionID: question.ID,
		Total:      len(answers),
		Tallies:    tallies,
		Answers:    answers,
	}
}

// LatestPerStudent keeps one submission per student for questionID: the one with the
// latest timestamp, ties going to the later arrival. The result is ordered by timestamp.
func LatestPerStudent(questionID string, submissions []domain.Submission) []domain.Submission {
	latest := make(map[string]domain.Submission)
	for _, sub := range submissions {
		if sub.QuestionID != questionID {
			continue
		}
		if prev, ok := latest[sub.StudentID]; ok && sub.Timestamp.Before(prev.Timestamp) {
			continue
		}
		latest[sub.StudentID] = sub
	}
	out := make([]domain.Submission, 0, len(latest))
	for _, sub := range latest {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

func tallyKeys(question domain.Question, answer domain.Answer) []string {
	switch question.Kind {
	case domain.KindMultipleChoice:
		keys := make([]string, 0, len(answer.Indices))
		seen := make(map[int]bool, len(answer.Indices))
		for _, idx := range answer.Indices {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			if idx >= 0 && idx < len(question.Options) {
				keys = append(keys, question.Options[idx])
			} else {
				keys = append(keys, strconv.Itoa(idx))
			}
		}
		return keys
	case domain.KindTrueFalse, domain.KindShortAnswer:
		values := answerValues(question.Kind, answer)
		if len(values) == 0 {
			return nil
		}
		return []string{joinValues(values)}
	}
	return nil
}

// ValidateQuestion checks the variant-specific shape of a question.
func ValidateQuestion(q domain.Question) error {
	if !q.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidQuestion, q.Kind)
	}
	if Normalize(q.Question) == "" {
		return fmt.Errorf("%w: question text is required", domain.ErrInvalidQuestion)
	}
	switch q.Kind {
	case domain.KindMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple choice needs at least two options", domain.ErrInvalidQuestion)
		}
		if q.Answer != nil {
			for _, idx := range q.Answer.Indices {
				if idx < 0 || idx >= len(q.Options) {
					return fmt.Errorf("%w: answer index %d out of range", domain.ErrInvalidQuestion, idx)
				}
			}
		}
	case domain.KindImageAnnotation:
		if q.ImageURL == "" {
			return fmt.Errorf("%w: image annotation needs an image", domain.ErrInvalidQuestion)
		}
	}
	return nil
}
