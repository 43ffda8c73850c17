package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"classroom-maestro/internal/domain"
)

// Normalize trims, collapses whitespace runs, maps the full-width comma to ',' and
// drops spaces around commas. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "，", ",")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, ", ", ",")
	s = strings.ReplaceAll(s, " ,", ",")
	return s
}

// answerValues turns an answer into its normalized element set.
func answerValues(kind domain.QuestionKind, answer domain.Answer) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	add := func(v string) {
		if v == "" || seen[v] {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	if kind == domain.KindMultipleChoice {
		for _, idx := range answer.Indices {
			add(strconv.Itoa(idx))
		}
		sort.Strings(out)
		return out
	}
	if len(answer.Values) > 0 {
		for _, v := range answer.Values {
			add(Normalize(v))
		}
	} else {
		for _, v := range strings.Split(Normalize(answer.Text), ",") {
			add(v)
		}
	}
	sort.Strings(out)
	return out
}

func joinValues(values []string) string {
	return strings.Join(values, ",")
}

// IsCorrect compares answer with the question's key as order-independent normalized sets.
// Sizes must match; there is no partial credit. Ungraded kinds and keyless questions never match.
func IsCorrect(question domain.Question, answer domain.Answer) bool {
	if !question.Kind.Graded() || question.Answer == nil {
		return false
	}
	want := answerValues(question.Kind, *question.Answer)
	got := answerValues(question.Kind, answer)
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// Scorer reveals answer keys and keeps the classroom score map.
type Scorer struct {
	store ClassroomStore
	now   func() time.Time
}

func NewScorer(store ClassroomStore, now func() time.Time) *Scorer {
	return &Scorer{store: store, now: clock(now)}
}

// RevealAnswer sets showAnswer on the active question. It never reverts.
func (s *Scorer) RevealAnswer(ctx context.Context, classroomID string) (domain.Classroom, error) {
	return s.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		if c.ActiveQuestion == nil {
			return domain.ErrNoActiveRound
		}
		c.ActiveQuestion.ShowAnswer = true
		c.UpdatedAt = s.now()
		return nil
	})
}

// AwardPoints adds points to each student's running total.
func (s *Scorer) AwardPoints(ctx context.Context, classroomID string, studentIDs []string, points int) (domain.Classroom, error) {
	if points == 0 || len(studentIDs) == 0 {
		return s.store.Get(ctx, classroomID)
	}
	return s.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		if c.Scores == nil {
			c.Scores = make(map[string]int)
		}
		for _, id := range studentIDs {
			c.Scores[id] += points
		}
		c.UpdatedAt = s.now()
		return nil
	})
}

func correctIDs(question domain.Question, answers []domain.Submission) []string {
	ids := make([]string, 0)
	for _, sub := range answers {
		if sub.QuestionID == question.ID && IsCorrect(question, sub.Answer) {
			ids = append(ids, sub.StudentID)
		}
	}
	sort.Strings(ids)
	return ids
}

// errAlreadyRevealed aborts the reveal write when the round was revealed before.
var errAlreadyRevealed = errors.New("answer already revealed")

// RevealAndAward reveals the answer and awards points to every correct student in one write.
// The award is tied to the question that was graded: a round that has since been replaced is a
// conflict, and a round that is already revealed is returned as is with nobody awarded.
func (s *Scorer) RevealAndAward(ctx context.Context, classroomID string, points int) (domain.Classroom, []string, error) {
	classroom, err := s.store.Get(ctx, classroomID)
	if err != nil {
		return domain.Classroom{}, nil, err
	}
	if classroom.ActiveQuestion == nil {
		return domain.Classroom{}, nil, domain.ErrNoActiveRound
	}
	if classroom.ActiveQuestion.ShowAnswer {
		return classroom, []string{}, nil
	}
	question := *classroom.ActiveQuestion
	submissions, err := s.store.ListSubmissions(ctx, classroomID, question.ID)
	if err != nil {
		return domain.Classroom{}, nil, fmt.Errorf("list submissions: %w", err)
	}
	correct := correctIDs(question, LatestPerStudent(question.ID, submissions))

	updated, err := s.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		if c.ActiveQuestion == nil {
			return domain.ErrNoActiveRound
		}
		if c.ActiveQuestion.ID != question.ID {
			return domain.ErrConflict
		}
		if c.ActiveQuestion.ShowAnswer {
			return errAlreadyRevealed
		}
		c.ActiveQuestion.ShowAnswer = true
		if points != 0 && len(correct) > 0 {
			if c.Scores == nil {
				c.Scores = make(map[string]int)
			}
			for _, id := range correct {
				c.Scores[id] += points
			}
		}
		c.UpdatedAt = s.now()
		return nil
	})
	if errors.Is(err, errAlreadyRevealed) {
		current, err := s.store.Get(ctx, classroomID)
		return current, []string{}, err
	}
	if err != nil {
		return domain.Classroom{}, nil, fmt.Errorf("reveal: %w", err)
	}
	log.Printf("revealed classroom=%s correct=%d points=%d", classroomID, len(correct), points)
	return updated, correct, nil
}

// Leaderboard lists roster students by score desc, then name.
func Leaderboard(c domain.Classroom) []domain.ScoreEntry {
	entries := make([]domain.ScoreEntry, 0, len(c.Students))
	for _, st := range c.Students {
		entries = append(entries, domain.ScoreEntry{
			StudentID: st.ID,
			Name:      st.Name,
			Score:     c.Scores[st.ID],
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}
