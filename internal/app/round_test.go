package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
)

func TestLastSetActiveQuestionWins(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)

	var last domain.Classroom
	for i := 0; i < 3; i++ {
		q := trueFalse("O")
		q.ID = fmt.Sprintf("q%d", i)
		var err error
		if last, err = services.Rounds.SetActiveQuestion(ctx, classroom.ID, q); err != nil {
			t.Fatalf("set question %d: %v", i, err)
		}
	}
	got, _ := services.Classrooms.GetClassroom(ctx, classroom.ID)
	if got.ActiveQuestion == nil || got.ActiveQuestion.ID != "q2" || last.ActiveQuestion.ID != "q2" {
		t.Fatalf("expected q2 active, got %+v", got.ActiveQuestion)
	}
}

func TestConcurrentRoundStartsLeaveOneActive(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := trueFalse("O")
			q.ID = fmt.Sprintf("q%d", i)
			if _, err := services.Rounds.SetActiveQuestion(ctx, classroom.ID, q); err != nil {
				t.Errorf("set question: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := services.Classrooms.GetClassroom(ctx, classroom.ID)
	if got.ActiveQuestion == nil || got.Version != 20 {
		t.Fatalf("expected 20 serialized writes with an active question, got version=%d q=%+v", got.Version, got.ActiveQuestion)
	}
}

func TestStaleSubmissionsAreNotCounted(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)

	q1 := trueFalse("O")
	q1.ID = "q1"
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, q1)
	if _, err := services.Rounds.Submit(ctx, classroom.ID, "s1", domain.Answer{Text: "O"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	q2 := trueFalse("X")
	q2.ID = "q2"
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, q2)

	results, err := services.Rounds.Results(ctx, classroom.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.QuestionID != "q2" || results.Total != 0 {
		t.Fatalf("expected no q2 answers, got %+v", results)
	}

	// A stale submission written directly under q1 is still excluded by the filter.
	stale := []domain.Submission{{StudentID: "s2", QuestionID: "q1", Answer: domain.Answer{Text: "X"}}}
	if agg := app.Aggregate(*q2, stale); agg.Total != 0 {
		t.Fatalf("expected stale submission ignored, got %+v", agg)
	}
}

func TestResubmissionLastWins(t *testing.T) {
	ctx := context.Background()
	services, clk := newTestServices(t)
	classroom := seedClassroom(t, services)
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, trueFalse("O"))

	_, _ = services.Rounds.Submit(ctx, classroom.ID, "s1", domain.Answer{Text: "X"})
	clk.Advance(time.Second)
	_, _ = services.Rounds.Submit(ctx, classroom.ID, "s1", domain.Answer{Text: "O"})

	results, err := services.Rounds.Results(ctx, classroom.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if results.Total != 1 || results.Tallies["O"] != 1 || results.Tallies["X"] != 0 {
		t.Fatalf("expected only the last answer counted, got %+v", results)
	}
}

func TestLatestPerStudentTieGoesToLaterArrival(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	subs := []domain.Submission{
		{ID: "a", StudentID: "s1", QuestionID: "q", Timestamp: at},
		{ID: "b", StudentID: "s1", QuestionID: "q", Timestamp: at},
	}
	got := app.LatestPerStudent("q", subs)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected later arrival b, got %+v", got)
	}
}

func TestSubmitErrors(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)

	if _, err := services.Rounds.Submit(ctx, classroom.ID, "s1", domain.Answer{Text: "O"}); !errors.Is(err, domain.ErrNoActiveRound) {
		t.Fatalf("expected no active round, got %v", err)
	}
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, trueFalse("O"))
	if _, err := services.Rounds.Submit(ctx, classroom.ID, "ghost", domain.Answer{Text: "O"}); !errors.Is(err, domain.ErrStudentNotFound) {
		t.Fatalf("expected student not found, got %v", err)
	}
}

func TestEndRoundIsIdempotent(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, trueFalse("O"))

	for i := 0; i < 2; i++ {
		if err := services.Rounds.EndRound(ctx, classroom.ID); err != nil {
			t.Fatalf("end round %d: %v", i, err)
		}
	}
	got, _ := services.Classrooms.GetClassroom(ctx, classroom.ID)
	if got.ActiveQuestion != nil {
		t.Fatalf("expected round ended")
	}
	if got.Version != 2 {
		t.Fatalf("expected the second end to skip the write, version=%d", got.Version)
	}
}

func TestRoundScopeEndsRoundOnce(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)

	scope := services.Rounds.OpenRound(classroom.ID)
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, trueFalse("O"))
	if err := scope.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := scope.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	got, _ := services.Classrooms.GetClassroom(ctx, classroom.ID)
	if got.ActiveQuestion != nil {
		t.Fatalf("expected round ended by scope")
	}
}

func TestRoundScopeWaitsForLastView(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)

	stale := services.Rounds.OpenRound(classroom.ID)
	fresh := services.Rounds.OpenRound(classroom.ID)
	_, _ = services.Rounds.SetActiveQuestion(ctx, classroom.ID, trueFalse("O"))

	_ = stale.Close()
	_ = stale.Close()
	got, _ := services.Classrooms.GetClassroom(ctx, classroom.ID)
	if got.ActiveQuestion == nil {
		t.Fatalf("expected round kept while another view is open")
	}

	if err := fresh.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got, _ = services.Classrooms.GetClassroom(ctx, classroom.ID)
	if got.ActiveQuestion != nil {
		t.Fatalf("expected round ended by the last view")
	}
}

func TestSetActiveQuestionRejectsDismissedClassroom(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)
	_ = services.Classrooms.DismissClassroom(ctx, classroom.ID)

	if _, err := services.Rounds.SetActiveQuestion(ctx, classroom.ID, trueFalse("O")); !errors.Is(err, domain.ErrClassroomDismissed) {
		t.Fatalf("expected dismissed, got %v", err)
	}
}

func TestValidateQuestion(t *testing.T) {
	cases := []struct {
		name string
		q    domain.Question
		ok   bool
	}{
		{"true-false", *trueFalse("O"), true},
		{"unknown kind", domain.Question{Kind: "essay", Question: "Why?"}, false},
		{"blank text", domain.Question{Kind: domain.KindShortAnswer, Question: "   "}, false},
		{"one option", domain.Question{Kind: domain.KindMultipleChoice, Question: "Pick", Options: []string{"a"}}, false},
		{"index out of range", domain.Question{Kind: domain.KindMultipleChoice, Question: "Pick", Options: []string{"a", "b"}, Answer: &domain.Answer{Indices: []int{2}}}, false},
		{"annotation without image", domain.Question{Kind: domain.KindImageAnnotation, Question: "Circle it"}, false},
		{"drawing", domain.Question{Kind: domain.KindDrawing, Question: "Draw a cat"}, true},
	}
	for _, tc := range cases {
		err := app.ValidateQuestion(tc.q)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, domain.ErrInvalidQuestion) {
			t.Fatalf("%s: expected invalid question, got %v", tc.name, err)
		}
	}
}

func TestAggregateTalliesMultipleChoiceByOption(t *testing.T) {
	q := domain.Question{ID: "q", Kind: domain.KindMultipleChoice, Options: []string{"3", "4", "5"}}
	subs := []domain.Submission{
		{StudentID: "s1", QuestionID: "q", Answer: domain.Answer{Indices: []int{1}}},
		{StudentID: "s2", QuestionID: "q", Answer: domain.Answer{Indices: []int{1, 1}}},
		{StudentID: "s3", QuestionID: "q", Answer: domain.Answer{Indices: []int{0}}},
	}
	got := app.Aggregate(q, subs)
	if got.Total != 3 || got.Tallies["4"] != 2 || got.Tallies["3"] != 1 {
		t.Fatalf("unexpected tallies %+v", got.Tallies)
	}
}
