package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
)

func newAIServer(t *testing.T, hits *int32, handler func(w http.ResponseWriter, r *http.Request)) *app.HTTPGenerator {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return app.NewHTTPGenerator(server.URL, "key", time.Second)
}

func TestGeneratePollSuccess(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/poll" || r.Header.Get("Authorization") != "Bearer key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"question": "Largest planet?",
			"options":  []string{"Mars", "Jupiter", "Venus", "Earth"},
			"answer":   1,
		})
	})

	res := gen.GeneratePoll(context.Background(), "planets")
	if res.Error != "" || res.Result == nil {
		t.Fatalf("expected result, got error %q", res.Error)
	}
	q := res.Result.AsQuestion()
	if q.Kind != domain.KindMultipleChoice || len(q.Options) != 4 || q.Answer.Indices[0] != 1 {
		t.Fatalf("unexpected question %+v", q)
	}
	if err := app.ValidateQuestion(q); err != nil {
		t.Fatalf("generated poll should be a valid question: %v", err)
	}
}

func TestGeneratePollRejectsSchemaViolations(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"question": "Largest planet?",
			"options":  []string{"Mars", "Jupiter"},
			"answer":   1,
		})
	})

	res := gen.GeneratePoll(context.Background(), "planets")
	if res.Result != nil || res.Error == "" {
		t.Fatalf("expected fail-soft error, got %+v", res)
	}
}

func TestGeneratePollRequiresAnswer(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"question": "Largest planet?",
			"options":  []string{"Mars", "Jupiter", "Venus", "Earth"},
		})
	})

	res := gen.GeneratePoll(context.Background(), "planets")
	if res.Result != nil || res.Error == "" {
		t.Fatalf("expected a poll without an answer to be rejected, got %+v", res)
	}
}

func TestAIUpstreamFailureFailsSoft(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	res := gen.GenerateQuestions(context.Background(), "Photosynthesis turns light into sugar.")
	if res.Result != nil || res.Error == "" {
		t.Fatalf("expected fail-soft error, got %+v", res)
	}
}

func TestGenerateQuestionsRequiresNonEmptyList(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"questions": []any{}})
	})

	if res := gen.GenerateQuestions(context.Background(), "Some text"); res.Result != nil {
		t.Fatalf("expected empty list to be rejected, got %+v", res.Result)
	}
}

func TestAnalyzeAnswersSkipsCallWhenEmpty(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream call")
	})

	res := gen.AnalyzeAnswers(context.Background(), []string{"", "   "})
	if res.Result == nil || res.Result.Summary != app.EmptyAnalysis.Summary {
		t.Fatalf("expected canned empty analysis, got %+v", res)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no upstream calls, got %d", hits)
	}
}

func TestAnalyzeAnswersSuccess(t *testing.T) {
	var hits int32
	gen := newAIServer(t, &hits, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answers []string `json:"answers"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.Answers) != 2 {
			http.Error(w, "expected trimmed answers", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"summary":  "Most students mention sunlight.",
			"keywords": []map[string]any{{"keyword": "sunlight", "weight": 0.8}},
		})
	})

	res := gen.AnalyzeAnswers(context.Background(), []string{"sunlight", "", "sun light"})
	if res.Result == nil || len(res.Result.Keywords) != 1 {
		t.Fatalf("expected analysis, got %+v", res)
	}
}

func TestUnconfiguredGenerator(t *testing.T) {
	gen := app.NewHTTPGenerator("", "", 0)
	if res := gen.GeneratePoll(context.Background(), "topic"); res.Result != nil || res.Error == "" {
		t.Fatalf("expected not-configured error, got %+v", res)
	}
	if res := gen.GeneratePoll(context.Background(), "  "); res.Error == "" {
		t.Fatalf("expected topic guard")
	}
}
