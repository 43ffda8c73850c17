package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"classroom-maestro/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Result is the fail-soft shape of every AI call: either Result is set or Error explains why not.
type Result[T any] struct {
	Result *T     `json:"result"`
	Error  string `json:"error,omitempty"`
}

func ok[T any](v T) Result[T] {
	return Result[T]{Result: &v}
}

func failed[T any](msg string) Result[T] {
	return Result[T]{Error: msg}
}

// PollDraft is a generated multiple-choice poll.
type PollDraft struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options" validate:"len=4,dive,required"`
	// Answer is the index of the correct option. A missing key is a schema violation.
	Answer *int `json:"answer" validate:"required,min=0,max=3"`
}

// AsQuestion turns the draft into a multiple-choice question.
func (p PollDraft) AsQuestion() domain.Question {
	q := domain.Question{
		Kind:     domain.KindMultipleChoice,
		Question: p.Question,
		Options:  append([]string(nil), p.Options...),
	}
	if p.Answer != nil {
		q.Answer = &domain.Answer{Indices: []int{*p.Answer}}
	}
	return q
}

// QuestionDraft is one generated question.
type QuestionDraft struct {
	Question string   `json:"question" validate:"required"`
	Options  []string `json:"options,omitempty" validate:"omitempty,dive,required"`
	Answer   string   `json:"answer,omitempty"`
}

// QuestionList is the text-to-question response.
type QuestionList struct {
	Questions []QuestionDraft `json:"questions" validate:"required,min=1,dive"`
}

// KeywordWeight is one keyword of a short-answer analysis.
type KeywordWeight struct {
	Keyword string  `json:"keyword" validate:"required"`
	Weight  float64 `json:"weight" validate:"gte=0"`
}

// AnswerAnalysis summarizes a set of short answers.
type AnswerAnalysis struct {
	Summary  string          `json:"summary" validate:"required"`
	Keywords []KeywordWeight `json:"keywords" validate:"dive"`
}

// EmptyAnalysis is returned without calling the model when there is nothing to analyze.
var EmptyAnalysis = AnswerAnalysis{Summary: "No answers to analyze yet.", Keywords: []KeywordWeight{}}

// Generator is the boundary to the external text/image model. Implementations never return
// errors; failures come back in Result.Error.
type Generator interface {
	GeneratePoll(ctx context.Context, topic string) Result[PollDraft]
	GenerateQuestions(ctx context.Context, text string) Result[QuestionList]
	AnalyzeAnswers(ctx context.Context, answers []string) Result[AnswerAnalysis]
}

// HTTPGenerator calls a JSON model gateway and validates the responses.
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
	validate *validator.Validate
}

// NewHTTPGenerator builds a generator for endpoint. An empty endpoint yields a generator
// that reports itself unconfigured on every call.
func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGenerator{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

const (
	errAINotConfigured = "AI generation is not configured"
	errAIUnavailable   = "AI generation failed, please try again"
	errAIInvalid       = "AI returned an unexpected response, please try again"
)

func (g *HTTPGenerator) GeneratePoll(ctx context.Context, topic string) Result[PollDraft] {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return failed[PollDraft]("a topic is required")
	}
	var out PollDraft
	if msg := g.call(ctx, "/poll", map[string]string{"topic": topic}, &out); msg != "" {
		return failed[PollDraft](msg)
	}
	return ok(out)
}

func (g *HTTPGenerator) GenerateQuestions(ctx context.Context, text string) Result[QuestionList] {
	text = strings.TrimSpace(text)
	if text == "" {
		return failed[QuestionList]("some text is required")
	}
	var out QuestionList
	if msg := g.call(ctx, "/questions", map[string]string{"context": text}, &out); msg != "" {
		return failed[QuestionList](msg)
	}
	return ok(out)
}

func (g *HTTPGenerator) AnalyzeAnswers(ctx context.Context, answers []string) Result[AnswerAnalysis] {
	nonEmpty := make([]string, 0, len(answers))
	for _, a := range answers {
		if a = strings.TrimSpace(a); a != "" {
			nonEmpty = append(nonEmpty, a)
		}
	}
	if len(nonEmpty) == 0 {
		return ok(EmptyAnalysis)
	}
	var out AnswerAnalysis
	if msg := g.call(ctx, "/analysis", map[string][]string{"answers": nonEmpty}, &out); msg != "" {
		return failed[AnswerAnalysis](msg)
	}
	if out.Keywords == nil {
		out.Keywords = []KeywordWeight{}
	}
	return ok(out)
}

// call posts req and decodes and validates the response into out. It returns a user-facing
// message on failure and "" on success.
func (g *HTTPGenerator) call(ctx context.Context, path string, req, out any) string {
	if g.endpoint == "" {
		return errAINotConfigured
	}
	body, err := json.Marshal(req)
	if err != nil {
		log.Printf("ai %s: encode request: %v", path, err)
		return errAIUnavailable
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+path, bytes.NewReader(body))
	if err != nil {
		log.Printf("ai %s: build request: %v", path, err)
		return errAIUnavailable
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		log.Printf("ai %s: %v", path, err)
		return errAIUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("ai %s: unexpected status %d", path, resp.StatusCode)
		return errAIUnavailable
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Printf("ai %s: decode response: %v", path, err)
		return errAIInvalid
	}
	if err := g.validate.Struct(out); err != nil {
		log.Printf("ai %s: %v", path, fmt.Errorf("invalid response: %w", err))
		return errAIInvalid
	}
	return ""
}
