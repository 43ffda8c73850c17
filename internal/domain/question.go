package domain

import "time"

// QuestionKind tags the question variant.
type QuestionKind string

const (
	KindTrueFalse       QuestionKind = "true-false"
	KindMultipleChoice  QuestionKind = "multiple-choice"
	KindShortAnswer     QuestionKind = "short-answer"
	KindDrawing         QuestionKind = "drawing"
	KindImageAnnotation QuestionKind = "image-annotation"
)

// Valid reports whether k is a known variant.
func (k QuestionKind) Valid() bool {
	switch k {
	case KindTrueFalse, KindMultipleChoice, KindShortAnswer, KindDrawing, KindImageAnnotation:
		return true
	}
	return false
}

// Graded reports whether answers of this kind can be checked against a key.
func (k QuestionKind) Graded() bool {
	return k == KindTrueFalse || k == KindMultipleChoice || k == KindShortAnswer
}

// Answer carries a response or answer key. True-false and short-answer use Text,
// multiple-choice uses option Indices. Values lists the elements of a multi-part text
// answer explicitly instead of comma-separating them in Text.
type Answer struct {
	Text    string   `json:"text,omitempty"`
	Values  []string `json:"values,omitempty"`
	Indices []int    `json:"indices,omitempty"`
}

// IsZero reports whether the answer carries no value.
func (a Answer) IsZero() bool {
	return a.Text == "" && len(a.Values) == 0 && len(a.Indices) == 0
}

// Clone copies the slices of the answer.
func (a Answer) Clone() Answer {
	out := a
	if a.Values != nil {
		out.Values = append([]string(nil), a.Values...)
	}
	if a.Indices != nil {
		out.Indices = append([]int(nil), a.Indices...)
	}
	return out
}

// Question is a live round question or a courseware activity body.
type Question struct {
	ID         string       `json:"id"`
	Kind       QuestionKind `json:"kind"`
	Question   string       `json:"question"`
	Options    []string     `json:"options,omitempty"`
	ImageURL   string       `json:"imageUrl,omitempty"`
	Answer     *Answer      `json:"answer,omitempty"`
	ShowAnswer bool         `json:"showAnswer"`
	StartedAt  time.Time    `json:"startedAt,omitempty"`
}

// Clone returns a deep copy of q.
func (q Question) Clone() Question {
	out := q
	if q.Options != nil {
		out.Options = append([]string(nil), q.Options...)
	}
	if q.Answer != nil {
		a := q.Answer.Clone()
		out.Answer = &a
	}
	return out
}
