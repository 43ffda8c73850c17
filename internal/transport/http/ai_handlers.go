package http

import "net/http"

type pollRequest struct {
	Topic string `json:"topic"`
}

type questionsRequest struct {
	Text string `json:"text"`
}

type analysisRequest struct {
	Answers []string `json:"answers"`
}

// AI calls are fail-soft: the response is always 200 with either a result or an error message.

func (s *Server) generatePoll(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	var req pollRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.services.AI.GeneratePoll(r.Context(), req.Topic))
}

func (s *Server) generateQuestions(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	var req questionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.services.AI.GenerateQuestions(r.Context(), req.Text))
}

func (s *Server) analyzeAnswers(w http.ResponseWriter, r *http.Request) {
	if _, ok := caller(w, r); !ok {
		return
	}
	var req analysisRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.services.AI.AnalyzeAnswers(r.Context(), req.Answers))
}
