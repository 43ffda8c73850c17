package http

import (
	"net/http"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"github.com/gorilla/mux"
)

type createClassroomRequest struct {
	Name           string           `json:"name" validate:"required"`
	Students       []app.NewStudent `json:"students" validate:"dive"`
	SessionEndTime *time.Time       `json:"sessionEndTime"`
}

type joinRequest struct {
	Name string `json:"name" validate:"required"`
}

type lockRequest struct {
	Locked bool `json:"locked"`
}

type submitRequest struct {
	Answer domain.Answer `json:"answer"`
}

type revealRequest struct {
	Points int `json:"points" validate:"min=0"`
}

type awardRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
	Points     int      `json:"points"`
}

type presenceRequest struct {
	Online bool `json:"online"`
}

type lotteryRequest struct {
	Mode   app.PoolMode `json:"mode" validate:"omitempty,oneof=all online"`
	Unique bool         `json:"unique"`
	Reset  bool         `json:"reset"`
}

type lotteryResponse struct {
	Winner    *domain.Student `json:"winner"`
	Picked    []string        `json:"picked"`
	Exhausted bool            `json:"exhausted"`
}

type revealResponse struct {
	Classroom domain.Classroom `json:"classroom"`
	Awarded   []string         `json:"awarded"`
}

func (s *Server) createClassroom(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req createClassroomRequest
	if !s.decode(w, r, &req) {
		return
	}
	classroom, err := s.services.Classrooms.CreateClassroom(r.Context(), userID, req.Name, req.Students, req.SessionEndTime)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, classroom)
}

func (s *Server) listClassrooms(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("ownerId")
	if ownerID == "" {
		var ok bool
		if ownerID, ok = caller(w, r); !ok {
			return
		}
	}
	classrooms, err := s.services.Classrooms.ListClassrooms(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classrooms)
}

func (s *Server) getClassroom(w http.ResponseWriter, r *http.Request) {
	classroom, err := s.services.Classrooms.GetClassroom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) deleteClassroom(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.services.Classrooms.DeleteClassroom(r.Context(), userID, id); err != nil {
		writeError(w, err)
		return
	}
	s.services.Lotteries.Release(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) joinClassroom(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !s.decode(w, r, &req) {
		return
	}
	classroom, err := s.services.Classrooms.JoinClassroom(r.Context(), mux.Vars(r)["id"], userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) lockClassroom(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req lockRequest
	if !s.decode(w, r, &req) {
		return
	}
	classroom, err := s.services.Classrooms.SetLocked(r.Context(), id, req.Locked)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) dismissClassroom(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.services.Classrooms.DismissClassroom(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.services.Lotteries.Release(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	classroom, err := s.services.Classrooms.RemoveStudent(r.Context(), id, mux.Vars(r)["studentId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) forceLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	classroom, err := s.services.Classrooms.ForceLogout(r.Context(), id, mux.Vars(r)["studentId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) setQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	var question domain.Question
	if !s.decode(w, r, &question) {
		return
	}
	classroom, err := s.services.Rounds.SetActiveQuestion(r.Context(), id, &question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) endRound(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.services.Rounds.EndRound(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}
	submission, err := s.services.Rounds.Submit(r.Context(), mux.Vars(r)["id"], userID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, submission)
}

func (s *Server) roundResults(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	results, err := s.services.Rounds.Results(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) reveal(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req revealRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	classroom, awarded, err := s.services.Scoring.RevealAndAward(r.Context(), id, req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	if awarded == nil {
		awarded = []string{}
	}
	writeJSON(w, http.StatusOK, revealResponse{Classroom: classroom, Awarded: awarded})
}

func (s *Server) award(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req awardRequest
	if !s.decode(w, r, &req) {
		return
	}
	classroom, err := s.services.Scoring.AwardPoints(r.Context(), id, req.StudentIDs, req.Points)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	classroom, err := s.services.Classrooms.GetClassroom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Leaderboard(classroom))
}

func (s *Server) updatePresence(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req presenceRequest
	if !s.decode(w, r, &req) {
		return
	}
	classroom, err := s.services.Presence.UpdatePresence(r.Context(), mux.Vars(r)["id"], userID, req.Online)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	classroom, err := s.services.Presence.PingStudents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) attendance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	classroom, err := s.services.Classrooms.GetClassroom(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.Attendance(classroom))
}

func (s *Server) startRace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	classroom, err := s.services.Races.StartRace(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) claimRace(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	result, err := s.services.Races.ClaimRace(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) resetRace(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	classroom, err := s.services.Races.ResetRace(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}

func (s *Server) drawLottery(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	var req lotteryRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	classroom, err := s.services.Classrooms.GetClassroom(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	draw := s.services.Lotteries.Draw(id, req.Mode, req.Unique)
	if req.Reset {
		draw.Reset()
	}
	resp := nextPick(draw, classroom.Students)
	writeJSON(w, http.StatusOK, resp)
}

// currentLottery reports the latest pick without drawing.
func (s *Server) currentLottery(w http.ResponseWriter, r *http.Request) {
	id, ok := s.owner(w, r)
	if !ok {
		return
	}
	resp := lotteryResponse{Picked: []string{}}
	if draw, ok := s.services.Lotteries.Lookup(id); ok {
		if current, ok := draw.Current(); ok {
			resp.Winner = &current
		}
		if picked := draw.Picked(); picked != nil {
			resp.Picked = picked
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// nextPick draws the next student and reports the draw's state.
func nextPick(draw *app.Draw, students []domain.Student) lotteryResponse {
	resp := lotteryResponse{}
	if winner, ok := draw.Next(students); ok {
		resp.Winner = &winner
	} else {
		resp.Exhausted = true
	}
	resp.Picked = draw.Picked()
	if resp.Picked == nil {
		resp.Picked = []string{}
	}
	return resp
}
