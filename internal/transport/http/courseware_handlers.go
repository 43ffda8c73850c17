package http

import (
	"net/http"

	"classroom-maestro/internal/domain"
	"github.com/gorilla/mux"
)

type nameRequest struct {
	Name string `json:"name" validate:"required"`
}

type orderRequest struct {
	ActivityIDs []string `json:"activityIds" validate:"required"`
}

type moveRequest struct {
	ToPackageID string `json:"toPackageId" validate:"required"`
	ToUnitID    string `json:"toUnitId" validate:"required"`
}

type startRequest struct {
	ClassroomID string `json:"classroomId" validate:"required"`
}

type unitResponse struct {
	Package domain.Package `json:"package"`
	Unit    domain.Unit    `json:"unit"`
}

type activityResponse struct {
	Package  domain.Package  `json:"package"`
	Activity domain.Activity `json:"activity"`
}

func (s *Server) createPackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	pkg, err := s.services.Courseware.CreatePackage(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pkg)
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	pkgs, err := s.services.Courseware.ListPackages(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkgs)
}

func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	pkg, err := s.services.Courseware.GetPackage(r.Context(), userID, mux.Vars(r)["pkg"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) renamePackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	pkg, err := s.services.Courseware.RenamePackage(r.Context(), userID, mux.Vars(r)["pkg"], req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) deletePackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	if err := s.services.Courseware.DeletePackage(r.Context(), userID, mux.Vars(r)["pkg"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addUnit(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	pkg, unit, err := s.services.Courseware.AddUnit(r.Context(), userID, mux.Vars(r)["pkg"], req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, unitResponse{Package: pkg, Unit: unit})
}

func (s *Server) renameUnit(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if !s.decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	pkg, err := s.services.Courseware.RenameUnit(r.Context(), userID, vars["pkg"], vars["unit"], req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) deleteUnit(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	pkg, err := s.services.Courseware.DeleteUnit(r.Context(), userID, vars["pkg"], vars["unit"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) reorderActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req orderRequest
	if !s.decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	pkg, err := s.services.Courseware.ReorderActivities(r.Context(), userID, vars["pkg"], vars["unit"], req.ActivityIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) addActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var question domain.Question
	if !s.decode(w, r, &question) {
		return
	}
	vars := mux.Vars(r)
	pkg, activity, err := s.services.Courseware.AddActivity(r.Context(), userID, vars["pkg"], vars["unit"], question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activityResponse{Package: pkg, Activity: activity})
}

func (s *Server) updateActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var question domain.Question
	if !s.decode(w, r, &question) {
		return
	}
	vars := mux.Vars(r)
	pkg, err := s.services.Courseware.UpdateActivity(r.Context(), userID, vars["pkg"], vars["unit"], vars["activity"], question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) deleteActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	pkg, err := s.services.Courseware.DeleteActivity(r.Context(), userID, vars["pkg"], vars["unit"], vars["activity"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) duplicateActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	pkg, activity, err := s.services.Courseware.DuplicateActivity(r.Context(), userID, vars["pkg"], vars["unit"], vars["activity"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, activityResponse{Package: pkg, Activity: activity})
}

func (s *Server) moveActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !s.decode(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	err := s.services.Courseware.MoveActivity(r.Context(), userID, vars["pkg"], vars["unit"], req.ToPackageID, req.ToUnitID, vars["activity"])
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) startActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := caller(w, r)
	if !ok {
		return
	}
	var req startRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.services.Classrooms.Authorize(r.Context(), req.ClassroomID, userID); err != nil {
		writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	classroom, err := s.services.Courseware.StartActivity(r.Context(), userID, req.ClassroomID, vars["pkg"], vars["unit"], vars["activity"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classroom)
}
