package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// userHeader carries the caller identity established by the external auth provider.
const userHeader = "X-User-ID"

// Server exposes the classroom use cases over REST and the live websocket channel.
type Server struct {
	services *app.Services
	public   map[string]string
	validate *validator.Validate
	ws       *WSHandler
}

func NewServer(services *app.Services, public map[string]string) *Server {
	if public == nil {
		public = map[string]string{}
	}
	return &Server{
		services: services,
		public:   public,
		validate: validator.New(),
		ws:       NewWSHandler(services),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/config", s.getConfig).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.ws.ServeWS)

	c := r.PathPrefix("/classrooms").Subrouter()
	c.HandleFunc("", s.createClassroom).Methods(http.MethodPost)
	c.HandleFunc("", s.listClassrooms).Methods(http.MethodGet)
	c.HandleFunc("/{id}", s.getClassroom).Methods(http.MethodGet)
	c.HandleFunc("/{id}", s.deleteClassroom).Methods(http.MethodDelete)
	c.HandleFunc("/{id}/join", s.joinClassroom).Methods(http.MethodPost)
	c.HandleFunc("/{id}/lock", s.lockClassroom).Methods(http.MethodPost)
	c.HandleFunc("/{id}/dismiss", s.dismissClassroom).Methods(http.MethodPost)
	c.HandleFunc("/{id}/students/{studentId}", s.removeStudent).Methods(http.MethodDelete)
	c.HandleFunc("/{id}/students/{studentId}/logout", s.forceLogout).Methods(http.MethodPost)
	c.HandleFunc("/{id}/question", s.setQuestion).Methods(http.MethodPut)
	c.HandleFunc("/{id}/question", s.endRound).Methods(http.MethodDelete)
	c.HandleFunc("/{id}/submissions", s.submitAnswer).Methods(http.MethodPost)
	c.HandleFunc("/{id}/results", s.roundResults).Methods(http.MethodGet)
	c.HandleFunc("/{id}/reveal", s.reveal).Methods(http.MethodPost)
	c.HandleFunc("/{id}/award", s.award).Methods(http.MethodPost)
	c.HandleFunc("/{id}/leaderboard", s.leaderboard).Methods(http.MethodGet)
	c.HandleFunc("/{id}/presence", s.updatePresence).Methods(http.MethodPost)
	c.HandleFunc("/{id}/ping", s.ping).Methods(http.MethodPost)
	c.HandleFunc("/{id}/attendance", s.attendance).Methods(http.MethodGet)
	c.HandleFunc("/{id}/race", s.startRace).Methods(http.MethodPost)
	c.HandleFunc("/{id}/race/claim", s.claimRace).Methods(http.MethodPost)
	c.HandleFunc("/{id}/race/reset", s.resetRace).Methods(http.MethodPost)
	c.HandleFunc("/{id}/lottery", s.drawLottery).Methods(http.MethodPost)
	c.HandleFunc("/{id}/lottery", s.currentLottery).Methods(http.MethodGet)

	p := r.PathPrefix("/packages").Subrouter()
	p.HandleFunc("", s.createPackage).Methods(http.MethodPost)
	p.HandleFunc("", s.listPackages).Methods(http.MethodGet)
	p.HandleFunc("/{pkg}", s.getPackage).Methods(http.MethodGet)
	p.HandleFunc("/{pkg}", s.renamePackage).Methods(http.MethodPatch)
	p.HandleFunc("/{pkg}", s.deletePackage).Methods(http.MethodDelete)
	p.HandleFunc("/{pkg}/units", s.addUnit).Methods(http.MethodPost)
	p.HandleFunc("/{pkg}/units/{unit}", s.renameUnit).Methods(http.MethodPatch)
	p.HandleFunc("/{pkg}/units/{unit}", s.deleteUnit).Methods(http.MethodDelete)
	p.HandleFunc("/{pkg}/units/{unit}/order", s.reorderActivities).Methods(http.MethodPut)
	p.HandleFunc("/{pkg}/units/{unit}/activities", s.addActivity).Methods(http.MethodPost)
	p.HandleFunc("/{pkg}/units/{unit}/activities/{activity}", s.updateActivity).Methods(http.MethodPut)
	p.HandleFunc("/{pkg}/units/{unit}/activities/{activity}", s.deleteActivity).Methods(http.MethodDelete)
	p.HandleFunc("/{pkg}/units/{unit}/activities/{activity}/duplicate", s.duplicateActivity).Methods(http.MethodPost)
	p.HandleFunc("/{pkg}/units/{unit}/activities/{activity}/move", s.moveActivity).Methods(http.MethodPost)
	p.HandleFunc("/{pkg}/units/{unit}/activities/{activity}/start", s.startActivity).Methods(http.MethodPost)

	ai := r.PathPrefix("/ai").Subrouter()
	ai.HandleFunc("/poll", s.generatePoll).Methods(http.MethodPost)
	ai.HandleFunc("/questions", s.generateQuestions).Methods(http.MethodPost)
	ai.HandleFunc("/analysis", s.analyzeAnswers).Methods(http.MethodPost)
	return r
}

// getConfig returns public, non-secret connection parameters for clients.
func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.public)
}

type errorPayload struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]errorPayload{"error": {Message: app.UserMessage(err)}})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]errorPayload{"error": {Message: msg}})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrClassroomNotFound),
		errors.Is(err, domain.ErrStudentNotFound),
		errors.Is(err, domain.ErrPackageNotFound),
		errors.Is(err, domain.ErrUnitNotFound),
		errors.Is(err, domain.ErrActivityNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrClassroomLocked),
		errors.Is(err, domain.ErrClassroomDismissed),
		errors.Is(err, domain.ErrNoActiveRound),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and validates its struct tags. It writes the 400
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			badRequest(w, "invalid field: "+verrs[0].Field())
			return false
		}
		badRequest(w, "invalid request")
		return false
	}
	return true
}

// caller returns the authenticated user id or writes 401.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(userHeader)
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]errorPayload{"error": {Message: "missing " + userHeader + " header"}})
		return "", false
	}
	return id, true
}

// owner authorizes the caller as the owning teacher of the {id} classroom.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := caller(w, r)
	if !ok {
		return "", false
	}
	id := mux.Vars(r)["id"]
	if err := s.services.Classrooms.Authorize(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return "", false
	}
	return id, true
}
