package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	roleTeacher = "teacher"
	roleStudent = "student"

	writeWait = 10 * time.Second

	lotteryFrames        = 10
	lotteryFrameInterval = 80 * time.Millisecond
)

type WSHandler struct {
	services *app.Services
	upgrader websocket.Upgrader
}

func NewWSHandler(services *app.Services) *WSHandler {
	return &WSHandler{
		services: services,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type wsAnswerPayload struct {
	Answer domain.Answer `json:"answer"`
}

type wsPresencePayload struct {
	Online bool `json:"online"`
}

type wsRevealPayload struct {
	Points int `json:"points"`
}

// session is one websocket connection bound to a classroom.
type session struct {
	classroomID string
	userID      string
	role        string
	send        chan<- outboundMessage[any]
	settle      *settleRun
}

// settleRun is the teacher's lottery animation; starting a new one cancels the previous.
type settleRun struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (r *settleRun) start(ctx context.Context, run func(ctx context.Context)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		run(runCtx)
	}()
}

func (r *settleRun) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// wait stops the animation and returns once its goroutine has exited.
func (r *settleRun) wait() {
	r.stop()
	r.wg.Wait()
}

func (s session) emit(typ string, payload any) {
	s.send <- outboundMessage[any]{Type: typ, Payload: payload}
}

func (s session) fail(err error) {
	s.emit("error", errorPayload{Message: app.UserMessage(err)})
}

// ServeWS upgrades HTTP requests to websockets and streams classroom snapshots. Students
// join on connect and go offline on disconnect; a teacher connection owns the live round
// and ends it when it closes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	classroomID := q.Get("classroomId")
	userID := q.Get("userId")
	name := q.Get("name")
	role := q.Get("role")
	if role == "" {
		role = roleStudent
	}
	if classroomID == "" || userID == "" || (role != roleTeacher && role != roleStudent) {
		http.Error(w, "missing classroomId or userId, or invalid role", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The request context is not reliable once the connection is hijacked.
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	writeErr := func(err error) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: app.UserMessage(err)}})
	}

	switch role {
	case roleTeacher:
		if err := h.services.Classrooms.Authorize(ctx, classroomID, userID); err != nil {
			writeErr(err)
			return
		}
		scope := h.services.Rounds.OpenRound(classroomID)
		defer func() {
			if err := scope.Close(); err != nil {
				log.Printf("end round on teacher disconnect classroom=%s: %v", classroomID, err)
			}
		}()
	case roleStudent:
		if _, err := h.services.Classrooms.JoinClassroom(ctx, classroomID, userID, name); err != nil {
			writeErr(err)
			return
		}
		defer func() {
			offCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := h.services.Presence.UpdatePresence(offCtx, classroomID, userID, false); err != nil {
				log.Printf("presence offline classroom=%s student=%s: %v", classroomID, userID, err)
			}
		}()
	}

	updates, cancel, err := h.services.Classrooms.Subscribe(ctx, classroomID)
	if err != nil {
		writeErr(err)
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// Unblock the reader so the handler unwinds.
				_ = conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// Classroom deleted.
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "classroom", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	sess := session{classroomID: classroomID, userID: userID, role: role, send: send, settle: &settleRun{}}
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if role == roleTeacher {
			h.handleTeacher(ctx, sess, inbound)
		} else {
			h.handleStudent(ctx, sess, inbound)
		}
	}

	close(closeSignals)
	<-updatesDone
	sess.settle.wait()
	close(send)
	<-writerDone
}

func (h *WSHandler) handleStudent(ctx context.Context, s session, in inboundMessage) {
	switch in.Type {
	case "answer":
		var payload wsAnswerPayload
		if err := json.Unmarshal(in.Payload, &payload); err != nil {
			s.emit("error", errorPayload{Message: "invalid answer payload"})
			return
		}
		submission, err := h.services.Rounds.Submit(ctx, s.classroomID, s.userID, payload.Answer)
		if err != nil {
			s.fail(err)
			return
		}
		s.emit("submitted", submission)
	case "presence":
		payload := wsPresencePayload{Online: true}
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &payload); err != nil {
				s.emit("error", errorPayload{Message: "invalid presence payload"})
				return
			}
		}
		if _, err := h.services.Presence.UpdatePresence(ctx, s.classroomID, s.userID, payload.Online); err != nil {
			s.fail(err)
		}
	case "claim":
		result, err := h.services.Races.ClaimRace(ctx, s.classroomID, s.userID)
		if err != nil {
			s.fail(err)
			return
		}
		s.emit("claim", result)
	default:
		s.emit("error", errorPayload{Message: "unsupported message type"})
	}
}

// drawLottery picks the winner up front, then streams the shuffle as lottery-frame messages
// and finishes with the lottery result. A cancelled animation ends with lottery-cancelled;
// the pick itself stays recorded.
func (h *WSHandler) drawLottery(ctx context.Context, s session, req lotteryRequest) {
	classroom, err := h.services.Classrooms.GetClassroom(ctx, s.classroomID)
	if err != nil {
		s.fail(err)
		return
	}
	draw := h.services.Lotteries.Draw(s.classroomID, req.Mode, req.Unique)
	if req.Reset {
		draw.Reset()
	}
	resp := nextPick(draw, classroom.Students)
	if resp.Exhausted {
		s.settle.stop()
		s.emit("lottery", resp)
		return
	}
	s.settle.start(ctx, func(runCtx context.Context) {
		err := draw.Settle(runCtx, classroom.Students, lotteryFrames, lotteryFrameInterval, func(st domain.Student) {
			s.emit("lottery-frame", st)
		})
		if err != nil {
			s.emit("lottery-cancelled", resp)
			return
		}
		s.emit("lottery", resp)
	})
}

func (h *WSHandler) handleTeacher(ctx context.Context, s session, in inboundMessage) {
	switch in.Type {
	case "ping":
		if _, err := h.services.Presence.PingStudents(ctx, s.classroomID); err != nil {
			s.fail(err)
		}
	case "reveal":
		var payload wsRevealPayload
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &payload); err != nil {
				s.emit("error", errorPayload{Message: "invalid reveal payload"})
				return
			}
		}
		_, awarded, err := h.services.Scoring.RevealAndAward(ctx, s.classroomID, payload.Points)
		if err != nil {
			s.fail(err)
			return
		}
		if awarded == nil {
			awarded = []string{}
		}
		s.emit("awarded", awarded)
	case "end":
		if err := h.services.Rounds.EndRound(ctx, s.classroomID); err != nil {
			s.fail(err)
		}
	case "lottery":
		var payload lotteryRequest
		if len(in.Payload) > 0 {
			if err := json.Unmarshal(in.Payload, &payload); err != nil {
				s.emit("error", errorPayload{Message: "invalid lottery payload"})
				return
			}
		}
		if payload.Mode != "" && payload.Mode != app.PoolAll && payload.Mode != app.PoolOnline {
			s.emit("error", errorPayload{Message: "invalid lottery mode"})
			return
		}
		h.drawLottery(ctx, s, payload)
	case "lottery-cancel":
		s.settle.stop()
	default:
		s.emit("error", errorPayload{Message: "unsupported message type"})
	}
}
