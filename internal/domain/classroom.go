package domain

import "time"

// Student is a roster entry embedded in a classroom document.
type Student struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsOnline    bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen"`
	ForceLogout bool      `json:"forceLogout"`
}

// PingRequest marks the last attentiveness probe sent by the teacher.
type PingRequest struct {
	Timestamp time.Time `json:"timestamp"`
}

// RaceStatus is the state of a buzzer race.
type RaceStatus string

const (
	RacePending  RaceStatus = "pending"
	RaceFinished RaceStatus = "finished"
)

// RaceState is the shared buzzer race state; nil on the classroom means no race.
type RaceState struct {
	Status     RaceStatus `json:"status"`
	StartTime  time.Time  `json:"startTime"`
	WinnerID   string     `json:"winnerId,omitempty"`
	WinnerName string     `json:"winnerName,omitempty"`
}

// Classroom is the live session document owned by one teacher.
type Classroom struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	OwnerID        string         `json:"ownerId"`
	Students       []Student      `json:"students"`
	ActiveQuestion *Question      `json:"activeQuestion"`
	Race           *RaceState     `json:"race"`
	Scores         map[string]int `json:"scores"`
	IsLocked       bool           `json:"isLocked"`
	IsDismissed    bool           `json:"isDismissed"`
	PingRequest    *PingRequest   `json:"pingRequest,omitempty"`
	SessionEndTime *time.Time     `json:"sessionEndTime,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	// Version increments on every write.
	Version int64 `json:"version"`
}

// StudentIndex returns the roster position of a student or -1.
func (c *Classroom) StudentIndex(studentID string) int {
	for i := range c.Students {
		if c.Students[i].ID == studentID {
			return i
		}
	}
	return -1
}

// Dismiss ends the session: the live round, race and ping are cleared and every
// student's presence is dropped.
func (c *Classroom) Dismiss(at time.Time) {
	c.IsDismissed = true
	c.ActiveQuestion = nil
	c.Race = nil
	c.PingRequest = nil
	for i := range c.Students {
		c.Students[i].IsOnline = false
	}
	c.UpdatedAt = at
}

// Clone returns a deep copy so stores never hand out shared slices or maps.
func (c Classroom) Clone() Classroom {
	out := c
	if c.Students != nil {
		out.Students = append([]Student(nil), c.Students...)
	}
	if c.ActiveQuestion != nil {
		q := c.ActiveQuestion.Clone()
		out.ActiveQuestion = &q
	}
	if c.Race != nil {
		r := *c.Race
		out.Race = &r
	}
	if c.Scores != nil {
		out.Scores = make(map[string]int, len(c.Scores))
		for k, v := range c.Scores {
			out.Scores[k] = v
		}
	}
	if c.PingRequest != nil {
		p := *c.PingRequest
		out.PingRequest = &p
	}
	if c.SessionEndTime != nil {
		t := *c.SessionEndTime
		out.SessionEndTime = &t
	}
	return out
}

// Submission is one student's recorded answer for one round.
type Submission struct {
	ID          string    `json:"id"`
	ClassroomID string    `json:"classroomId"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	QuestionID  string    `json:"questionId"`
	Answer      Answer    `json:"answer"`
	Timestamp   time.Time `json:"timestamp"`
}

// Attentiveness classifies a student against the last ping.
type Attentiveness string

const (
	Attentive   Attentiveness = "attentive"
	Inattentive Attentiveness = "inattentive"
	Offline     Attentiveness = "offline"
)

// ScoreEntry is a leaderboard row.
type ScoreEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
}

// RoundResults aggregates the current round's submissions.
type RoundResults struct {
	QuestionID string         `json:"questionId"`
	Total      int            `json:"total"`
	Tallies    map[string]int `json:"tallies"`
	// Answers holds one submission per student.
	Answers []Submission `json:"answers"`
}
