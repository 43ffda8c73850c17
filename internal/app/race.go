package app

import (
	"context"
	"log"
	"time"

	"classroom-maestro/internal/domain"
)

// RaceCountdown is how long clients count down before claims open.
const RaceCountdown = 3 * time.Second

// ClaimOutcome is what a student sees after pressing the buzzer.
type ClaimOutcome string

const (
	ClaimWon      ClaimOutcome = "won"
	ClaimLost     ClaimOutcome = "lost"
	ClaimTooEarly ClaimOutcome = "too-early"
	ClaimNoRace   ClaimOutcome = "no-race"
)

// RaceClaim is one buzzer press as the store judges it.
type RaceClaim struct {
	StudentID   string
	StudentName string
	At          time.Time
	Countdown   time.Duration
}

// JudgeClaim decides a claim against the race as currently stored. Only ClaimWon may write.
func JudgeClaim(race *domain.RaceState, claim RaceClaim) ClaimOutcome {
	switch {
	case race == nil:
		return ClaimNoRace
	case race.Status != domain.RacePending || race.WinnerID != "":
		return ClaimLost
	case claim.At.Sub(race.StartTime) < claim.Countdown:
		return ClaimTooEarly
	}
	return ClaimWon
}

// ClaimResult carries the outcome and the race state the claimant observed.
type ClaimResult struct {
	Outcome ClaimOutcome      `json:"outcome"`
	Race    *domain.RaceState `json:"race"`
	// CountdownMs is the time left before claims open, set on too-early.
	CountdownMs int64 `json:"countdownMs,omitempty"`
}

// RaceEngine runs buzzer races: pending until the first accepted claim, then finished.
type RaceEngine struct {
	store     ClassroomStore
	now       func() time.Time
	countdown time.Duration
}

// NewRaceEngine builds a race engine. A non-positive countdown uses RaceCountdown.
func NewRaceEngine(store ClassroomStore, countdown time.Duration, now func() time.Time) *RaceEngine {
	if countdown <= 0 {
		countdown = RaceCountdown
	}
	return &RaceEngine{store: store, now: clock(now), countdown: countdown}
}

// StartRace opens a pending race stamped with the current time.
func (e *RaceEngine) StartRace(ctx context.Context, classroomID string) (domain.Classroom, error) {
	classroom, err := e.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		if c.IsDismissed {
			return domain.ErrClassroomDismissed
		}
		now := e.now()
		c.Race = &domain.RaceState{Status: domain.RacePending, StartTime: now}
		c.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Classroom{}, err
	}
	log.Printf("race started classroom=%s", classroomID)
	return classroom, nil
}

// ClaimRace attempts to win the race for studentID. The store judges and records the claim
// in a single conditional write, so concurrent claims produce exactly one winner and a claim
// never wins a race whose countdown is still running. Only the winner touches shared state.
func (e *RaceEngine) ClaimRace(ctx context.Context, classroomID, studentID string) (ClaimResult, error) {
	classroom, err := e.store.Get(ctx, classroomID)
	if err != nil {
		return ClaimResult{}, err
	}
	i := classroom.StudentIndex(studentID)
	if i < 0 {
		return ClaimResult{}, domain.ErrStudentNotFound
	}

	updated, outcome, err := e.store.ClaimRace(ctx, classroomID, RaceClaim{
		StudentID:   studentID,
		StudentName: classroom.Students[i].Name,
		At:          e.now(),
		Countdown:   e.countdown,
	})
	if err != nil {
		return ClaimResult{}, err
	}
	result := ClaimResult{Outcome: outcome, Race: updated.Race}
	switch outcome {
	case ClaimWon:
		log.Printf("race won classroom=%s student=%s", classroomID, studentID)
	case ClaimTooEarly:
		result.CountdownMs = e.Countdown(*updated.Race).Milliseconds()
	}
	return result, nil
}

// ResetRace clears the race.
func (e *RaceEngine) ResetRace(ctx context.Context, classroomID string) (domain.Classroom, error) {
	return e.store.Update(ctx, classroomID, func(c *domain.Classroom) error {
		c.Race = nil
		c.UpdatedAt = e.now()
		return nil
	})
}

// Countdown is the time left before claims open, derived only from the race start time
// and the local clock. Skew between devices shifts it by the same amount.
func (e *RaceEngine) Countdown(race domain.RaceState) time.Duration {
	return CountdownAt(race, e.countdown, e.now())
}

// CountdownAt computes the remaining countdown at now, clamped to zero.
func CountdownAt(race domain.RaceState, countdown time.Duration, now time.Time) time.Duration {
	left := countdown - now.Sub(race.StartTime)
	if left < 0 {
		return 0
	}
	if left > countdown {
		return countdown
	}
	return left
}
