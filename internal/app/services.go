package app

import "time"

// Services bundles the classroom use cases for the transport layer.
type Services struct {
	Classrooms *ClassroomService
	Rounds     *RoundController
	Scoring    *Scorer
	Presence   *PresenceTracker
	Races      *RaceEngine
	Lotteries  *DrawRegistry
	Courseware *CoursewareLibrary
	Sweeper    *Sweeper
	AI         Generator
}

// Options tune the services. Zero values pick the defaults.
type Options struct {
	RaceCountdown time.Duration
	Random        Source
	Now           func() time.Time
}

func NewServices(store ClassroomStore, courseware CoursewareRepository, ai Generator, opts Options) *Services {
	now := clock(opts.Now)
	rounds := NewRoundController(store, now)
	if ai == nil {
		ai = NewHTTPGenerator("", "", 0)
	}
	return &Services{
		Classrooms: NewClassroomService(store, now),
		Rounds:     rounds,
		Scoring:    NewScorer(store, now),
		Presence:   NewPresenceTracker(store, now),
		Races:      NewRaceEngine(store, opts.RaceCountdown, now),
		Lotteries:  NewDrawRegistry(NewLottery(opts.Random, now)),
		Courseware: NewCoursewareLibrary(courseware, rounds, now),
		Sweeper:    NewSweeper(store, now),
		AI:         ai,
	}
}
