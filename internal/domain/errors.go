package domain

import "errors"

var (
	// ErrClassroomNotFound is returned when a classroom document does not exist.
	ErrClassroomNotFound = errors.New("classroom not found")
	// ErrStudentNotFound is returned when a student is not on the classroom roster.
	ErrStudentNotFound = errors.New("student not found in classroom")
	// ErrPermissionDenied is returned when the caller does not own the classroom or package.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrClassroomLocked indicates that new students cannot join.
	ErrClassroomLocked = errors.New("classroom is locked")
	// ErrClassroomDismissed indicates the session has ended.
	ErrClassroomDismissed = errors.New("classroom has been dismissed")
	// ErrNoActiveRound is returned when a submission arrives while no question is live.
	ErrNoActiveRound = errors.New("no active question")
	// ErrInvalidInput indicates a request is missing required fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidQuestion indicates a malformed question payload.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrConflict is returned when an optimistic update kept losing to concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrPackageNotFound indicates the courseware package does not exist.
	ErrPackageNotFound = errors.New("package not found")
	// ErrUnitNotFound indicates the unit does not exist in the package.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrActivityNotFound indicates the activity does not exist in the unit.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidOrder indicates a reorder request that is not a permutation of the unit's activities.
	ErrInvalidOrder = errors.New("activity order must list every activity exactly once")
)
