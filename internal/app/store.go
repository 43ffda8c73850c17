package app

import (
	"context"
	"time"

	"classroom-maestro/internal/domain"
)

// ClassroomStore abstracts the live session document store (in-memory, Redis, etc).
// Every read returns a private copy of the document.
type ClassroomStore interface {
	Create(ctx context.Context, classroom domain.Classroom) error
	Get(ctx context.Context, id string) (domain.Classroom, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Classroom, error)
	// Update applies mutate to the latest document and replaces it whole. The write is
	// discarded and mutate re-run if another writer got in first. Returning an error from
	// mutate aborts without writing.
	Update(ctx context.Context, id string, mutate func(*domain.Classroom) error) (domain.Classroom, error)
	// ClaimRace judges claim with JudgeClaim against the stored race and, when it wins,
	// records the winner in the same conditional write.
	ClaimRace(ctx context.Context, id string, claim RaceClaim) (domain.Classroom, ClaimOutcome, error)
	// Delete removes the classroom together with its submissions.
	Delete(ctx context.Context, id string) error

	AddSubmission(ctx context.Context, submission domain.Submission) error
	// ListSubmissions returns the submissions tagged with questionID in arrival order.
	ListSubmissions(ctx context.Context, classroomID, questionID string) ([]domain.Submission, error)

	// Subscribe delivers the current document and then one snapshot per change.
	// The caller must invoke the returned cancel function; cancelling ctx has the same effect.
	Subscribe(ctx context.Context, id string) (<-chan domain.Classroom, func(), error)

	// ListExpired returns classrooms with isDismissed == false and sessionEndTime <= now.
	ListExpired(ctx context.Context, now time.Time) ([]domain.Classroom, error)
	// Dismiss marks the given classrooms dismissed and clears their presence in one atomic
	// write. Classrooms already dismissed are skipped; the count of changed documents is returned.
	Dismiss(ctx context.Context, ids []string, at time.Time) (int, error)
}

// CoursewareRepository persists courseware packages as whole documents.
type CoursewareRepository interface {
	SavePackage(ctx context.Context, pkg domain.Package) error
	GetPackage(ctx context.Context, id string) (domain.Package, error)
	ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error)
	DeletePackage(ctx context.Context, id string) error
}

// clock returns now, or time.Now when nil.
func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
