package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"classroom-maestro/internal/domain"
	"github.com/google/uuid"
)

// CoursewareLibrary is CRUD over package -> unit -> activity trees. Every change
// rewrites the whole package document.
type CoursewareLibrary struct {
	repo   CoursewareRepository
	rounds *RoundController
	now    func() time.Time
}

func NewCoursewareLibrary(repo CoursewareRepository, rounds *RoundController, now func() time.Time) *CoursewareLibrary {
	return &CoursewareLibrary{repo: repo, rounds: rounds, now: clock(now)}
}

func (l *CoursewareLibrary) CreatePackage(ctx context.Context, ownerID, name string) (domain.Package, error) {
	name = strings.TrimSpace(name)
	if ownerID == "" || name == "" {
		return domain.Package{}, fmt.Errorf("%w: owner and name are required", domain.ErrInvalidInput)
	}
	now := l.now()
	pkg := domain.Package{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		Units:     []domain.Unit{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.repo.SavePackage(ctx, pkg); err != nil {
		return domain.Package{}, fmt.Errorf("save package: %w", err)
	}
	log.Printf("created package id=%s owner=%s", pkg.ID, ownerID)
	return pkg, nil
}

// GetPackage loads a package owned by ownerID.
func (l *CoursewareLibrary) GetPackage(ctx context.Context, ownerID, packageID string) (domain.Package, error) {
	pkg, err := l.repo.GetPackage(ctx, packageID)
	if err != nil {
		return domain.Package{}, err
	}
	if pkg.OwnerID != ownerID {
		return domain.Package{}, domain.ErrPermissionDenied
	}
	return pkg, nil
}

func (l *CoursewareLibrary) ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error) {
	return l.repo.ListPackages(ctx, ownerID)
}

func (l *CoursewareLibrary) DeletePackage(ctx context.Context, ownerID, packageID string) error {
	if _, err := l.GetPackage(ctx, ownerID, packageID); err != nil {
		return err
	}
	return l.repo.DeletePackage(ctx, packageID)
}

// modify loads, mutates and saves one package.
func (l *CoursewareLibrary) modify(ctx context.Context, ownerID, packageID string, mutate func(*domain.Package) error) (domain.Package, error) {
	pkg, err := l.GetPackage(ctx, ownerID, packageID)
	if err != nil {
		return domain.Package{}, err
	}
	if err := mutate(&pkg); err != nil {
		return domain.Package{}, err
	}
	pkg.UpdatedAt = l.now()
	if err := l.repo.SavePackage(ctx, pkg); err != nil {
		return domain.Package{}, fmt.Errorf("save package: %w", err)
	}
	return pkg, nil
}

func (l *CoursewareLibrary) RenamePackage(ctx context.Context, ownerID, packageID, name string) (domain.Package, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Package{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	return l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		p.Name = name
		return nil
	})
}

func (l *CoursewareLibrary) AddUnit(ctx context.Context, ownerID, packageID, name string) (domain.Package, domain.Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Package{}, domain.Unit{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	unit := domain.Unit{ID: uuid.NewString(), Name: name, Activities: []domain.Activity{}}
	pkg, err := l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		p.Units = append(p.Units, unit)
		return nil
	})
	return pkg, unit, err
}

func (l *CoursewareLibrary) RenameUnit(ctx context.Context, ownerID, packageID, unitID, name string) (domain.Package, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Package{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	return l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		u, err := unitOf(p, unitID)
		if err != nil {
			return err
		}
		u.Name = name
		return nil
	})
}

func (l *CoursewareLibrary) DeleteUnit(ctx context.Context, ownerID, packageID, unitID string) (domain.Package, error) {
	return l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		i := p.UnitIndex(unitID)
		if i < 0 {
			return domain.ErrUnitNotFound
		}
		p.Units = append(p.Units[:i], p.Units[i+1:]...)
		return nil
	})
}

// AddActivity appends a question to a unit under a new activity id.
func (l *CoursewareLibrary) AddActivity(ctx context.Context, ownerID, packageID, unitID string, question domain.Question) (domain.Package, domain.Activity, error) {
	if err := ValidateQuestion(question); err != nil {
		return domain.Package{}, domain.Activity{}, err
	}
	activity := domain.Activity{ID: uuid.NewString(), Question: sanitizeActivityQuestion(question)}
	pkg, err := l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		u, err := unitOf(p, unitID)
		if err != nil {
			return err
		}
		u.Activities = append(u.Activities, activity)
		return nil
	})
	return pkg, activity, err
}

// UpdateActivity replaces the question body; the activity id is kept.
func (l *CoursewareLibrary) UpdateActivity(ctx context.Context, ownerID, packageID, unitID, activityID string, question domain.Question) (domain.Package, error) {
	if err := ValidateQuestion(question); err != nil {
		return domain.Package{}, err
	}
	return l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		u, err := unitOf(p, unitID)
		if err != nil {
			return err
		}
		i := u.ActivityIndex(activityID)
		if i < 0 {
			return domain.ErrActivityNotFound
		}
		u.Activities[i].Question = sanitizeActivityQuestion(question)
		return nil
	})
}

func (l *CoursewareLibrary) DeleteActivity(ctx context.Context, ownerID, packageID, unitID, activityID string) (domain.Package, error) {
	return l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		u, err := unitOf(p, unitID)
		if err != nil {
			return err
		}
		i := u.ActivityIndex(activityID)
		if i < 0 {
			return domain.ErrActivityNotFound
		}
		u.Activities = append(u.Activities[:i], u.Activities[i+1:]...)
		return nil
	})
}

// ReorderActivities replaces the unit's activity order. order must be a permutation of the
// current activity ids.
func (l *CoursewareLibrary) ReorderActivities(ctx context.Context, ownerID, packageID, unitID string, order []string) (domain.Package, error) {
	return l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		u, err := unitOf(p, unitID)
		if err != nil {
			return err
		}
		if len(order) != len(u.Activities) {
			return domain.ErrInvalidOrder
		}
		byID := make(map[string]domain.Activity, len(u.Activities))
		for _, a := range u.Activities {
			byID[a.ID] = a
		}
		next := make([]domain.Activity, 0, len(order))
		for _, id := range order {
			a, ok := byID[id]
			if !ok {
				return domain.ErrInvalidOrder
			}
			delete(byID, id)
			next = append(next, a)
		}
		u.Activities = next
		return nil
	})
}

// DuplicateActivity inserts a copy with a new id right after the original.
func (l *CoursewareLibrary) DuplicateActivity(ctx context.Context, ownerID, packageID, unitID, activityID string) (domain.Package, domain.Activity, error) {
	var dup domain.Activity
	pkg, err := l.modify(ctx, ownerID, packageID, func(p *domain.Package) error {
		u, err := unitOf(p, unitID)
		if err != nil {
			return err
		}
		i := u.ActivityIndex(activityID)
		if i < 0 {
			return domain.ErrActivityNotFound
		}
		dup = domain.Activity{ID: uuid.NewString(), Question: u.Activities[i].Question.Clone()}
		next := make([]domain.Activity, 0, len(u.Activities)+1)
		next = append(next, u.Activities[:i+1]...)
		next = append(next, dup)
		next = append(next, u.Activities[i+1:]...)
		u.Activities = next
		return nil
	})
	return pkg, dup, err
}

// MoveActivity moves an activity to the end of another unit, possibly in another package.
// The activity keeps its id. Both packages must belong to ownerID.
func (l *CoursewareLibrary) MoveActivity(ctx context.Context, ownerID, fromPackageID, fromUnitID, toPackageID, toUnitID, activityID string) error {
	if fromPackageID == toPackageID {
		_, err := l.modify(ctx, ownerID, fromPackageID, func(p *domain.Package) error {
			activity, err := removeActivity(p, fromUnitID, activityID)
			if err != nil {
				return err
			}
			to, err := unitOf(p, toUnitID)
			if err != nil {
				return err
			}
			to.Activities = append(to.Activities, activity)
			return nil
		})
		return err
	}

	src, err := l.GetPackage(ctx, ownerID, fromPackageID)
	if err != nil {
		return err
	}
	dst, err := l.GetPackage(ctx, ownerID, toPackageID)
	if err != nil {
		return err
	}
	activity, err := removeActivity(&src, fromUnitID, activityID)
	if err != nil {
		return err
	}
	to, err := unitOf(&dst, toUnitID)
	if err != nil {
		return err
	}
	to.Activities = append(to.Activities, activity)

	now := l.now()
	dst.UpdatedAt = now
	src.UpdatedAt = now
	// Destination first so a failure in between leaves a duplicate rather than a loss.
	if err := l.repo.SavePackage(ctx, dst); err != nil {
		return fmt.Errorf("save package: %w", err)
	}
	if err := l.repo.SavePackage(ctx, src); err != nil {
		return fmt.Errorf("save package: %w", err)
	}
	return nil
}

// StartActivity copies an activity into a new round of a live classroom.
func (l *CoursewareLibrary) StartActivity(ctx context.Context, ownerID, classroomID, packageID, unitID, activityID string) (domain.Classroom, error) {
	pkg, err := l.GetPackage(ctx, ownerID, packageID)
	if err != nil {
		return domain.Classroom{}, err
	}
	u, err := unitOf(&pkg, unitID)
	if err != nil {
		return domain.Classroom{}, err
	}
	i := u.ActivityIndex(activityID)
	if i < 0 {
		return domain.Classroom{}, domain.ErrActivityNotFound
	}
	q := u.Activities[i].Question.Clone()
	q.ID = ""
	return l.rounds.SetActiveQuestion(ctx, classroomID, &q)
}

func unitOf(p *domain.Package, unitID string) (*domain.Unit, error) {
	i := p.UnitIndex(unitID)
	if i < 0 {
		return nil, domain.ErrUnitNotFound
	}
	return &p.Units[i], nil
}

func removeActivity(p *domain.Package, unitID, activityID string) (domain.Activity, error) {
	u, err := unitOf(p, unitID)
	if err != nil {
		return domain.Activity{}, err
	}
	i := u.ActivityIndex(activityID)
	if i < 0 {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	activity := u.Activities[i]
	u.Activities = append(u.Activities[:i], u.Activities[i+1:]...)
	return activity, nil
}

// sanitizeActivityQuestion strips round state from a stored question.
func sanitizeActivityQuestion(q domain.Question) domain.Question {
	out := q.Clone()
	out.ID = ""
	out.ShowAnswer = false
	out.StartedAt = time.Time{}
	return out
}
