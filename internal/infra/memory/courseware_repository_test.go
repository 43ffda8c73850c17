package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"classroom-maestro/internal/domain"
)

func TestCachedCoursewareRepositoryCaches(t *testing.T) {
	backing := &countingRepository{CoursewareRepository: NewCoursewareRepository(samplePackage())}
	repo := NewCachedCoursewareRepository(backing, time.Minute)

	if _, err := repo.GetPackage(context.Background(), "pkg-1"); err != nil {
		t.Fatalf("get package: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected backing read once, got %d", backing.gets)
	}

	if _, err := repo.GetPackage(context.Background(), "pkg-1"); err != nil {
		t.Fatalf("get package 2: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected cache hit, backing reads %d", backing.gets)
	}
}

func TestCachedCoursewareRepositoryInvalidatesOnSave(t *testing.T) {
	backing := &countingRepository{CoursewareRepository: NewCoursewareRepository(samplePackage())}
	repo := NewCachedCoursewareRepository(backing, time.Minute)
	ctx := context.Background()

	pkg, err := repo.GetPackage(ctx, "pkg-1")
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	pkg.Name = "Renamed"
	if err := repo.SavePackage(ctx, pkg); err != nil {
		t.Fatalf("save package: %v", err)
	}

	got, err := repo.GetPackage(ctx, "pkg-1")
	if err != nil {
		t.Fatalf("get package after save: %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("expected fresh package after save, got %q", got.Name)
	}
	if backing.gets != 2 {
		t.Fatalf("expected reload after invalidation, backing reads %d", backing.gets)
	}
}

func TestCachedCoursewareRepositoryDropsFillRacingSave(t *testing.T) {
	backing := newStallingRepository(NewCoursewareRepository(samplePackage()))
	repo := NewCachedCoursewareRepository(backing, time.Minute)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = repo.GetPackage(ctx, "pkg-1")
	}()
	<-backing.loading

	pkg := samplePackage()
	pkg.Name = "Renamed"
	if err := repo.SavePackage(ctx, pkg); err != nil {
		t.Fatalf("save package: %v", err)
	}
	close(backing.release)
	<-done

	got, err := repo.GetPackage(ctx, "pkg-1")
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	if got.Name != "Renamed" {
		t.Fatalf("expected saved package, cache served %q", got.Name)
	}
}

func TestCachedCoursewareRepositoryZeroTTLDoesNotCache(t *testing.T) {
	backing := &countingRepository{CoursewareRepository: NewCoursewareRepository(samplePackage())}
	repo := NewCachedCoursewareRepository(backing, 0)
	ctx := context.Background()

	_, _ = repo.GetPackage(ctx, "pkg-1")
	_, _ = repo.GetPackage(ctx, "pkg-1")
	if backing.gets != 2 {
		t.Fatalf("expected every read to reach the backing repository, got %d", backing.gets)
	}
}

func TestCoursewareRepositoryReturnsCopies(t *testing.T) {
	repo := NewCoursewareRepository(samplePackage())
	ctx := context.Background()

	pkg, _ := repo.GetPackage(ctx, "pkg-1")
	pkg.Units[0].Activities[0].Question.Question = "mutated"

	again, _ := repo.GetPackage(ctx, "pkg-1")
	if again.Units[0].Activities[0].Question.Question == "mutated" {
		t.Fatalf("expected repository to hand out copies")
	}
	if err := repo.DeletePackage(ctx, "missing"); err != domain.ErrPackageNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingRepository struct {
	*CoursewareRepository
	gets int
}

func (r *countingRepository) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	r.gets++
	return r.CoursewareRepository.GetPackage(ctx, id)
}

// stallingRepository blocks its first GetPackage after reading, until release is closed.
type stallingRepository struct {
	*CoursewareRepository
	once    sync.Once
	loading chan struct{}
	release chan struct{}
}

func newStallingRepository(repo *CoursewareRepository) *stallingRepository {
	return &stallingRepository{
		CoursewareRepository: repo,
		loading:              make(chan struct{}),
		release:              make(chan struct{}),
	}
}

func (r *stallingRepository) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	pkg, err := r.CoursewareRepository.GetPackage(ctx, id)
	r.once.Do(func() {
		close(r.loading)
		<-r.release
	})
	return pkg, err
}

func samplePackage() domain.Package {
	return domain.Package{
		ID:      "pkg-1",
		OwnerID: "teacher-1",
		Name:    "Fractions",
		Units: []domain.Unit{
			{
				ID:   "unit-1",
				Name: "Halves",
				Activities: []domain.Activity{
					{ID: "act-1", Question: domain.Question{Kind: domain.KindTrueFalse, Question: "1/2 == 2/4?", Answer: &domain.Answer{Text: "O"}}},
				},
			},
		},
	}
}
