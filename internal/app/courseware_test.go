package app_test

import (
	"context"
	"errors"
	"testing"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
)

func seedPackage(t *testing.T, lib *app.CoursewareLibrary, owner string, activities int) (domain.Package, domain.Unit) {
	t.Helper()
	ctx := context.Background()
	pkg, err := lib.CreatePackage(ctx, owner, "Fractions")
	if err != nil {
		t.Fatalf("create package: %v", err)
	}
	_, unit, err := lib.AddUnit(ctx, owner, pkg.ID, "Halves")
	if err != nil {
		t.Fatalf("add unit: %v", err)
	}
	for i := 0; i < activities; i++ {
		if _, _, err := lib.AddActivity(ctx, owner, pkg.ID, unit.ID, *trueFalse("O")); err != nil {
			t.Fatalf("add activity: %v", err)
		}
	}
	pkg, err = lib.GetPackage(ctx, owner, pkg.ID)
	if err != nil {
		t.Fatalf("get package: %v", err)
	}
	return pkg, pkg.Units[0]
}

func activityIDs(u domain.Unit) []string {
	ids := make([]string, 0, len(u.Activities))
	for _, a := range u.Activities {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestReorderKeepsActivityIDs(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	pkg, unit := seedPackage(t, services.Courseware, "teacher-1", 3)
	ids := activityIDs(unit)

	order := []string{ids[2], ids[0], ids[1]}
	updated, err := services.Courseware.ReorderActivities(ctx, "teacher-1", pkg.ID, unit.ID, order)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	got := activityIDs(updated.Units[0])
	for i := range order {
		if got[i] != order[i] {
			t.Fatalf("expected order %v, got %v", order, got)
		}
	}
}

func TestReorderRejectsNonPermutation(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	pkg, unit := seedPackage(t, services.Courseware, "teacher-1", 2)
	ids := activityIDs(unit)

	for _, order := range [][]string{{ids[0]}, {ids[0], ids[0]}, {ids[0], "other"}} {
		if _, err := services.Courseware.ReorderActivities(ctx, "teacher-1", pkg.ID, unit.ID, order); !errors.Is(err, domain.ErrInvalidOrder) {
			t.Fatalf("order %v: expected invalid order, got %v", order, err)
		}
	}
}

func TestDuplicateInsertsAfterOriginal(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	pkg, unit := seedPackage(t, services.Courseware, "teacher-1", 2)
	ids := activityIDs(unit)

	updated, dup, err := services.Courseware.DuplicateActivity(ctx, "teacher-1", pkg.ID, unit.ID, ids[0])
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	got := activityIDs(updated.Units[0])
	if len(got) != 3 || got[0] != ids[0] || got[1] != dup.ID || got[2] != ids[1] {
		t.Fatalf("expected copy right after original, got %v", got)
	}
	if dup.ID == ids[0] || dup.Question.Question != unit.Activities[0].Question.Question {
		t.Fatalf("expected new id with the same body, got %+v", dup)
	}
}

func TestMoveAcrossPackagesKeepsID(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	src, srcUnit := seedPackage(t, services.Courseware, "teacher-1", 2)
	dst, dstUnit := seedPackage(t, services.Courseware, "teacher-1", 0)
	moving := srcUnit.Activities[1].ID

	if err := services.Courseware.MoveActivity(ctx, "teacher-1", src.ID, srcUnit.ID, dst.ID, dstUnit.ID, moving); err != nil {
		t.Fatalf("move: %v", err)
	}
	src, _ = services.Courseware.GetPackage(ctx, "teacher-1", src.ID)
	dst, _ = services.Courseware.GetPackage(ctx, "teacher-1", dst.ID)
	if len(src.Units[0].Activities) != 1 {
		t.Fatalf("expected activity removed from source, got %v", activityIDs(src.Units[0]))
	}
	if got := activityIDs(dst.Units[0]); len(got) != 1 || got[0] != moving {
		t.Fatalf("expected %s in destination, got %v", moving, got)
	}
}

func TestMoveWithinPackageKeepsID(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	pkg, unit := seedPackage(t, services.Courseware, "teacher-1", 1)
	_, other, err := services.Courseware.AddUnit(ctx, "teacher-1", pkg.ID, "Quarters")
	if err != nil {
		t.Fatalf("add unit: %v", err)
	}
	moving := unit.Activities[0].ID

	if err := services.Courseware.MoveActivity(ctx, "teacher-1", pkg.ID, unit.ID, pkg.ID, other.ID, moving); err != nil {
		t.Fatalf("move: %v", err)
	}
	pkg, _ = services.Courseware.GetPackage(ctx, "teacher-1", pkg.ID)
	if len(pkg.Units[0].Activities) != 0 || pkg.Units[1].Activities[0].ID != moving {
		t.Fatalf("expected activity moved to second unit, got %+v", pkg.Units)
	}
}

func TestCoursewareOwnerOnly(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	pkg, _ := seedPackage(t, services.Courseware, "teacher-1", 0)

	if _, err := services.Courseware.GetPackage(ctx, "teacher-2", pkg.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if err := services.Courseware.DeletePackage(ctx, "teacher-2", pkg.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected permission denied on delete, got %v", err)
	}
	if _, err := services.Courseware.GetPackage(ctx, "teacher-1", "missing"); !errors.Is(err, domain.ErrPackageNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStartActivityRunsCopyOfQuestion(t *testing.T) {
	ctx := context.Background()
	services, _ := newTestServices(t)
	classroom := seedClassroom(t, services)
	pkg, unit := seedPackage(t, services.Courseware, "teacher-1", 1)
	activity := unit.Activities[0]

	first, err := services.Courseware.StartActivity(ctx, "teacher-1", classroom.ID, pkg.ID, unit.ID, activity.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := services.Courseware.StartActivity(ctx, "teacher-1", classroom.ID, pkg.ID, unit.ID, activity.ID)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if first.ActiveQuestion.ID == "" || first.ActiveQuestion.ID == second.ActiveQuestion.ID {
		t.Fatalf("expected each run to get its own round id")
	}

	pkg, _ = services.Courseware.GetPackage(ctx, "teacher-1", pkg.ID)
	if pkg.Units[0].Activities[0].Question.ID != "" {
		t.Fatalf("expected stored activity to stay free of round state")
	}
}
