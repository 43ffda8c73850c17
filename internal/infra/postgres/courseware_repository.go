package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ app.CoursewareRepository = (*CoursewareRepository)(nil)

// CoursewareRepository stores packages as JSONB documents, one row per package.
type CoursewareRepository struct {
	pool *pgxpool.Pool
}

func NewCoursewareRepository(pool *pgxpool.Pool) *CoursewareRepository {
	return &CoursewareRepository{pool: pool}
}

func (r *CoursewareRepository) SavePackage(ctx context.Context, pkg domain.Package) error {
	data, err := json.Marshal(pkg)
	if err != nil {
		return fmt.Errorf("marshal package: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO packages (id, owner_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		pkg.ID, pkg.OwnerID, data, pkg.CreatedAt, pkg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save package: %w", err)
	}
	return nil
}

func (r *CoursewareRepository) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM packages WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Package{}, domain.ErrPackageNotFound
	}
	if err != nil {
		return domain.Package{}, fmt.Errorf("load package: %w", err)
	}
	var pkg domain.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return domain.Package{}, fmt.Errorf("unmarshal package: %w", err)
	}
	return pkg, nil
}

func (r *CoursewareRepository) ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error) {
	rows, err := r.pool.Query(ctx, `SELECT data FROM packages WHERE owner_id=$1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Package, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		var pkg domain.Package
		if err := json.Unmarshal(raw, &pkg); err != nil {
			return nil, fmt.Errorf("unmarshal package: %w", err)
		}
		out = append(out, pkg)
	}
	return out, rows.Err()
}

func (r *CoursewareRepository) DeletePackage(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM packages WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPackageNotFound
	}
	return nil
}
