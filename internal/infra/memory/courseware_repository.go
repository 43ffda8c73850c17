package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"golang.org/x/sync/singleflight"
)

var (
	_ app.CoursewareRepository = (*CoursewareRepository)(nil)
	_ app.CoursewareRepository = (*CachedCoursewareRepository)(nil)
)

// CoursewareRepository keeps packages in a map (useful for tests/demos).
type CoursewareRepository struct {
	mu       sync.RWMutex
	packages map[string]domain.Package
}

func NewCoursewareRepository(seed ...domain.Package) *CoursewareRepository {
	r := &CoursewareRepository{packages: make(map[string]domain.Package)}
	for _, p := range seed {
		r.packages[p.ID] = p.Clone()
	}
	return r
}

func (r *CoursewareRepository) SavePackage(_ context.Context, pkg domain.Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packages[pkg.ID] = pkg.Clone()
	return nil
}

func (r *CoursewareRepository) GetPackage(_ context.Context, id string) (domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pkg, ok := r.packages[id]; ok {
		return pkg.Clone(), nil
	}
	return domain.Package{}, domain.ErrPackageNotFound
}

func (r *CoursewareRepository) ListPackages(_ context.Context, ownerID string) ([]domain.Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Package, 0)
	for _, pkg := range r.packages {
		if pkg.OwnerID == ownerID {
			out = append(out, pkg.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *CoursewareRepository) DeletePackage(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.packages[id]; !ok {
		return domain.ErrPackageNotFound
	}
	delete(r.packages, id)
	return nil
}

// CachedCoursewareRepository caches packages with TTL to avoid repeated DB hits.
// Writes go through to the backing repository and drop the cached copy. Each write also bumps
// the package generation so a fill that loaded before the write never stores its stale copy.
type CachedCoursewareRepository struct {
	backing app.CoursewareRepository
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedPackage
	gen   map[string]uint64
}

type cachedPackage struct {
	pkg       domain.Package
	expiresAt time.Time
}

func NewCachedCoursewareRepository(backing app.CoursewareRepository, ttl time.Duration) *CachedCoursewareRepository {
	return &CachedCoursewareRepository{
		backing: backing,
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[string]cachedPackage),
		gen:     make(map[string]uint64),
	}
}

func (r *CachedCoursewareRepository) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[id]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.pkg.Clone(), nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[id]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.pkg, nil
		}
		gen := r.gen[id]
		r.mu.RUnlock()

		pkg, err := r.backing.GetPackage(ctx, id)
		if err != nil {
			return domain.Package{}, err
		}

		r.mu.Lock()
		if r.ttl > 0 && r.gen[id] == gen {
			r.cache[id] = cachedPackage{
				pkg:       pkg.Clone(),
				expiresAt: now.Add(r.ttlWithJitter()),
			}
		}
		r.mu.Unlock()
		return pkg, nil
	})
	if err != nil {
		return domain.Package{}, err
	}
	return result.(domain.Package).Clone(), nil
}

func (r *CachedCoursewareRepository) SavePackage(ctx context.Context, pkg domain.Package) error {
	if err := r.backing.SavePackage(ctx, pkg); err != nil {
		return err
	}
	r.invalidate(pkg.ID)
	return nil
}

func (r *CachedCoursewareRepository) ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error) {
	return r.backing.ListPackages(ctx, ownerID)
}

func (r *CachedCoursewareRepository) DeletePackage(ctx context.Context, id string) error {
	if err := r.backing.DeletePackage(ctx, id); err != nil {
		return err
	}
	r.invalidate(id)
	return nil
}

func (r *CachedCoursewareRepository) invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.gen[id]++
	r.mu.Unlock()
}

func (r *CachedCoursewareRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
