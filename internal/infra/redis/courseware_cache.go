package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var _ app.CoursewareRepository = (*CoursewareCache)(nil)

// CoursewareCache caches package documents in Redis (one JSON string per package) and falls
// back to the backing repository on a miss. Writes go through, drop the cached copy and bump
// courseware:package:{id}:gen; a fill only stores its copy if the generation is unchanged.
type CoursewareCache struct {
	client  *redis.Client
	backing app.CoursewareRepository
	ttl     time.Duration
	sf      singleflight.Group
	rndMu   sync.Mutex
	rnd     *rand.Rand
}

func NewCoursewareCache(client *redis.Client, backing app.CoursewareRepository, ttl time.Duration) *CoursewareCache {
	return &CoursewareCache{
		client:  client,
		backing: backing,
		ttl:     ttl,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CoursewareCache) GetPackage(ctx context.Context, id string) (domain.Package, error) {
	if pkg, ok := c.cached(ctx, id); ok {
		return pkg, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pkg, ok := c.cached(ctx, id); ok {
			return pkg, nil
		}

		gen, err := c.generation(ctx, c.client, id)
		if err != nil {
			return domain.Package{}, err
		}
		pkg, err := c.backing.GetPackage(ctx, id)
		if err != nil {
			return domain.Package{}, err
		}
		c.fill(ctx, pkg, gen)
		return pkg, nil
	})
	if err != nil {
		return domain.Package{}, err
	}
	return result.(domain.Package).Clone(), nil
}

func (c *CoursewareCache) SavePackage(ctx context.Context, pkg domain.Package) error {
	if err := c.backing.SavePackage(ctx, pkg); err != nil {
		return err
	}
	return c.invalidate(ctx, pkg.ID)
}

func (c *CoursewareCache) ListPackages(ctx context.Context, ownerID string) ([]domain.Package, error) {
	return c.backing.ListPackages(ctx, ownerID)
}

func (c *CoursewareCache) DeletePackage(ctx context.Context, id string) error {
	if err := c.backing.DeletePackage(ctx, id); err != nil {
		return err
	}
	return c.invalidate(ctx, id)
}

func (c *CoursewareCache) cached(ctx context.Context, id string) (domain.Package, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		return domain.Package{}, false
	}
	var pkg domain.Package
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return domain.Package{}, false
	}
	return pkg, true
}

// fill stores pkg unless a write bumped the generation since gen was read. Failures only
// cost a cache miss.
func (c *CoursewareCache) fill(ctx context.Context, pkg domain.Package, gen int64) {
	if c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(pkg)
	if err != nil {
		return
	}
	genKey := c.genKey(pkg.ID)
	_ = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx, pkg.ID)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(pkg.ID), data, c.ttlWithJitter())
			return nil
		})
		return err
	}, genKey)
}

func (c *CoursewareCache) invalidate(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(id))
		pipe.Del(ctx, c.key(id))
		return nil
	})
	return err
}

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *CoursewareCache) generation(ctx context.Context, cmd stringGetter, id string) (int64, error) {
	gen, err := cmd.Get(ctx, c.genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *CoursewareCache) key(id string) string {
	return "courseware:package:" + id
}

func (c *CoursewareCache) genKey(id string) string {
	return "courseware:package:" + id + ":gen"
}

func (c *CoursewareCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
