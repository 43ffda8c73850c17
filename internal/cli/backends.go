package cli

import (
	"context"
	"time"

	"classroom-maestro/internal/app"
	"classroom-maestro/internal/config"
	"classroom-maestro/internal/infra/memory"
	pgstore "classroom-maestro/internal/infra/postgres"
	redisstore "classroom-maestro/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backends holds the stores selected by config: Redis or in-process for live classrooms,
// Postgres or in-process for courseware, with a cache in front of courseware either way.
type backends struct {
	classrooms app.ClassroomStore
	courseware app.CoursewareRepository

	redisClient *redis.Client
	pool        *pgxpool.Pool
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.pool = pool
	}

	var durable app.CoursewareRepository = memory.NewCoursewareRepository()
	if b.pool != nil {
		durable = pgstore.NewCoursewareRepository(b.pool)
	}

	ttl := config.TTLDuration(cfg.Courseware.TTL, 10*time.Minute)
	if b.redisClient != nil {
		b.classrooms = redisstore.NewClassroomStore(b.redisClient)
		b.courseware = redisstore.NewCoursewareCache(b.redisClient, durable, ttl)
	} else {
		b.classrooms = memory.NewClassroomStore()
		b.courseware = memory.NewCachedCoursewareRepository(durable, ttl)
	}
	return b, nil
}

func (b *backends) Close() {
	if b.redisClient != nil {
		_ = b.redisClient.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}
