// Package cache holds the Redis-backed timetable cache used when a Redis address is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/tuition-scheduler/internal/application"
	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/timetable"
)

const keyPrefix = "tuition:timetable:"

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

// RedisTimetableCache stores subject timetables as JSON values with a TTL. Redis failures
// are logged and treated as cache misses.
type RedisTimetableCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ application.TimetableCache = (*RedisTimetableCache)(nil)

// NewRedisTimetableCache wraps client. A non-positive ttl defaults to five minutes.
func NewRedisTimetableCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisTimetableCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTimetableCache{client: client, ttl: ttl, logger: logger.With("component", "timetable_cache")}
}

func timetableKey(subjectID string) string {
	return keyPrefix + subjectID
}

func (c *RedisTimetableCache) Get(ctx context.Context, subjectID string) ([]timetable.RawLesson, bool) {
	val, err := c.client.Get(ctx, timetableKey(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log(ctx).WarnContext(ctx, "cache read failed", "subject_id", subjectID, "error", err)
		return nil, false
	}
	lessons, err := decodeLessons(val)
	if err != nil {
		c.log(ctx).WarnContext(ctx, "discarding corrupt cache entry", "subject_id", subjectID, "error", err)
		_ = c.client.Del(ctx, timetableKey(subjectID)).Err()
		return nil, false
	}
	return lessons, true
}

func (c *RedisTimetableCache) Store(ctx context.Context, subjectID string, lessons []timetable.RawLesson) {
	data, err := encodeLessons(lessons)
	if err != nil {
		c.log(ctx).WarnContext(ctx, "cache encode failed", "subject_id", subjectID, "error", err)
		return
	}
	if err := c.client.Set(ctx, timetableKey(subjectID), data, c.ttl).Err(); err != nil {
		c.log(ctx).WarnContext(ctx, "cache write failed", "subject_id", subjectID, "error", err)
	}
}

func (c *RedisTimetableCache) Invalidate(ctx context.Context, subjectID string) {
	if err := c.client.Del(ctx, timetableKey(subjectID)).Err(); err != nil {
		c.log(ctx).WarnContext(ctx, "cache invalidation failed", "subject_id", subjectID, "error", err)
	}
}

func (c *RedisTimetableCache) log(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger.With("component", "timetable_cache")
	}
	return c.logger
}

func encodeLessons(lessons []timetable.RawLesson) ([]byte, error) {
	if lessons == nil {
		lessons = []timetable.RawLesson{}
	}
	return json.Marshal(lessons)
}

func decodeLessons(data []byte) ([]timetable.RawLesson, error) {
	var lessons []timetable.RawLesson
	if err := json.Unmarshal(data, &lessons); err != nil {
		return nil, err
	}
	if lessons == nil {
		return nil, errors.New("cache entry is not a lesson list")
	}
	return lessons, nil
}
