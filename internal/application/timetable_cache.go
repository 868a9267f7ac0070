package application

import (
	"context"
	"sync"
	"time"

	"github.com/example/tuition-scheduler/internal/timetable"
)

// TimetableCache stores subject timetables between tuition changes.
type TimetableCache interface {
	Get(ctx context.Context, subjectID string) ([]timetable.RawLesson, bool)
	Store(ctx context.Context, subjectID string, lessons []timetable.RawLesson)
	Invalidate(ctx context.Context, subjectID string)
}

// MemoryTimetableCache is an in-process TimetableCache with a TTL and a size bound.
type MemoryTimetableCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]timetableCacheEntry
}

type timetableCacheEntry struct {
	lessons   []timetable.RawLesson
	expiresAt time.Time
}

var _ TimetableCache = (*MemoryTimetableCache)(nil)

// NewMemoryTimetableCache builds a cache. Non-positive ttl and maxEntries select defaults.
func NewMemoryTimetableCache(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryTimetableCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryTimetableCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]timetableCacheEntry),
	}
}

func (c *MemoryTimetableCache) Get(_ context.Context, subjectID string) ([]timetable.RawLesson, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[subjectID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, subjectID)
		c.mu.Unlock()
		return nil, false
	}
	return cloneLessons(entry.lessons), true
}

func (c *MemoryTimetableCache) Store(_ context.Context, subjectID string, lessons []timetable.RawLesson) {
	if c == nil {
		return
	}
	cloned := cloneLessons(lessons)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[subjectID]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[subjectID] = timetableCacheEntry{lessons: cloned, expiresAt: expiry}
}

func (c *MemoryTimetableCache) Invalidate(_ context.Context, subjectID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, subjectID)
	c.mu.Unlock()
}

func (c *MemoryTimetableCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryTimetableCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneLessons(lessons []timetable.RawLesson) []timetable.RawLesson {
	out := make([]timetable.RawLesson, len(lessons))
	copy(out, lessons)
	return out
}
