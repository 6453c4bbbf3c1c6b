package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
	"github.com/avative-pat/FiberMonitorMap/pkg/store"
)

// Cache holds the current alarm snapshot keyed by sequence number and
// diffs each poll's result against the previous one. It is the exclusive
// owner of AlarmRecord lifecycle: records are created when a sequence
// number first appears, updated in place while it persists, and removed
// when a poll no longer reports it (the alarm cleared at the source).
//
// Apply is invoked at most once per poll cycle (the scheduler serializes
// cycles); reads are safe at any time, including while an Apply is in
// flight, because the snapshot map is replaced wholesale under the write
// lock rather than mutated.
type Cache struct {
	mu      sync.RWMutex
	records map[string]*models.AlarmRecord

	backing store.AlarmStore
	now     func() time.Time
}

// ErrPersist wraps backing-store failures from Apply so callers can
// classify them without depending on driver error types.
var ErrPersist = errors.New("failed to persist alarm snapshot")

// Diff describes one Apply's transitions, consumed by the rules engine
// and logged per cycle.
type Diff struct {
	Created []string
	Updated []string
	Removed []string
}

// New creates an empty alarm cache backed by the given store.
func New(backing store.AlarmStore) *Cache {
	return &Cache{
		records: make(map[string]*models.AlarmRecord),
		backing: backing,
		now:     time.Now,
	}
}

// Load rehydrates the in-memory snapshot from the backing store.
func (c *Cache) Load(ctx context.Context) error {
	records, err := c.backing.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load alarm records: %w", err)
	}

	c.mu.Lock()
	c.records = records
	c.mu.Unlock()

	logrus.Infof("Loaded %d alarm records from store", len(records))

	return nil
}

// Apply diffs the new enriched snapshot against the current one and makes
// it the visible snapshot. The backing store is written first; if that
// fails the in-memory snapshot is left untouched, so readers always see
// the last known-good state.
func (c *Cache) Apply(ctx context.Context, snapshot []models.EnrichedAlarm) (Diff, error) {
	now := c.now().UTC()

	c.mu.RLock()
	prev := c.records
	c.mu.RUnlock()

	next := make(map[string]*models.AlarmRecord, len(snapshot))

	var diff Diff

	for i := range snapshot {
		alarm := snapshot[i]

		rec := &models.AlarmRecord{
			EnrichedAlarm: alarm,
			FirstSeen:     now,
			LastSeen:      now,
		}

		_, dup := next[alarm.SequenceNum]

		if existing, ok := prev[alarm.SequenceNum]; ok {
			rec.FirstSeen = existing.FirstSeen
			if !dup {
				diff.Updated = append(diff.Updated, alarm.SequenceNum)
			}
		} else if !dup {
			diff.Created = append(diff.Created, alarm.SequenceNum)
		}

		next[alarm.SequenceNum] = rec
	}

	for seq := range prev {
		if _, ok := next[seq]; !ok {
			diff.Removed = append(diff.Removed, seq)
		}
	}

	sort.Strings(diff.Created)
	sort.Strings(diff.Updated)
	sort.Strings(diff.Removed)

	if err := c.backing.SaveSnapshot(ctx, next, diff.Removed); err != nil {
		return Diff{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	c.mu.Lock()
	c.records = next
	c.mu.Unlock()

	logrus.Infof("Alarm cache applied: %d created, %d updated, %d removed",
		len(diff.Created), len(diff.Updated), len(diff.Removed))

	return diff, nil
}

// GetAll returns the current snapshot ordered by sequence number.
func (c *Cache) GetAll() []models.AlarmRecord {
	c.mu.RLock()
	records := c.records
	c.mu.RUnlock()

	out := make([]models.AlarmRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNum < out[j].SequenceNum })

	return out
}

// Get returns the record for a sequence number, if present.
func (c *Cache) Get(sequenceNum string) (models.AlarmRecord, bool) {
	c.mu.RLock()
	rec, ok := c.records[sequenceNum]
	c.mu.RUnlock()

	if !ok {
		return models.AlarmRecord{}, false
	}

	return *rec, true
}

// Count returns the number of alarms in the current snapshot.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}
