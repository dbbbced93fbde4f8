package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync"
)

// Snapshot is the served view of one member's points. Today and Done
// belong to Day; a snapshot from an earlier day is reloaded with its done
// flags cleared.
type Snapshot struct {
	MemberID int64          `json:"member_id"`
	Total    int            `json:"total"`
	Today    int            `json:"today"`
	Done     map[int64]bool `json:"done"`
	Day      string         `json:"day"`
	SyncedAt time.Time      `json:"synced_at"`
	Stale    bool           `json:"stale"`
}

func (s Snapshot) clone() Snapshot {
	done := make(map[int64]bool, len(s.Done))
	for k, v := range s.Done {
		if v {
			done[k] = v
		}
	}
	s.Done = done
	return s
}

type memberView struct {
	mu   sync.Mutex
	snap Snapshot
}

// Cache holds optimistic per-member snapshots. A snapshot older than the
// TTL, or marked stale, is reloaded from the store on the next read.
type Cache struct {
	store   Store
	history *History
	clock   Clock
	ttl     time.Duration
	views   *xsync.MapOf[string, *memberView]
}

func NewCache(store Store, history *History, clock Clock, ttl time.Duration) *Cache {
	return &Cache{
		store:   store,
		history: history,
		clock:   clock,
		ttl:     ttl,
		views:   xsync.NewMapOf[*memberView](),
	}
}

func cacheKey(memberID int64) string {
	return strconv.FormatInt(memberID, 10)
}

func (c *Cache) view(memberID int64) *memberView {
	v, _ := c.views.LoadOrStore(cacheKey(memberID), &memberView{
		snap: Snapshot{MemberID: memberID, Done: map[int64]bool{}, Stale: true},
	})
	return v
}

func (c *Cache) expired(s Snapshot) bool {
	if s.Stale || s.SyncedAt.IsZero() {
		return true
	}
	if s.Day != c.clock.Today() {
		return true
	}
	return c.clock.Now().Sub(s.SyncedAt) > c.ttl
}

// load reads the authoritative total and today subtotal. Done flags are
// view-only state: they survive a reload within the same day and are
// cleared when the day changes. Caller holds v.mu.
func (c *Cache) load(ctx context.Context, v *memberView) (drifted bool, err error) {
	day := c.clock.Today()
	total, err := c.store.GetTotal(ctx, v.snap.MemberID)
	if err != nil {
		return false, err
	}
	today, err := c.history.TodayPoints(ctx, v.snap.MemberID)
	if err != nil {
		return false, err
	}
	sameDay := v.snap.Day == day
	drifted = !v.snap.SyncedAt.IsZero() && sameDay && (total != v.snap.Total || today != v.snap.Today)
	if !sameDay {
		v.snap.Done = map[int64]bool{}
		v.snap.Day = day
	}
	v.snap.Total = total
	v.snap.Today = today
	v.snap.SyncedAt = c.clock.Now()
	v.snap.Stale = false
	return drifted, nil
}

// Get returns the member's snapshot, revalidating it if it has expired.
func (c *Cache) Get(ctx context.Context, memberID int64) (Snapshot, error) {
	v := c.view(memberID)
	v.mu.Lock()
	defer v.mu.Unlock()

	if c.expired(v.snap) {
		if _, err := c.load(ctx, v); err != nil {
			return Snapshot{}, err
		}
	}
	return v.snap.clone(), nil
}

// Reconcile forces a reload and reports whether the cached numbers had
// drifted from the store.
func (c *Cache) Reconcile(ctx context.Context, memberID int64) (Snapshot, bool, error) {
	v := c.view(memberID)
	v.mu.Lock()
	defer v.mu.Unlock()

	drifted, err := c.load(ctx, v)
	if err != nil {
		return Snapshot{}, false, err
	}
	return v.snap.clone(), drifted, nil
}

// Update applies fn to a fresh snapshot under the member's lock.
func (c *Cache) Update(ctx context.Context, memberID int64, fn func(*Snapshot) error) (Snapshot, error) {
	v := c.view(memberID)
	v.mu.Lock()
	defer v.mu.Unlock()

	if c.expired(v.snap) {
		if _, err := c.load(ctx, v); err != nil {
			return Snapshot{}, err
		}
	}
	if err := fn(&v.snap); err != nil {
		return Snapshot{}, err
	}
	return v.snap.clone(), nil
}

// Invalidate marks the snapshot stale so the next read reloads it.
func (c *Cache) Invalidate(memberID int64) {
	if v, ok := c.views.Load(cacheKey(memberID)); ok {
		v.mu.Lock()
		v.snap.Stale = true
		v.mu.Unlock()
	}
}

// Forget drops the member's snapshot, done flags included.
func (c *Cache) Forget(memberID int64) {
	c.views.Delete(cacheKey(memberID))
}

// Len reports how many members currently have a snapshot.
func (c *Cache) Len() int {
	n := 0
	c.views.Range(func(string, *memberView) bool {
		n++
		return true
	})
	return n
}
