// Package inmemory is a map-backed storage.Driver for tests and ephemeral
// runs. Nothing survives a restart.
package inmemory

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps keyed by record id.
type Driver struct {
	// mu guards every map and the closed flag.
	mu     sync.RWMutex
	closed bool

	boards    map[string]*mission.Board
	agents    map[string]*mission.Agent
	approvals map[string]*mission.Approval
	memory    map[string]*mission.MemoryItem
	tasks     map[string]*mission.Task
	activity  map[string]*mission.ActivityEvent
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		boards:    make(map[string]*mission.Board),
		agents:    make(map[string]*mission.Agent),
		approvals: make(map[string]*mission.Approval),
		memory:    make(map[string]*mission.MemoryItem),
		tasks:     make(map[string]*mission.Task),
		activity:  make(map[string]*mission.ActivityEvent),
	}
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// read runs fn under the read lock unless the driver is closed.
func (d *Driver) read(fn func() error) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return storage.ErrClosed
	}
	return fn()
}

func (d *Driver) write(fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return storage.ErrClosed
	}
	return fn()
}

// insert stores a copy of v under id, refusing duplicates.
func insert[T any](m map[string]*T, kind, id string, v *T) error {
	if _, ok := m[id]; ok {
		return storage.DuplicateError{Kind: kind, ID: id}
	}
	c := *v
	m[id] = &c
	return nil
}

func get[T any](m map[string]*T, kind, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: kind, ID: id}
	}
	c := *v
	return &c, nil
}

// collect copies every value matching keep, sorted by key then id.
func collect[T any](m map[string]*T, keep func(*T) bool, key func(*T) (time.Time, string)) []*T {
	out := make([]*T, 0)
	for _, v := range m {
		if keep(v) {
			c := *v
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *T) int {
		at, aid := key(a)
		bt, bid := key(b)
		if c := at.Compare(bt); c != 0 {
			return c
		}
		return cmp.Compare(aid, bid)
	})
	return out
}

// paginate applies p to an already sorted slice. newest reverses the order
// first.
func paginate[T any](rows []*T, p storage.Page, newest bool) []*T {
	if newest {
		slices.Reverse(rows)
	}
	p = p.Normalize()
	if p.Offset >= len(rows) {
		return []*T{}
	}
	rows = rows[p.Offset:]
	if len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return rows
}

// matches reports whether want is empty or equal to got.
func matches(want, got string) bool {
	return want == "" || want == got
}

// since reports whether t is at or after the stored resolution of s.
func since(t, s time.Time) bool {
	return !mission.Normalize(t).Before(mission.Normalize(s))
}
