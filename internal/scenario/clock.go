package scenario

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/presentd/internal/model"
)

// virtualTimeouts is a timeout manager driven by a virtual clock. Timers
// only fire when the runner advances the clock.
type virtualTimeouts struct {
	mu        sync.Mutex
	now       time.Duration
	nextID    model.TimeoutID
	pending   map[model.TimeoutID]*virtualTimer
	requested []time.Duration
}

type virtualTimer struct {
	id       model.TimeoutID
	deadline time.Duration
	callback func()
}

func newVirtualTimeouts() *virtualTimeouts {
	return &virtualTimeouts{
		nextID:  1,
		pending: make(map[model.TimeoutID]*virtualTimer),
	}
}

func (v *virtualTimeouts) RequestTimeout(d time.Duration, callback func()) model.TimeoutID {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	v.pending[id] = &virtualTimer{id: id, deadline: v.now + d, callback: callback}
	v.requested = append(v.requested, d)
	return id
}

func (v *virtualTimeouts) StopTimeout(id model.TimeoutID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.pending[id]; !ok {
		return false
	}
	delete(v.pending, id)
	return true
}

// due removes and returns the timers whose deadline is at or before until,
// earliest first.
func (v *virtualTimeouts) due(until time.Duration) []*virtualTimer {
	v.mu.Lock()
	defer v.mu.Unlock()

	var timers []*virtualTimer
	for id, t := range v.pending {
		if t.deadline <= until {
			timers = append(timers, t)
			delete(v.pending, id)
		}
	}
	slices.SortFunc(timers, func(a, b *virtualTimer) int {
		return cmp.Or(cmp.Compare(a.deadline, b.deadline), cmp.Compare(a.id, b.id))
	})
	return timers
}

// nextDeadline returns the earliest pending deadline at or before until.
func (v *virtualTimeouts) nextDeadline(until time.Duration) (time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	found := false
	var next time.Duration
	for _, t := range v.pending {
		if t.deadline <= until && (!found || t.deadline < next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

func (v *virtualTimeouts) setNow(now time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

func (v *virtualTimeouts) elapsed() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *virtualTimeouts) requests() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.requested)
}
