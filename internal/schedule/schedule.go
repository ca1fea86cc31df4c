// Package schedule is a deferred-action queue driven by simulation time.
//
// Nothing here reads the wall clock: time moves only when the owner calls
// Advance, so every run with the same inputs fires the same actions on the
// same tick.
package schedule

import "sort"

// EventID identifies a scheduled action for cancellation.
type EventID uint64

type event struct {
	id        EventID
	when      float64
	fn        func()
	cancelled bool
}

// Queue holds actions ordered by due time, earliest first. Actions due at
// the same time run in the order they were scheduled.
type Queue struct {
	now     float64
	counter EventID

	events []*event
	index  map[EventID]*event
}

// New returns an empty queue at time zero.
func New() *Queue {
	return &Queue{index: make(map[EventID]*event)}
}

// Now is the current simulation time in seconds.
func (q *Queue) Now() float64 { return q.now }

// Len is the number of pending, uncancelled actions.
func (q *Queue) Len() int { return len(q.index) }

// At schedules fn to run once simulation time reaches when. A time in the
// past runs on the next Advance.
func (q *Queue) At(when float64, fn func()) EventID {
	q.counter++
	ev := &event{id: q.counter, when: when, fn: fn}

	// first index strictly later than when keeps FIFO among equals
	i := sort.Search(len(q.events), func(i int) bool { return q.events[i].when > when })
	q.events = append(q.events, nil)
	copy(q.events[i+1:], q.events[i:])
	q.events[i] = ev

	q.index[ev.id] = ev
	return ev.id
}

// After schedules fn to run delay seconds from now.
func (q *Queue) After(delay float64, fn func()) EventID {
	return q.At(q.now+delay, fn)
}

// Cancel drops a pending action. Unknown or already-run ids are ignored.
func (q *Queue) Cancel(id EventID) {
	ev, ok := q.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(q.index, id)
}

// Advance moves time forward to now and runs every action that has come
// due, including ones scheduled by actions run during this call. Time never
// moves backwards. It returns the number of actions run.
func (q *Queue) Advance(now float64) int {
	if now > q.now {
		q.now = now
	}
	ran := 0
	for len(q.events) > 0 {
		ev := q.events[0]
		if ev.when > q.now {
			break
		}
		q.events[0] = nil
		q.events = q.events[1:]
		if ev.cancelled {
			continue
		}
		delete(q.index, ev.id)
		if ev.fn != nil {
			ev.fn()
		}
		ran++
	}
	return ran
}
