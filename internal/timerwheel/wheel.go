// Package timerwheel implements a hashed timer wheel for idle-connection
// eviction (spec.md §4.9). One wheel belongs to exactly one SubReactor and
// is touched only by that reactor's thread, so — unlike the single
// process-wide wheel this design is grounded on
// (original_source/src/util/include/time_wheel.h, which guards every
// operation with a mutex) — no locking is needed here at all (spec.md §9,
// "per-SubReactor ownership eliminates contention").
package timerwheel

import "time"

const (
	// DefaultSlots is spec.md §4.9's default slot count S.
	DefaultSlots = 256
	// DefaultTick is spec.md §4.9's default tick interval T.
	DefaultTick = 100 * time.Millisecond
)

// Callback runs once a timer is due. Repeating timers are re-inserted with
// a fresh rotation count before their callback runs (spec.md §4.9).
type Callback func()

// Handle is an opaque, liveness-checked reference to a timer value owned by
// the wheel (spec.md §9 "callback identity": "the wheel owns the value, the
// handle is a lookup key plus a liveness marker").
type Handle struct {
	slot int
	gen  uint64
}

type timer struct {
	cb        Callback
	rotations int
	ticks     int // ticks between firings, for repeat re-insertion
	repeat    bool
	canceled  bool
	gen       uint64
}

// Wheel is a hashed timer wheel with Slots buckets advanced every Tick.
type Wheel struct {
	slots       []([]*timer)
	tickDur     time.Duration
	currentSlot int
	lastTick    time.Time
	nextGen     uint64
}

// New returns a wheel with the given slot count and tick interval. Pass 0
// for either to get spec.md's defaults.
func New(slots int, tick time.Duration) *Wheel {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Wheel{
		slots:    make([][]*timer, slots),
		tickDur:  tick,
		lastTick: time.Now(),
	}
}

// Insert schedules cb to run after timeout, returning a Handle usable with
// Cancel. If repeat is true, the timer re-arms itself for the same timeout
// after firing.
func (w *Wheel) Insert(timeout time.Duration, repeat bool, cb Callback) Handle {
	ticks := int(timeout / w.tickDur)
	if ticks <= 0 {
		ticks = 1
	}
	slot := (w.currentSlot + ticks) % len(w.slots)
	rotations := ticks / len(w.slots)

	w.nextGen++
	t := &timer{cb: cb, rotations: rotations, ticks: ticks, repeat: repeat, gen: w.nextGen}
	w.slots[slot] = append(w.slots[slot], t)
	return Handle{slot: slot, gen: t.gen}
}

// Cancel marks the timer referenced by h canceled, found by scanning h's
// slot. The timer stays in the slot until the wheel's tick visits it and
// drops it (lazy removal).
func (w *Wheel) Cancel(h Handle) {
	for _, t := range w.slots[h.slot] {
		if t.gen == h.gen {
			t.canceled = true
			return
		}
	}
}

// Refresh cancels the timer at h and inserts a fresh one with the given
// timeout, repeat flag and callback, returning the new Handle. Used for idle-timer
// refresh on every successful I/O phase (spec.md §5).
func (w *Wheel) Refresh(h Handle, timeout time.Duration, repeat bool, cb Callback) Handle {
	w.Cancel(h)
	return w.Insert(timeout, repeat, cb)
}

// Tick compares wall-clock elapsed time since the last tick (with a 1ms
// tolerance) and, if at least one tick interval has passed, advances the
// wheel exactly one slot and fires all due timers in the current slot.
// Callbacks are invoked outside of any lock — there is none — but still
// only after the slot's timer list has been captured and cleared, so a
// callback that inserts a new timer into the same slot cannot corrupt the
// list being iterated (spec.md §4.9).
func (w *Wheel) Tick() {
	now := time.Now()
	elapsed := now.Sub(w.lastTick)
	if elapsed+time.Millisecond < w.tickDur {
		return
	}
	w.lastTick = now

	slot := w.currentSlot
	var due []*timer
	var kept []*timer
	for _, t := range w.slots[slot] {
		if t.canceled {
			continue
		}
		if t.rotations > 0 {
			t.rotations--
			kept = append(kept, t)
			continue
		}
		due = append(due, t)
	}
	w.slots[slot] = kept

	w.currentSlot = (w.currentSlot + 1) % len(w.slots)

	for _, t := range due {
		if t.repeat {
			w.reinsertAt(slot, t)
		}
		t.cb()
	}
}

func (w *Wheel) reinsertAt(firedSlot int, t *timer) {
	slot := (firedSlot + t.ticks) % len(w.slots)
	rotations := t.ticks / len(w.slots)
	w.nextGen++
	fresh := &timer{cb: t.cb, rotations: rotations, ticks: t.ticks, repeat: true, gen: w.nextGen}
	w.slots[slot] = append(w.slots[slot], fresh)
}

// NextTimeoutMs returns max(0, T-elapsed) in milliseconds, for use as the
// event loop's epoll_wait bound (spec.md §4.9).
func (w *Wheel) NextTimeoutMs() int {
	elapsed := time.Since(w.lastTick)
	remaining := w.tickDur - elapsed
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Millisecond)
}

// CancelAll marks every live timer canceled, for reactor shutdown (spec.md
// §5: "Shutdown cancels every timer in the wheel before freeing
// connections").
func (w *Wheel) CancelAll() {
	for _, bucket := range w.slots {
		for _, t := range bucket {
			t.canceled = true
		}
	}
}
