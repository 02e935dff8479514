package timerwheel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTick = 5 * time.Millisecond

func tickUntil(w *Wheel, ticks int) {
	for i := 0; i < ticks; i++ {
		time.Sleep(testTick + time.Millisecond)
		w.Tick()
	}
}

func TestInsertFiresAfterItsTimeout(t *testing.T) {
	w := New(8, testTick)
	fired := 0
	w.Insert(3*testTick, false, func() { fired++ })

	tickUntil(w, 5)

	assert.Equal(t, 1, fired)
}

func TestInsertDoesNotFireEarly(t *testing.T) {
	w := New(8, testTick)
	fired := 0
	w.Insert(10*testTick, false, func() { fired++ })

	tickUntil(w, 3)

	assert.Zero(t, fired)
}

func TestCancelPreventsFiring(t *testing.T) {
	w := New(8, testTick)
	fired := 0
	h := w.Insert(2*testTick, false, func() { fired++ })
	w.Cancel(h)

	tickUntil(w, 5)

	assert.Zero(t, fired)
}

func TestRefreshExtendsTheDeadline(t *testing.T) {
	w := New(8, testTick)
	fired := 0
	h := w.Insert(2*testTick, false, func() { fired++ })

	tickUntil(w, 1)
	h = w.Refresh(h, 4*testTick, false, func() { fired++ })
	tickUntil(w, 2) // the original timer's slot is visited on this third tick

	require.Zero(t, fired)

	tickUntil(w, 3)
	assert.Equal(t, 1, fired)
	_ = h
}

func TestRepeatingTimerFiresMoreThanOnce(t *testing.T) {
	w := New(8, testTick)
	fired := 0
	w.Insert(2*testTick, true, func() { fired++ })

	tickUntil(w, 9)

	assert.GreaterOrEqual(t, fired, 2)
}

func TestCancelAllStopsEveryPendingTimer(t *testing.T) {
	w := New(8, testTick)
	fired := 0
	w.Insert(2*testTick, false, func() { fired++ })
	w.Insert(3*testTick, false, func() { fired++ })
	w.CancelAll()

	tickUntil(w, 6)

	assert.Zero(t, fired)
}

func TestNextTimeoutMsNeverNegative(t *testing.T) {
	w := New(8, testTick)
	time.Sleep(3 * testTick)
	assert.GreaterOrEqual(t, w.NextTimeoutMs(), 0)
}
