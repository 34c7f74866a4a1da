package flip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances by step on every Now call and ticks as fast as it is read.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
	tick chan time.Time
}

func newStepClock(step time.Duration) *stepClock {
	ch := make(chan time.Time)
	close(ch)
	return &stepClock{now: time.Unix(0, 0), step: step, tick: ch}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func (c *stepClock) NewTicker(time.Duration) Ticker { return chanTicker(c.tick) }

type chanTicker chan time.Time

func (t chanTicker) C() <-chan time.Time { return t }
func (chanTicker) Stop()                 {}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) add(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State{}, r.states...)
}

func newTestFlipper(current, total int, clock Clock) (*Flipper, *recorder) {
	f := NewFlipper(Config{View: testView, TotalPages: total, CurrentPage: current, Clock: clock})
	rec := &recorder{}
	f.OnChange(rec.add)
	return f, rec
}

func TestCanFlip(t *testing.T) {
	f, _ := newTestFlipper(0, 10, nil)
	assert.False(t, f.CanFlip(Left))
	assert.True(t, f.CanFlip(Right))
	assert.False(t, f.CanFlip(None))

	f, _ = newTestFlipper(8, 10, nil)
	assert.True(t, f.CanFlip(Left))
	assert.False(t, f.CanFlip(Right))
}

func TestFlipAnimatesAndCommits(t *testing.T) {
	f, rec := newTestFlipper(0, 10, newStepClock(250*time.Millisecond))

	require.NoError(t, f.Flip(context.Background(), Right))

	st := f.State()
	assert.Equal(t, 2, st.CurrentPage)
	assert.Equal(t, Idle, st.Phase)
	assert.Equal(t, None, st.Direction)
	assert.Zero(t, st.Progress)

	states := rec.all()
	require.Len(t, states, 5)
	assert.Equal(t, Animating, states[0].Phase)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75}, []float64{
		states[0].Progress, states[1].Progress, states[2].Progress, states[3].Progress,
	})
	assert.Equal(t, Idle, states[4].Phase)
	assert.Equal(t, 2, states[4].CurrentPage)

	require.NoError(t, f.Flip(context.Background(), Left))
	assert.Equal(t, 0, f.State().CurrentPage)
}

func TestFlipOutOfBoundsIsNoop(t *testing.T) {
	f, rec := newTestFlipper(0, 4, newStepClock(time.Second))
	require.NoError(t, f.Flip(context.Background(), Left))
	assert.Equal(t, 0, f.State().CurrentPage)
	assert.Empty(t, rec.all())

	f, _ = newTestFlipper(2, 4, newStepClock(time.Second))
	require.NoError(t, f.Flip(context.Background(), Right))
	assert.Equal(t, 2, f.State().CurrentPage)
}

type stalledClock struct{}

func (stalledClock) Now() time.Time                 { return time.Unix(0, 0) }
func (stalledClock) NewTicker(time.Duration) Ticker { return chanTicker(nil) }

func TestFlipCancelled(t *testing.T) {
	f, _ := newTestFlipper(0, 10, stalledClock{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.Flip(ctx, Right)
	assert.True(t, errors.Is(err, context.Canceled))
	st := f.State()
	assert.Equal(t, Idle, st.Phase)
	assert.Equal(t, 0, st.CurrentPage)
}

func TestFlipWhileDragging(t *testing.T) {
	f, _ := newTestFlipper(2, 10, newStepClock(time.Second))
	f.DragStart(200, 100)
	err := f.Flip(context.Background(), Right)
	assert.ErrorIs(t, err, constants.ErrIllegalTransition)
}

func TestDragRevertsBelowThreshold(t *testing.T) {
	f, rec := newTestFlipper(0, 10, nil)

	f.DragStart(300, 100)
	f.DragMove(250, 100)
	st := f.State()
	assert.Equal(t, Dragging, st.Phase)
	assert.Equal(t, Right, st.Direction)
	assert.InDelta(t, 0.125, st.Progress, 1e-9)
	assert.Len(t, f.Frame().Polygons, 20)

	f.DragEnd()
	st = f.State()
	assert.Equal(t, Idle, st.Phase)
	assert.Equal(t, 0, st.CurrentPage)
	assert.Nil(t, f.Frame().Polygons)

	states := rec.all()
	require.GreaterOrEqual(t, len(states), 2)
	assert.Equal(t, Settling, states[len(states)-2].Phase)
}

func TestDragCommitsPastThreshold(t *testing.T) {
	f, _ := newTestFlipper(0, 10, nil)
	f.DragStart(300, 100)
	f.DragMove(100, 110)
	assert.InDelta(t, 0.5, f.State().Progress, 1e-9)
	f.DragEnd()
	assert.Equal(t, 2, f.State().CurrentPage)

	f.DragStart(0, 0)
	f.DragMove(300, 0)
	assert.Equal(t, Left, f.State().Direction)
	f.DragEnd()
	assert.Equal(t, 0, f.State().CurrentPage)
}

func TestDragGuards(t *testing.T) {
	f, _ := newTestFlipper(0, 10, nil)

	t.Run("below swipe minimum", func(t *testing.T) {
		f.DragStart(300, 100)
		f.DragMove(280, 100)
		assert.Equal(t, None, f.State().Direction)
		f.DragEnd()
	})

	t.Run("vertical move ignored", func(t *testing.T) {
		f.DragStart(300, 100)
		f.DragMove(250, 300)
		assert.Equal(t, None, f.State().Direction)
		f.DragEnd()
	})

	t.Run("cannot turn back from first spread", func(t *testing.T) {
		f.DragStart(100, 100)
		f.DragMove(300, 100)
		assert.Equal(t, None, f.State().Direction)
		f.DragEnd()
		assert.Equal(t, 0, f.State().CurrentPage)
	})

	t.Run("progress clamps at one", func(t *testing.T) {
		f.DragStart(1000, 0)
		f.DragMove(0, 0)
		assert.Equal(t, 1.0, f.State().Progress)
		assert.InDelta(t, 0, f.State().Opacity, 1e-9)
		f.DragEnd()
		assert.Equal(t, 2, f.State().CurrentPage)
	})

	t.Run("move without start", func(t *testing.T) {
		f.DragMove(0, 0)
		f.DragEnd()
		assert.Equal(t, Idle, f.State().Phase)
	})
}

func TestSetTotalPages(t *testing.T) {
	f, _ := newTestFlipper(8, 10, nil)
	f.SetTotalPages(4)
	assert.Equal(t, 4, f.State().CurrentPage)
	assert.False(t, f.CanFlip(Right))

	f.SetTotalPages(3)
	assert.Equal(t, 2, f.State().CurrentPage, "pulled back to a spread start")
}

func TestOddPagesSnapToSpread(t *testing.T) {
	f, _ := newTestFlipper(1, 10, newStepClock(time.Second))
	assert.Equal(t, 0, f.State().CurrentPage)
	assert.False(t, f.CanFlip(Left))

	f, _ = newTestFlipper(3, 10, newStepClock(time.Second))
	require.Equal(t, 2, f.State().CurrentPage)
	require.NoError(t, f.Flip(context.Background(), Left))
	assert.Equal(t, 0, f.State().CurrentPage, "a turn moves exactly one spread")
	require.NoError(t, f.Flip(context.Background(), Right))
	require.NoError(t, f.Flip(context.Background(), Right))
	assert.Equal(t, 4, f.State().CurrentPage)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "settling", Settling.String())
	assert.Equal(t, "phase(9)", Phase(9).String())
}
