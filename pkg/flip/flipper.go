package flip

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/flatplan/flatplan.go/pkg/constants"
	"github.com/flatplan/flatplan.go/pkg/logger"
)

// Phase is where a Flipper is in a turn.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Animating
	Settling
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Animating:
		return "animating"
	case Settling:
		return "settling"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a snapshot of a Flipper.
type State struct {
	Phase       Phase
	CurrentPage int
	TotalPages  int
	Direction   Direction
	Progress    float64
	Opacity     float64
}

// Frame is everything needed to draw the book at one instant.
type Frame struct {
	State    State
	View     View
	Polygons []Polygon
}

// Config configures a Flipper. Zero fields take the defaults.
type Config struct {
	View        View
	TotalPages  int
	CurrentPage int
	Options     Options
	Duration    time.Duration
	Interval    time.Duration
	Clock       Clock
	Logger      logger.Logger
}

// Flipper is the page-turn state machine. Pages turn two at a time; CurrentPage
// is the left page of the open spread.
//
// Idle -> Dragging on DragStart, Dragging -> Settling -> Idle on DragEnd,
// Idle -> Animating -> Idle on Flip.
type Flipper struct {
	mu sync.Mutex

	view     View
	opts     Options
	duration time.Duration
	interval time.Duration
	clock    Clock
	logger   logger.Logger

	phase    Phase
	current  int
	total    int
	dir      Direction
	progress float64

	dragging       bool
	startX, startY float64

	listeners []func(State)
}

// NewFlipper creates a Flipper in the Idle phase.
func NewFlipper(cfg Config) *Flipper {
	f := &Flipper{
		view:     cfg.View,
		opts:     cfg.Options.withDefaults(),
		duration: cfg.Duration,
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   logger.OrNop(cfg.Logger),
		current:  spreadStart(cfg.CurrentPage),
		total:    max(cfg.TotalPages, 0),
	}
	if cfg.Options == (Options{}) {
		f.opts = DefaultOptions()
	}
	if f.duration <= 0 {
		f.duration = constants.FlipDuration
	}
	if f.interval <= 0 {
		f.interval = constants.FlipFrameInterval
	}
	if f.clock == nil {
		f.clock = systemClock{}
	}
	return f
}

// OnChange registers fn to be called after every state change.
func (f *Flipper) OnChange(fn func(State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// State returns the current state.
func (f *Flipper) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// Frame returns the polygons for the current state.
func (f *Flipper) Frame() Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Frame{
		State:    f.stateLocked(),
		View:     f.view,
		Polygons: Polygons(f.view, f.opts, f.current, f.dir, f.progress),
	}
}

// SetView updates the page area size.
func (f *Flipper) SetView(v View) {
	f.mu.Lock()
	f.view = v
	f.mu.Unlock()
}

// SetTotalPages updates the page count, pulling the current page back inside it.
func (f *Flipper) SetTotalPages(n int) {
	f.mu.Lock()
	f.total = max(n, 0)
	if f.current > f.total {
		f.current = spreadStart(f.total)
	}
	s := f.stateLocked()
	fns := f.listenersLocked()
	f.mu.Unlock()
	notify(fns, s)
}

// CanFlip reports whether a turn in dir stays inside the book.
func (f *Flipper) CanFlip(dir Direction) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canFlipLocked(dir)
}

func (f *Flipper) canFlipLocked(dir Direction) bool {
	switch dir {
	case Left:
		return f.current > 0
	case Right:
		return f.current < f.total-2
	}
	return false
}

// Flip turns a spread in dir, animating progress from 0 to 1 over the flip
// duration, then moves the current page by two. It is a no-op when the turn
// would leave the book. Cancelling ctx abandons the turn.
func (f *Flipper) Flip(ctx context.Context, dir Direction) error {
	f.mu.Lock()
	if !f.canFlipLocked(dir) {
		page := f.current
		f.mu.Unlock()
		f.logger.Debug("flip out of bounds", "direction", dir, "page", page)
		return nil
	}
	if f.phase != Idle {
		phase := f.phase
		f.mu.Unlock()
		return fmt.Errorf("%w: flip while %s", constants.ErrIllegalTransition, phase)
	}
	f.phase = Animating
	f.dir = dir
	f.progress = 0
	start := f.clock.Now()
	s := f.stateLocked()
	fns := f.listenersLocked()
	f.mu.Unlock()
	notify(fns, s)

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.mu.Lock()
			f.resetLocked()
			s := f.stateLocked()
			fns := f.listenersLocked()
			f.mu.Unlock()
			notify(fns, s)
			return ctx.Err()
		case <-ticker.C():
			elapsed := f.clock.Now().Sub(start)
			p := math.Min(1, float64(elapsed)/float64(f.duration))

			f.mu.Lock()
			f.progress = p
			if p >= 1 {
				f.commitLocked()
				f.resetLocked()
			}
			s := f.stateLocked()
			fns := f.listenersLocked()
			f.mu.Unlock()
			notify(fns, s)

			if p >= 1 {
				return nil
			}
		}
	}
}

// DragStart begins tracking a pointer at (x, y). It is ignored unless Idle.
func (f *Flipper) DragStart(x, y float64) {
	f.mu.Lock()
	if f.phase != Idle {
		f.mu.Unlock()
		return
	}
	f.phase = Dragging
	f.dragging = true
	f.startX, f.startY = x, y
	s := f.stateLocked()
	fns := f.listenersLocked()
	f.mu.Unlock()
	notify(fns, s)
}

// DragMove follows the pointer. Dragging right turns back (Left), dragging left
// turns forward (Right). A direction is chosen once the pointer has travelled
// the swipe minimum horizontally; mostly vertical moves are ignored.
func (f *Flipper) DragMove(x, y float64) {
	f.mu.Lock()
	if !f.dragging {
		f.mu.Unlock()
		return
	}
	dx := x - f.startX
	dy := y - f.startY
	if math.Abs(dy) > math.Abs(dx) {
		f.mu.Unlock()
		return
	}

	changed := false
	switch {
	case dx > 0 && f.current > 0:
		if f.dir == None && dx >= constants.FlipSwipeMin {
			f.dir = Left
		}
		if f.dir == Left {
			f.progress = f.dragProgress(dx)
			changed = true
		}
	case dx < 0 && f.current < f.total-2:
		if f.dir == None && dx <= -constants.FlipSwipeMin {
			f.dir = Right
		}
		if f.dir == Right {
			f.progress = f.dragProgress(-dx)
			changed = true
		}
	}
	if !changed {
		f.mu.Unlock()
		return
	}
	s := f.stateLocked()
	fns := f.listenersLocked()
	f.mu.Unlock()
	notify(fns, s)
}

func (f *Flipper) dragProgress(d float64) float64 {
	if f.view.Width <= 0 {
		return 0
	}
	return math.Min(d/f.view.Width, 1)
}

// DragEnd releases the pointer. The turn commits when it got past the commit
// threshold and springs back otherwise.
func (f *Flipper) DragEnd() {
	f.mu.Lock()
	if !f.dragging {
		f.mu.Unlock()
		return
	}
	f.dragging = false
	if f.dir == None {
		f.resetLocked()
		s := f.stateLocked()
		fns := f.listenersLocked()
		f.mu.Unlock()
		notify(fns, s)
		return
	}

	f.phase = Settling
	settling := f.stateLocked()
	if f.progress > constants.FlipCommitThreshold {
		f.commitLocked()
	}
	f.resetLocked()
	idle := f.stateLocked()
	fns := f.listenersLocked()
	f.mu.Unlock()

	notify(fns, settling)
	notify(fns, idle)
}

// spreadStart is the left page of the spread holding page n. Spreads start on
// even pages, so every turn moves by exactly two.
func spreadStart(n int) int {
	return max(n, 0) &^ 1
}

func (f *Flipper) commitLocked() {
	from := f.current
	switch f.dir {
	case Left:
		f.current -= 2
	case Right:
		f.current += 2
	}
	f.logger.Debug("page flipped", "direction", f.dir, "from", from, "to", f.current)
}

func (f *Flipper) resetLocked() {
	f.phase = Idle
	f.dir = None
	f.progress = 0
}

func (f *Flipper) stateLocked() State {
	return State{
		Phase:       f.phase,
		CurrentPage: f.current,
		TotalPages:  f.total,
		Direction:   f.dir,
		Progress:    f.progress,
		Opacity:     Opacity(f.progress),
	}
}

func (f *Flipper) listenersLocked() []func(State) {
	if len(f.listeners) == 0 {
		return nil
	}
	return append([]func(State){}, f.listeners...)
}

func notify(fns []func(State), s State) {
	for _, fn := range fns {
		fn(s)
	}
}
