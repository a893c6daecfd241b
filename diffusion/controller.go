package diffusion

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Logger is the subset of the host logging interface the controller
// needs to trace begin_step/tick/finalize. Any logger with these two
// methods satisfies it, including this repository's gekko.Logger, with
// no import of the host package required.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}

// incrementalStep holds the buffers and work queue for one in-progress
// generation transition. It only exists while the controller is
// Stepping, so its mere presence witnesses the state.
type incrementalStep struct {
	source           []int64
	target           []int64
	tileQueue        []TileCoord
	nextTile         atomic.Int64
	totalTiles       int
	targetGeneration uint64
}

// Controller wraps a Field and drives a tiled-incremental step across
// multiple host ticks with a per-tick time budget. Idle when active is
// nil, Stepping otherwise.
type Controller struct {
	id     uuid.UUID
	field  *Field
	active *incrementalStep
	logger Logger
}

// NewController creates a controller over a freshly constructed field.
// Returns nil if any dimension is <= 0.
func NewController(width, height, depth int16, rate uint8, conductivity uint16) *Controller {
	f := NewField(width, height, depth, rate, conductivity)
	if f == nil {
		return nil
	}
	return newControllerForField(f)
}

func newControllerForField(f *Field) *Controller {
	return &Controller{
		id:     uuid.New(),
		field:  f,
		logger: noopLogger{},
	}
}

// ID returns the controller's trace tag, for correlating log lines
// across a host that runs many controllers concurrently (one per
// loaded world region, for example).
func (c *Controller) ID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.id
}

// WithLogger attaches a logger used to trace begin_step/tick/finalize.
// Passing nil restores the no-op logger. Returns c for chaining.
func (c *Controller) WithLogger(l Logger) *Controller {
	if c == nil {
		return nil
	}
	if l == nil {
		l = noopLogger{}
	}
	c.logger = l
	return c
}

// Seed fills the committed field with SeedNoisy's reproducible
// pattern. Intended for one-shot initialization before the first
// BeginStep; like Set, it is a no-op while Stepping.
func (c *Controller) Seed(seedBase uint32) {
	if c == nil || c.IsStepping() {
		return
	}
	SeedNoisy(c.field, seedBase)
}

// IsStepping reports whether a step is in progress.
func (c *Controller) IsStepping() bool {
	return c != nil && c.active != nil
}

// Get reads the committed field; always permitted, even mid-step.
func (c *Controller) Get(x, y, z int) uint32 {
	if c == nil {
		return 0
	}
	return c.field.Get(x, y, z)
}

// Set writes the committed field. A no-op while Stepping, per the
// mutation-barrier contract: nothing issued between begin_step and
// finalize may change a committed cell value.
func (c *Controller) Set(x, y, z int, v uint32) {
	if c == nil || c.IsStepping() {
		return
	}
	c.field.Set(x, y, z, v)
}

// GetGeneration returns the field's committed generation counter.
func (c *Controller) GetGeneration() uint64 {
	if c == nil {
		return 0
	}
	return c.field.Generation()
}

// BeginStep snapshots the committed cells into source, clones source
// into target, and builds the Morton-ordered tile queue. Returns
// ErrAlreadyStepping without any state change if already Stepping.
func (c *Controller) BeginStep() error {
	if c == nil {
		return ErrNotStepping
	}
	if c.IsStepping() {
		return ErrAlreadyStepping
	}

	f := c.field
	n := len(f.cells)
	source := make([]int64, n)
	for i, v := range f.cells {
		source[i] = int64(v)
	}
	target := make([]int64, n)
	copy(target, source)

	queue := buildTileQueue(f)
	c.active = &incrementalStep{
		source:           source,
		target:           target,
		tileQueue:        queue,
		totalTiles:       len(queue),
		targetGeneration: f.generation + 1,
	}
	c.logger.Debugf("diffusion controller %s: begin_step generation=%d tiles=%d", c.id, f.generation, len(queue))
	return nil
}

// Tick claims and processes tiles until either the queue drains (the
// step finalizes and the controller returns to Idle) or budgetUs
// microseconds have elapsed, whichever comes first. Returns
// ErrNotStepping without side effect if Idle. The returned bool is
// true iff the step finalized during this call.
func (c *Controller) Tick(budgetUs int64) (bool, error) {
	if c == nil || !c.IsStepping() {
		return false, ErrNotStepping
	}
	deadline := time.Now().Add(time.Duration(budgetUs) * time.Microsecond)
	return c.run(true, deadline), nil
}

// StepBlocking runs begin_step followed by an unbounded tick loop to
// completion in one call. Equivalent to step_blocking in the spec.
func (c *Controller) StepBlocking() error {
	if c == nil {
		return ErrNotStepping
	}
	if err := c.BeginStep(); err != nil {
		return err
	}
	c.run(false, time.Time{})
	return nil
}

// run claims tiles from the active step until it drains, checking the
// deadline only between whole-tile completions (a tile is the
// indivisible unit of work; tick never preempts mid-tile).
func (c *Controller) run(hasDeadline bool, deadline time.Time) bool {
	step := c.active
	for {
		idx := step.nextTile.Add(1) - 1
		if idx >= int64(step.totalTiles) {
			c.finalize()
			return true
		}
		c.processTile(step, step.tileQueue[idx])
		if hasDeadline && !time.Now().Before(deadline) {
			return false
		}
	}
}

func (c *Controller) finalize() {
	step := c.active
	f := c.field
	f.commit(step.target)
	f.generation = step.targetGeneration
	c.logger.Infof("diffusion controller %s: finalize generation=%d", c.id, f.generation)
	c.active = nil
}

// processTile applies the fused flow kernel to every owner cell inside
// tc's intersection with the field, using a fresh tile-local remainder
// accumulator. Each owner handles its three positive-direction
// neighbors (+X, +Y, +Z) so no pair is processed by more than one
// tile; a missing neighbor at the field's high edge falls back to the
// boundary-mirror contract.
func (c *Controller) processTile(step *incrementalStep, tc TileCoord) {
	f := c.field
	divisor := Divisor(f.diffusionRate)
	conductivity := int64(f.conductivity)
	x0, y0, z0, x1, y1, z1 := tileBounds(f, tc)

	var remainderAcc int64
	w, h, d := int(f.width), int(f.height), int(f.depth)

	for z := z0; z < z1; z++ {
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				ownerIdx := f.idx(x, y, z)

				if x+1 < w {
					applyInterior(step, divisor, conductivity, &remainderAcc, ownerIdx, ownerIdx+1)
				} else {
					applyBoundaryMirror(step, divisor, conductivity, &remainderAcc, ownerIdx)
				}
				if y+1 < h {
					applyInterior(step, divisor, conductivity, &remainderAcc, ownerIdx, ownerIdx+w)
				} else {
					applyBoundaryMirror(step, divisor, conductivity, &remainderAcc, ownerIdx)
				}
				if z+1 < d {
					applyInterior(step, divisor, conductivity, &remainderAcc, ownerIdx, ownerIdx+w*h)
				} else {
					applyBoundaryMirror(step, divisor, conductivity, &remainderAcc, ownerIdx)
				}
			}
		}
	}
}

func applyInterior(step *incrementalStep, divisor, conductivity int64, remainderAcc *int64, ownerIdx, neighborIdx int) {
	gradient := step.source[ownerIdx] - step.source[neighborIdx]
	fl := flow(gradient, conductivity, divisor, remainderAcc)
	step.target[ownerIdx] -= fl
	step.target[neighborIdx] += fl
}

// applyBoundaryMirror treats a missing neighbor as a zero-gradient
// mirror of the owner: the kernel still runs, and its flow is applied
// to the owner's target cell only. A zero gradient adds no remainder,
// and flow leaves the accumulator below the divisor after every call,
// so this call never releases a correction: the flow is always 0, the
// accumulator is unchanged, and total mass is unaffected.
func applyBoundaryMirror(step *incrementalStep, divisor, conductivity int64, remainderAcc *int64, ownerIdx int) {
	fl := flow(0, conductivity, divisor, remainderAcc)
	step.target[ownerIdx] -= fl
}
