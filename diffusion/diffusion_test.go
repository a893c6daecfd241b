package diffusion

import "testing"

// --- universal invariants (spec §8, properties 1-6), checked against
// every named strategy in the table. ---

func TestUniversal_MassConservation(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(16, 16, 16, 3)
			SeedNoisy(f, 99)
			before := f.Sum()
			for i := 0; i < 5; i++ {
				step(f)
			}
			after := f.Sum()
			if before != after {
				t.Fatalf("%s: mass not conserved: before=%d after=%d", name, before, after)
			}
		})
	}
}

func TestUniversal_Determinism(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f1 := NewFieldDefault(16, 16, 16, 3)
			f2 := NewFieldDefault(16, 16, 16, 3)
			SeedNoisy(f1, 4242)
			SeedNoisy(f2, 4242)
			for i := 0; i < 3; i++ {
				step(f1)
				step(f2)
			}
			c1, c2 := f1.Cells(), f2.Cells()
			for i := range c1 {
				if c1[i] != c2[i] {
					t.Fatalf("%s: determinism violated at cell %d: %d != %d", name, i, c1[i], c2[i])
				}
			}
		})
	}
}

func TestUniversal_GenerationMonotonicity(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(8, 8, 8, 2)
			for i := uint64(1); i <= 4; i++ {
				step(f)
				if f.Generation() != i {
					t.Fatalf("%s: expected generation %d, got %d", name, i, f.Generation())
				}
			}
		})
	}
}

func TestUniversal_ZeroFixedPoint(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(8, 8, 8, 2)
			for i := 0; i < 5; i++ {
				step(f)
				for _, v := range f.Cells() {
					if v != 0 {
						t.Fatalf("%s: all-zero field produced a non-zero cell after step %d", name, i+1)
					}
				}
			}
		})
	}
}

func TestUniversal_BoundsSafety(t *testing.T) {
	f := NewFieldDefault(4, 4, 4, 2)
	oob := [][3]int{{-1, 0, 0}, {4, 0, 0}, {0, -1, 0}, {0, 4, 0}, {0, 0, -1}, {0, 0, 4}}
	for _, c := range oob {
		if f.InBounds(c[0], c[1], c[2]) {
			t.Fatalf("%v should be out of bounds", c)
		}
		if f.Get(c[0], c[1], c[2]) != 0 {
			t.Fatalf("OOB read at %v should yield 0", c)
		}
	}
}

func TestUniversal_NoNegativeCommit(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(8, 8, 8, 2)
			f.Set(0, 0, 0, 1)
			for i := 0; i < 50; i++ {
				step(f)
				for _, v := range f.Cells() {
					if v == maxCellValue {
						t.Fatalf("%s: cell wrapped to max uint32 at step %d", name, i+1)
					}
				}
			}
		})
	}
}

// --- fused-specific: rotational symmetry to tolerance (property 7 / S5) ---

func transposeXY(f *Field) *Field {
	nf := NewField(f.width, f.height, f.depth, f.diffusionRate, f.conductivity)
	for z := 0; z < int(f.depth); z++ {
		for y := 0; y < int(f.height); y++ {
			for x := 0; x < int(f.width); x++ {
				nf.Set(y, x, z, f.Get(x, y, z))
			}
		}
	}
	return nf
}

func TestFused_RotationalSymmetry_S5(t *testing.T) {
	const v0 = 200_000_000
	build := func() *Field {
		f := NewFieldDefault(8, 8, 8, 3)
		for _, c := range [][3]int{
			{3, 3, 3}, {3, 3, 4}, {3, 4, 3}, {3, 4, 4},
			{4, 3, 3}, {4, 3, 4}, {4, 4, 3}, {4, 4, 4},
		} {
			f.Set(c[0], c[1], c[2], v0)
		}
		return f
	}

	unswapped := build()
	stepFused(unswapped)
	stepFused(unswapped)

	swapped := transposeXY(build())
	stepFused(swapped)
	stepFused(swapped)
	flippedBack := transposeXY(swapped)

	for z := 0; z < 8; z++ {
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				a := int64(unswapped.Get(x, y, z))
				b := int64(flippedBack.Get(x, y, z))
				diff := a - b
				if diff < 0 {
					diff = -diff
				}
				if diff > 8 {
					t.Fatalf("cell (%d,%d,%d) differs by %d (> 8) between swapped/unswapped runs", x, y, z, diff)
				}
			}
		}
	}
}

// --- incremental-specific: blocking == ticking, bounded drift from fused ---

func TestIncremental_BlockingEqualsTicking_S4(t *testing.T) {
	blocking := NewFieldDefault(64, 64, 64, 3)
	SeedNoisy(blocking, 77)
	cb := newControllerForField(blocking)
	if err := cb.StepBlocking(); err != nil {
		t.Fatalf("step_blocking failed: %v", err)
	}

	ticked := NewFieldDefault(64, 64, 64, 3)
	SeedNoisy(ticked, 77)
	ct := newControllerForField(ticked)
	if err := ct.BeginStep(); err != nil {
		t.Fatalf("begin_step failed: %v", err)
	}
	for {
		done, err := ct.Tick(100)
		if err != nil {
			t.Fatalf("tick failed: %v", err)
		}
		if done {
			break
		}
	}

	cBlock, cTick := blocking.Cells(), ticked.Cells()
	for i := range cBlock {
		if cBlock[i] != cTick[i] {
			t.Fatalf("blocking and ticked results diverge at cell %d: %d != %d", i, cBlock[i], cTick[i])
		}
	}
}

func TestIncremental_BoundedDriftFromFused(t *testing.T) {
	const k = 3
	fused := NewFieldDefault(32, 32, 32, 3)
	SeedNoisy(fused, 2024)
	incremental := NewFieldDefault(32, 32, 32, 3)
	SeedNoisy(incremental, 2024)

	c := newControllerForField(incremental)
	for i := 0; i < k; i++ {
		stepFused(fused)
		if err := c.StepBlocking(); err != nil {
			t.Fatalf("step_blocking failed: %v", err)
		}
	}

	if fused.Sum() != incremental.Sum() {
		t.Fatalf("mass diverged between fused and incremental: %d != %d", fused.Sum(), incremental.Sum())
	}

	fc, ic := fused.Cells(), incremental.Cells()
	for i := range fc {
		diff := int64(fc[i]) - int64(ic[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > 25 {
			t.Fatalf("cell %d drifted by %d (> 25) between fused and incremental after %d steps", i, diff, k)
		}
	}
}

func TestIncremental_MutationBarrier(t *testing.T) {
	f := NewFieldDefault(8, 8, 8, 2)
	f.Set(4, 4, 4, 1_000_000)
	c := newControllerForField(f)
	if err := c.BeginStep(); err != nil {
		t.Fatalf("begin_step failed: %v", err)
	}
	c.Set(4, 4, 4, 42) // must be a no-op while Stepping
	before := c.Get(4, 4, 4)
	if before != 1_000_000 {
		t.Fatalf("Set during Stepping must not change the committed value, got %d", before)
	}
	done, err := c.Tick(1 << 30)
	if err != nil || !done {
		t.Fatalf("expected tick to complete the step, done=%v err=%v", done, err)
	}
}

func TestController_StateMachineViolations(t *testing.T) {
	c := NewController(8, 8, 8, 2, DefaultConductivity)

	if _, err := c.Tick(100); err != ErrNotStepping {
		t.Fatalf("tick while Idle should return ErrNotStepping, got %v", err)
	}

	if err := c.BeginStep(); err != nil {
		t.Fatalf("unexpected error on first begin_step: %v", err)
	}
	if err := c.BeginStep(); err != ErrAlreadyStepping {
		t.Fatalf("begin_step while Stepping should return ErrAlreadyStepping, got %v", err)
	}
	if !c.IsStepping() {
		t.Fatalf("controller should still be Stepping after the rejected begin_step")
	}
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller
	if c.Get(0, 0, 0) != 0 {
		t.Errorf("nil controller Get should return 0")
	}
	c.Set(0, 0, 0, 5) // must not panic
	if c.GetGeneration() != 0 {
		t.Errorf("nil controller GetGeneration should return 0")
	}
	if c.IsStepping() {
		t.Errorf("nil controller should never report Stepping")
	}
	if err := c.BeginStep(); err == nil {
		t.Errorf("nil controller BeginStep should return an error")
	}
}

func TestNewController_IllegalDimensions(t *testing.T) {
	if c := NewController(0, 8, 8, 2, DefaultConductivity); c != nil {
		t.Fatalf("NewController with an illegal dimension should return nil")
	}
}

// --- concrete scenarios S1-S3, S6 ---

func TestScenario_S1_PointSource(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(8, 8, 8, 2)
			f.Set(4, 4, 4, 1_000_000)
			step(f)

			if got := f.Sum(); got != 1_000_000 {
				t.Fatalf("%s: sum should stay 1000000, got %d", name, got)
			}
			neighbors := [][3]int{{3, 4, 4}, {5, 4, 4}, {4, 3, 4}, {4, 5, 4}, {4, 4, 3}, {4, 4, 5}}
			for _, n := range neighbors {
				if f.Get(n[0], n[1], n[2]) == 0 {
					t.Fatalf("%s: axis-neighbor %v should be strictly positive after one step", name, n)
				}
			}
		})
	}
}

func TestScenario_S2_EdgeSource(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(8, 8, 8, 2)
			f.Set(0, 4, 4, 1_000_000)
			step(f)

			if got := f.Sum(); got != 1_000_000 {
				t.Fatalf("%s: sum should stay 1000000, got %d", name, got)
			}
			if f.Get(1, 4, 4) == 0 {
				t.Fatalf("%s: (1,4,4) should be strictly positive after one step", name)
			}
			const bound = 1_000_000 / 7
			for z := 0; z < 8; z++ {
				for y := 0; y < 8; y++ {
					for x := 0; x < 8; x++ {
						if x == 7 || y == 7 || z == 7 {
							if v := f.Get(x, y, z); v > bound {
								t.Fatalf("%s: far cell (%d,%d,%d)=%d exceeds bound %d", name, x, y, z, v, bound)
							}
						}
					}
				}
			}
		})
	}
}

func TestScenario_S3_ConservationUnderManySteps(t *testing.T) {
	for name, step := range Strategies {
		t.Run(name, func(t *testing.T) {
			f := NewFieldDefault(128, 128, 128, 3)
			SeedNoisy(f, 2024)
			before := f.Sum()
			for i := 0; i < 4; i++ {
				step(f)
			}
			if after := f.Sum(); before != after {
				t.Fatalf("%s: sum changed over 4 steps: before=%d after=%d", name, before, after)
			}
		})
	}
}

func TestScenario_S6_BoundaryMirrorNoUnderflow(t *testing.T) {
	f := NewFieldDefault(3, 3, 3, 2)
	f.Set(1, 1, 1, 1)
	c := newControllerForField(f)

	prev := f.Cells()
	for step := 0; step < 200; step++ {
		if err := c.StepBlocking(); err != nil {
			t.Fatalf("step_blocking failed at step %d: %v", step, err)
		}
		cur := f.Cells()
		for i := range cur {
			if cur[i] == maxCellValue {
				t.Fatalf("cell %d underflowed to max uint32 at step %d", i, step)
			}
			var diff int64 = int64(cur[i]) - int64(prev[i])
			if diff < -1 || diff > 1 {
				t.Fatalf("cell %d changed by %d (outside {-1,0,1}) at step %d", i, diff, step)
			}
		}
		prev = cur
	}
}
