package gekko

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/voxel-diffusion/diffusion"
)

// TransformComponent is the minimal world-space placement an entity
// needs to own a CellularVolumeComponent: where its field's origin
// sits, and how its local axes are scaled/rotated into world space.
type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// CellularVolumeComponent attaches an integer diffusion field to an
// entity. The field is in the local space of the entity's
// TransformComponent; CellSize maps one field cell to world units.
type CellularVolumeComponent struct {
	Resolution [3]int16
	CellSize   float32

	DiffusionRate uint8
	Conductivity  uint16

	// TickRate caps how often the field advances a generation, in Hz.
	// Defaults to 15 if <= 0.
	TickRate float32

	// TickBudgetUs bounds how much of each Update stage call may be
	// spent resuming an in-progress incremental step. Defaults to
	// 2000 if <= 0.
	TickBudgetUs int64

	// SeedBase, if non-zero, reseeds the field with SeedNoisy the
	// first time ensureController builds it.
	SeedBase uint32

	controller *diffusion.Controller
	accum      float32
}

// ensureController lazily builds the backing controller on first use,
// so a component can be added to an entity with just Resolution set.
func (cv *CellularVolumeComponent) ensureController() {
	if cv.controller != nil {
		return
	}
	nx, ny, nz := cv.Resolution[0], cv.Resolution[1], cv.Resolution[2]
	if nx <= 0 || ny <= 0 || nz <= 0 {
		cv.Resolution = [3]int16{32, 32, 32}
		nx, ny, nz = 32, 32, 32
	}
	if cv.CellSize <= 0 {
		cv.CellSize = 1.0
	}
	rate := cv.DiffusionRate
	conductivity := cv.Conductivity
	if conductivity == 0 {
		conductivity = diffusion.DefaultConductivity
	}
	cv.controller = diffusion.NewController(nx, ny, nz, rate, conductivity)
	if cv.SeedBase != 0 {
		cv.controller.Seed(cv.SeedBase)
	}
}

// Get reads a committed cell value. Always permitted, even mid-step.
func (cv *CellularVolumeComponent) Get(x, y, z int) uint32 {
	cv.ensureController()
	return cv.controller.Get(x, y, z)
}

// Set writes a committed cell value. A no-op while the field is
// mid-step, per the controller's mutation-barrier contract.
func (cv *CellularVolumeComponent) Set(x, y, z int, v uint32) {
	cv.ensureController()
	cv.controller.Set(x, y, z, v)
}

// Generation returns the field's committed generation counter.
func (cv *CellularVolumeComponent) Generation() uint64 {
	cv.ensureController()
	return cv.controller.GetGeneration()
}

// WorldToCell maps a world-space point into this volume's local cell
// coordinates, using the owning entity's transform.
func (cv *CellularVolumeComponent) WorldToCell(tr *TransformComponent, world mgl32.Vec3) (int, int, int) {
	local := tr.Rotation.Inverse().Rotate(world.Sub(tr.Position))
	cell := local.Mul(1.0 / cv.CellSize)
	return int(cell.X()), int(cell.Y()), int(cell.Z())
}

// DiffusionModule installs the system that advances every
// CellularVolumeComponent's field each frame: one fixed-rate
// generation per TickRate period, spread across as many Update calls
// as the tile queue needs at TickBudgetUs per call. It also installs
// LifecycleModule, so a transient volume (a temporary gas puff, a
// scripted effect) can be spawned with a LifetimeComponent alongside
// its CellularVolumeComponent and be cleaned up automatically once it
// expires, instead of diffusing forever.
type DiffusionModule struct{}

func (mod DiffusionModule) Install(app *App, cmd *Commands) {
	app.UseSystem(
		System(diffusionStepSystem).
			InStage(Update).
			RunAlways(),
	)
	LifecycleModule{}.Install(app, cmd)
}

func diffusionStepSystem(t *Time, cmd *Commands) {
	dt := float32(t.Dt)
	if dt <= 0 {
		dt = 1.0 / 60.0
	}

	// TransformComponent is optional: a volume with no placement still
	// steps, it just can't answer WorldToCell queries.
	MakeQuery2[TransformComponent, CellularVolumeComponent](cmd).Map(func(eid EntityId, tr *TransformComponent, cv *CellularVolumeComponent) bool {
		cv.ensureController()

		rate := cv.TickRate
		if rate <= 0 {
			rate = 15.0
			cv.TickRate = rate
		}
		budget := cv.TickBudgetUs
		if budget <= 0 {
			budget = 2000
			cv.TickBudgetUs = budget
		}
		period := 1.0 / rate

		if cv.controller.IsStepping() {
			// A prior generation transition is still in flight; spend
			// this frame's budget resuming it before considering a
			// new one.
			if _, err := cv.controller.Tick(budget); err != nil {
				cmd.app.Logger().Warnf("diffusion: entity %v tick error: %v", eid, err)
			}
			return true
		}

		cv.accum += dt
		if cv.accum < period {
			return true
		}
		cv.accum = 0

		if err := cv.controller.BeginStep(); err != nil {
			cmd.app.Logger().Warnf("diffusion: entity %v begin_step error: %v", eid, err)
			return true
		}
		if _, err := cv.controller.Tick(budget); err != nil {
			cmd.app.Logger().Warnf("diffusion: entity %v tick error: %v", eid, err)
		}
		return true
	}, TransformComponent{})
}
