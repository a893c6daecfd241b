package diffusion

// StepFunc advances a field by one generation using a particular
// stepping strategy.
type StepFunc func(f *Field)

// Strategies is the name-keyed table the spec's design notes ask for:
// the three stepper variants are a sum type selected by name, not by
// inheritance. "fused" is canonical; "sequential" is kept for
// comparison; "tiled" drives the field through one full incremental
// step via a transient controller so it can be exercised with the same
// single-call shape as the other two in tests that compare strategies.
var Strategies = map[string]StepFunc{
	"sequential": stepSequential,
	"fused":      stepFused,
	"tiled":      stepTiledOnce,
}

func stepTiledOnce(f *Field) {
	if f == nil {
		return
	}
	c := newControllerForField(f)
	_ = c.StepBlocking()
}
