package diffusion

// stepFused is the canonical stepper: all three axes read from one
// frozen source snapshot and write into one target accumulator, so the
// result is rotationally symmetric up to the ±1 noise the shared
// remainder accumulator introduces. This is the strategy Field.Step
// exposes and the one the tiled controller's math must match to within
// the bounded drift documented in §8 of the spec.
func stepFused(f *Field) {
	divisor := Divisor(f.diffusionRate)
	conductivity := int64(f.conductivity)

	n := len(f.cells)
	source := make([]int64, n)
	for i, v := range f.cells {
		source[i] = int64(v)
	}
	target := make([]int64, n)
	copy(target, source)

	var remainderAcc int64
	for _, axis := range [3]Axis{AxisX, AxisY, AxisZ} {
		f.forEachInteriorPair(axis, func(ownerIdx, neighborIdx int) {
			gradient := source[ownerIdx] - source[neighborIdx]
			fl := flow(gradient, conductivity, divisor, &remainderAcc)
			target[ownerIdx] -= fl
			target[neighborIdx] += fl
		})
	}

	f.commit(target)
	f.generation++
}
