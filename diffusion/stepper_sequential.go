package diffusion

// stepSequential advances the field one generation by sweeping X, then
// Y, then Z. Within an axis every pair reads gradients from the state
// as it stood when that axis began and writes into a working buffer;
// the buffer is copied back before the next axis, so each later axis
// reads values already diffused by the earlier ones. That is why the
// strategy is not rotationally symmetric (the three axes don't see the
// same input). One remainder accumulator lives for the whole step,
// shared across all three axes.
func stepSequential(f *Field) {
	divisor := Divisor(f.diffusionRate)
	conductivity := int64(f.conductivity)

	work := make([]int64, len(f.cells))
	for i, v := range f.cells {
		work[i] = int64(v)
	}

	read := make([]int64, len(work))
	var remainderAcc int64
	for _, axis := range [3]Axis{AxisX, AxisY, AxisZ} {
		copy(read, work)
		f.forEachInteriorPair(axis, func(ownerIdx, neighborIdx int) {
			gradient := read[ownerIdx] - read[neighborIdx]
			fl := flow(gradient, conductivity, divisor, &remainderAcc)
			work[ownerIdx] -= fl
			work[neighborIdx] += fl
		})
	}

	f.commit(work)
	f.generation++
}
