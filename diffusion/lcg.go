package diffusion

// SeedNoisy fills f with the reproducible pseudo-random pattern the
// spec's conservation/determinism scenarios (S3-S5) are specified
// against: a single linear congruential generator seeded from
// seedBase and advanced once per cell (not re-seeded per index),
// sparsely placed so most cells stay zero. All arithmetic is 32-bit
// unsigned and wraps, matching the source's wrapping_mul/wrapping_add.
func SeedNoisy(f *Field, seedBase uint32) {
	if f == nil {
		return
	}
	state := seedBase*1103515245 + 12345
	for i := range f.cells {
		state = state*1103515245 + 12345
		noise := (state >> 16) & 0xFFFF

		var v uint32
		switch {
		case i%7 == 0:
			v = saturatingMul(noise, 100)
		case i%13 == 0:
			v = noise / 10
		default:
			v = 0
		}
		f.cells[i] = v
	}
}

func saturatingMul(a, b uint32) uint32 {
	product := uint64(a) * uint64(b)
	if product > uint64(maxCellValue) {
		return maxCellValue
	}
	return uint32(product)
}
