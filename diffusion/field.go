// Package diffusion implements the integer-field diffusion engine core:
// the dense cell grid (Field), the per-pair flow kernel, the three
// equivalent stepping strategies, and the incremental step controller
// that lets a host advance a field across bounded-duration ticks.
package diffusion

// DefaultConductivity is the fixed-point conductivity (scale 2^16) a
// Field gets when a caller doesn't supply one; ≈1.0.
const DefaultConductivity uint16 = 65535

// Axis identifies one of the three grid axes a stepper sweeps.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Field owns the dense 3-D cell array plus the parameters of the
// diffusion equation applied to it. The zero value is not usable;
// construct with NewField.
type Field struct {
	width, height, depth int16
	cells                []uint32
	generation           uint64
	diffusionRate        uint8
	conductivity         uint16
}

// NewField creates a zero-filled field with the given dimensions and
// diffusion-rate exponent. Returns nil if any dimension is <= 0,
// matching the null-handle-on-illegal-dimensions contract external
// callers depend on.
func NewField(width, height, depth int16, rate uint8, conductivity uint16) *Field {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil
	}
	n := int(width) * int(height) * int(depth)
	return &Field{
		width:         width,
		height:        height,
		depth:         depth,
		cells:         make([]uint32, n),
		diffusionRate: rate,
		conductivity:  conductivity,
	}
}

// NewFieldDefault is NewField with DefaultConductivity.
func NewFieldDefault(width, height, depth int16, rate uint8) *Field {
	return NewField(width, height, depth, rate, DefaultConductivity)
}

func (f *Field) idx(x, y, z int) int {
	return (z*int(f.height)+y)*int(f.width) + x
}

// InBounds reports whether (x,y,z) addresses a real cell. Nil-safe.
func (f *Field) InBounds(x, y, z int) bool {
	if f == nil {
		return false
	}
	return x >= 0 && x < int(f.width) &&
		y >= 0 && y < int(f.height) &&
		z >= 0 && z < int(f.depth)
}

// Get returns the cell value at (x,y,z), or 0 on a nil field or an
// out-of-bounds coordinate.
func (f *Field) Get(x, y, z int) uint32 {
	if !f.InBounds(x, y, z) {
		return 0
	}
	return f.cells[f.idx(x, y, z)]
}

// Set writes the cell value at (x,y,z). A nil field or an
// out-of-bounds coordinate is a silent no-op.
func (f *Field) Set(x, y, z int, v uint32) {
	if !f.InBounds(x, y, z) {
		return
	}
	f.cells[f.idx(x, y, z)] = v
}

// Generation returns the number of completed steps. 0 on a nil field.
func (f *Field) Generation() uint64 {
	if f == nil {
		return 0
	}
	return f.generation
}

func (f *Field) Width() int16  { return f.dimOr(f.width) }
func (f *Field) Height() int16 { return f.dimOr(f.height) }
func (f *Field) Depth() int16  { return f.dimOr(f.depth) }

func (f *Field) dimOr(v int16) int16 {
	if f == nil {
		return 0
	}
	return v
}

// DiffusionRate returns the exponent r used in the flow divisor.
func (f *Field) DiffusionRate() uint8 {
	if f == nil {
		return 0
	}
	return f.diffusionRate
}

// Conductivity returns the fixed-point material conductivity
// (value/2^16).
func (f *Field) Conductivity() uint16 {
	if f == nil {
		return 0
	}
	return f.conductivity
}

// Sum returns the total mass currently held by the field, used by
// callers (and tests) that need to check conservation across a step.
func (f *Field) Sum() uint64 {
	if f == nil {
		return 0
	}
	var total uint64
	for _, v := range f.cells {
		total += uint64(v)
	}
	return total
}

// Cells returns a defensive copy of the backing cell array, in
// addressing order (x fastest, z slowest).
func (f *Field) Cells() []uint32 {
	if f == nil {
		return nil
	}
	out := make([]uint32, len(f.cells))
	copy(out, f.cells)
	return out
}

// Step advances the field one generation using the canonical fused
// strategy. Nil-safe.
func (f *Field) Step() {
	if f == nil {
		return
	}
	stepFused(f)
}

func (f *Field) axisDim(axis Axis) int {
	switch axis {
	case AxisX:
		return int(f.width)
	case AxisY:
		return int(f.height)
	default:
		return int(f.depth)
	}
}

func (f *Field) axisStride(axis Axis) int {
	switch axis {
	case AxisX:
		return 1
	case AxisY:
		return int(f.width)
	default:
		return int(f.width) * int(f.height)
	}
}

// forEachInteriorPair visits every adjacent owner/neighbor pair along
// axis whose neighbor exists (the boundary pair at the high edge is
// skipped — reflective behavior by omission).
func (f *Field) forEachInteriorPair(axis Axis, fn func(ownerIdx, neighborIdx int)) {
	w, h, d := int(f.width), int(f.height), int(f.depth)
	stride := f.axisStride(axis)
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				switch axis {
				case AxisX:
					if x+1 >= w {
						continue
					}
				case AxisY:
					if y+1 >= h {
						continue
					}
				case AxisZ:
					if z+1 >= d {
						continue
					}
				}
				ownerIdx := f.idx(x, y, z)
				fn(ownerIdx, ownerIdx+stride)
			}
		}
	}
}

const maxCellValue = 1<<32 - 1

// commit clips a signed working buffer into the field's unsigned cell
// array, guarding against the transient negative values a stepper that
// reads gradients from a snapshot can leave behind when an owner's
// flows to several neighbors together exceed its value.
func (f *Field) commit(work []int64) {
	for i, v := range work {
		if v < 0 {
			v = 0
		}
		if v > maxCellValue {
			v = maxCellValue
		}
		f.cells[i] = uint32(v)
	}
}
