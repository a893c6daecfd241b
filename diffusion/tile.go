package diffusion

import "sort"

// TileSize is the fixed edge length of a tile processed as one unit of
// incremental work.
const TileSize = 16

// TileCoord indexes a cubic TileSize^3 block of owner cells.
type TileCoord struct {
	Tx, Ty, Tz uint8
}

func tileCounts(f *Field) (tx, ty, tz int) {
	tx = (int(f.width) + TileSize - 1) / TileSize
	ty = (int(f.height) + TileSize - 1) / TileSize
	tz = (int(f.depth) + TileSize - 1) / TileSize
	return
}

// tileBounds returns the tile's intersection with the field, as a
// half-open box [x0,x1) x [y0,y1) x [z0,z1).
func tileBounds(f *Field, tc TileCoord) (x0, y0, z0, x1, y1, z1 int) {
	x0 = int(tc.Tx) * TileSize
	y0 = int(tc.Ty) * TileSize
	z0 = int(tc.Tz) * TileSize
	x1 = min(x0+TileSize, int(f.width))
	y1 = min(y0+TileSize, int(f.height))
	z1 = min(z0+TileSize, int(f.depth))
	return
}

// buildTileQueue enumerates every tile touching the field, ordered by
// Morton (Z-order) code for cache locality. Ordering has no effect on
// the result: every tile owns a disjoint set of owner cells and reads
// only from the frozen source, so tile processing commutes.
func buildTileQueue(f *Field) []TileCoord {
	tx, ty, tz := tileCounts(f)
	queue := make([]TileCoord, 0, tx*ty*tz)
	for z := 0; z < tz; z++ {
		for y := 0; y < ty; y++ {
			for x := 0; x < tx; x++ {
				queue = append(queue, TileCoord{Tx: uint8(x), Ty: uint8(y), Tz: uint8(z)})
			}
		}
	}
	sort.Slice(queue, func(i, j int) bool {
		return mortonEncode(queue[i].Tx, queue[i].Ty, queue[i].Tz) <
			mortonEncode(queue[j].Tx, queue[j].Ty, queue[j].Tz)
	})
	return queue
}

// spreadBits interleaves the 8 bits of v with two zero bits between
// each, the first step of a 3-D bit-interleaving Morton code.
func spreadBits(v uint8) uint32 {
	x := uint32(v)
	x = (x | (x << 16)) & 0x030000FF
	x = (x | (x << 8)) & 0x0300F00F
	x = (x | (x << 4)) & 0x030C30C3
	x = (x | (x << 2)) & 0x09249249
	return x
}

func mortonEncode(x, y, z uint8) uint32 {
	return spreadBits(x) | (spreadBits(y) << 1) | (spreadBits(z) << 2)
}
