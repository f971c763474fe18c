// Package systems provides the track model and the per-tick simulation systems
// that the race harness runs around the AI controllers.
package systems

// SpatialGrid provides O(1) neighbor lookups using a cell-based grid over the
// ground plane. Entries are small integer ids (route node ids).
type SpatialGrid struct {
	cellSize   float64
	cols       int
	rows       int
	minX, minZ float64
	cells      [][]int32
}

// NewSpatialGrid creates a spatial grid covering [minX,maxX] x [minZ,maxZ].
func NewSpatialGrid(minX, minZ, maxX, maxZ, cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int((maxX-minX)/cellSize) + 1
	rows := int((maxZ-minZ)/cellSize) + 1

	cells := make([][]int32, cols*rows)
	for i := range cells {
		cells[i] = make([]int32, 0, 4)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		minX:     minX,
		minZ:     minZ,
		cells:    cells,
	}
}

// Clear removes all entries from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds an id to the grid at the given position.
func (g *SpatialGrid) Insert(id int32, x, z float64) {
	col, row := g.cellCoords(x, z)
	if col < 0 || row < 0 || col >= g.cols || row >= g.rows {
		return
	}
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
}

// QueryRadiusInto appends every id stored in cells overlapping the query circle.
// Candidates may lie slightly outside radius; callers do the exact test.
// Reuse dst across calls to avoid allocations.
func (g *SpatialGrid) QueryRadiusInto(dst []int32, x, z, radius float64) []int32 {
	cellRadius := int(radius/g.cellSize) + 1
	centerCol, centerRow := g.cellCoords(x, z)

	for dc := -cellRadius; dc <= cellRadius; dc++ {
		col := centerCol + dc
		if col < 0 || col >= g.cols {
			continue
		}
		for dr := -cellRadius; dr <= cellRadius; dr++ {
			row := centerRow + dr
			if row < 0 || row >= g.rows {
				continue
			}
			dst = append(dst, g.cells[row*g.cols+col]...)
		}
	}
	return dst
}

func (g *SpatialGrid) cellCoords(x, z float64) (int, int) {
	return int((x - g.minX) / g.cellSize), int((z - g.minZ) / g.cellSize)
}
