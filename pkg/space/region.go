package space

import (
	"github.com/sti-hpc/hospicon/pkg/geometry"
)

// Region is one process's rectangular sub-region of the shared grid
// (spec §1: "Each process owns a rectangular sub-region of a shared
// 2D grid").
type Region struct {
	MinX, MinY int32
	MaxX, MaxY int32 // exclusive
}

// Contains reports whether a discrete coordinate falls inside the region.
func (r Region) Contains(c geometry.DiscreteCoord) bool {
	return c.X >= r.MinX && c.X < r.MaxX && c.Y >= r.MinY && c.Y < r.MaxY
}

// Partition divides a width x height grid into xProcess * yProcess
// rectangular regions, rank = rx + ry*xProcess, matching the
// x.process/y.process properties (spec §6).
type Partition struct {
	width, height        int
	xProcess, yProcess   int
	regions              []Region
}

// NewPartition builds a deterministic grid partition. Uneven
// divisions give the remainder columns/rows to the last rank in each
// dimension, so every cell is owned by exactly one rank.
func NewPartition(width, height, xProcess, yProcess int) *Partition {
	p := &Partition{width: width, height: height, xProcess: xProcess, yProcess: yProcess}
	colWidth := width / xProcess
	rowHeight := height / yProcess

	p.regions = make([]Region, xProcess*yProcess)
	for ry := 0; ry < yProcess; ry++ {
		for rx := 0; rx < xProcess; rx++ {
			minX := int32(rx * colWidth)
			maxX := int32((rx + 1) * colWidth)
			if rx == xProcess-1 {
				maxX = int32(width)
			}
			minY := int32(ry * rowHeight)
			maxY := int32((ry + 1) * rowHeight)
			if ry == yProcess-1 {
				maxY = int32(height)
			}
			p.regions[rx+ry*xProcess] = Region{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
		}
	}
	return p
}

// RegionOf returns the region owned by rank.
func (p *Partition) RegionOf(rank int32) Region {
	return p.regions[rank]
}

// RankCount returns the total number of ranks in the partition.
func (p *Partition) RankCount() int {
	return len(p.regions)
}

// OwnerOf returns which rank owns a given discrete coordinate.
// Coordinates are clamped into range so an agent that steps exactly
// onto a grid edge always resolves to a valid rank.
func (p *Partition) OwnerOf(c geometry.DiscreteCoord) int32 {
	x, y := c.X, c.Y
	if x < 0 {
		x = 0
	}
	if int(x) >= p.width {
		x = int32(p.width - 1)
	}
	if y < 0 {
		y = 0
	}
	if int(y) >= p.height {
		y = int32(p.height - 1)
	}
	for rank, r := range p.regions {
		if r.Contains(geometry.DiscreteCoord{X: x, Y: y}) {
			return int32(rank)
		}
	}
	return 0
}
