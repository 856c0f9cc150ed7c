// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package grid provides the spatial partitioning used for incremental cell
// loading: the sheet is divided into coarse fixed-size tiles ("hash
// buckets") that are the unit of request, delivery and caching, plus the
// per-sheet column/row size table needed to place cells in world space.
package grid

import (
	"math"

	"github.com/gogpu/gridrender/protocol"
	"github.com/gogpu/gridrender/viewport"
)

// Tile dimensions in world pixels: 15 default-width columns by 30
// default-height rows.
const (
	TileWidth  = 15 * DefaultColumnWidth
	TileHeight = 30 * DefaultRowHeight
)

// TileRange is an inclusive rectangle of hash bucket coordinates.
type TileRange struct {
	MinX, MinY int64
	MaxX, MaxY int64
}

// Tiles returns every bucket coordinate in the range, row-major.
func (r TileRange) Tiles() []protocol.HashPos {
	if r.MaxX < r.MinX || r.MaxY < r.MinY {
		return nil
	}
	out := make([]protocol.HashPos, 0, (r.MaxX-r.MinX+1)*(r.MaxY-r.MinY+1))
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			out = append(out, protocol.HashPos{X: x, Y: y})
		}
	}
	return out
}

// Contains reports whether the bucket lies inside the range.
func (r TileRange) Contains(h protocol.HashPos) bool {
	return h.X >= r.MinX && h.X <= r.MaxX && h.Y >= r.MinY && h.Y <= r.MaxY
}

// TileFor returns the bucket containing a world-space point.
func TileFor(wx, wy float32) protocol.HashPos {
	return protocol.HashPos{
		X: int64(math.Floor(float64(wx) / TileWidth)),
		Y: int64(math.Floor(float64(wy) / TileHeight)),
	}
}

// VisibleTiles converts visible world bounds into the covering bucket
// range.
func VisibleTiles(b viewport.Bounds) TileRange {
	return TileRange{
		MinX: int64(math.Floor(float64(b.Left) / TileWidth)),
		MinY: int64(math.Floor(float64(b.Top) / TileHeight)),
		MaxX: int64(math.Ceil(float64(b.Right)/TileWidth)) - 1,
		MaxY: int64(math.Ceil(float64(b.Bottom)/TileHeight)) - 1,
	}
}

// TileBounds returns the world-space rectangle covered by a bucket.
func TileBounds(h protocol.HashPos) viewport.Bounds {
	return viewport.Bounds{
		Left:   float32(h.X) * TileWidth,
		Top:    float32(h.Y) * TileHeight,
		Right:  float32(h.X+1) * TileWidth,
		Bottom: float32(h.Y+1) * TileHeight,
	}
}
