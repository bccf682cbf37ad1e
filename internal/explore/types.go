// Package explore implements the frontier extraction and maintenance core
// for submap-based autonomous exploration: voxel classification types, the
// wavefront frontier detector, and the submap frontier registry that keeps
// the active frontier set consistent under pose corrections.
package explore

import "math"

// SubmapID identifies one independently-posed submap. IDs are assigned by
// the map service and are stable for the lifetime of a run; only a submap's
// transform or frozen status may change after first sight.
type SubmapID int

// VoxelState is the tri-state classification of a voxel position.
type VoxelState string

const (
	VoxelUnknown  VoxelState = "unknown"
	VoxelOccupied VoxelState = "occupied"
	VoxelFree     VoxelState = "free"
)

// Point is a position in meters. Whether it is expressed in a submap-local
// frame or the mission frame depends on context; functions document which.
type Point struct {
	X, Y, Z float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Norm returns the Euclidean length of p treated as a vector.
func (p Point) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return p.Sub(q).Norm()
}

// VoxelKey is a discretized voxel coordinate. It keys visited-sets and
// sparse grids; two points in the same voxel map to the same key.
type VoxelKey struct {
	X, Y, Z int32
}

// KeyForPoint discretizes a point into its voxel key at the given voxel size.
func KeyForPoint(p Point, voxelSize float64) VoxelKey {
	return VoxelKey{
		X: int32(math.Floor(p.X / voxelSize)),
		Y: int32(math.Floor(p.Y / voxelSize)),
		Z: int32(math.Floor(p.Z / voxelSize)),
	}
}

// Center returns the center point of the voxel at the given voxel size.
func (k VoxelKey) Center(voxelSize float64) Point {
	return Point{
		X: (float64(k.X) + 0.5) * voxelSize,
		Y: (float64(k.Y) + 0.5) * voxelSize,
		Z: (float64(k.Z) + 0.5) * voxelSize,
	}
}

// neighborOffsets6 are the face-adjacent voxel offsets used for free-space
// expansion and unknown-neighbor checks.
var neighborOffsets6 = [6]VoxelKey{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// neighborOffsets26 are the full 26-connected offsets used when grouping
// frontier voxels into clusters.
var neighborOffsets26 = func() [26]VoxelKey {
	var out [26]VoxelKey
	i := 0
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dz := int32(-1); dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out[i] = VoxelKey{dx, dy, dz}
				i++
			}
		}
	}
	return out
}()

// add returns the key offset by o.
func (k VoxelKey) add(o VoxelKey) VoxelKey {
	return VoxelKey{k.X + o.X, k.Y + o.Y, k.Z + o.Z}
}
