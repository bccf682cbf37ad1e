package explore

// SubmapAccessor exposes the voxel classification of a single submap. The
// detector only needs this tri-state view plus the voxel size; it never
// sees distance values. Implementations must be safe for concurrent reads
// when the backing map is updated by other goroutines.
type SubmapAccessor interface {
	// VoxelSize returns the edge length of a voxel in meters.
	VoxelSize() float64
	// StateAt classifies a submap-local position.
	StateAt(p Point) VoxelState
}

// SubmapData describes one submap as handed to the registry: identity,
// current placement in the mission frame, and its classification accessor.
type SubmapData struct {
	ID SubmapID
	// TMissionSubmap maps submap-local points into the mission frame.
	TMissionSubmap Transform
	VoxelSize      float64
	// Frozen submaps have immutable content; their pose may still change.
	Frozen bool
	Access SubmapAccessor
}

// MapService is the consumed contract of the external volumetric map. The
// frontier engine uses the submap accessors and transforms; the
// traversability and distance queries serve downstream target selection and
// local planning.
type MapService interface {
	VoxelSize() float64
	SubmapIDs() []SubmapID
	SubmapData(id SubmapID) (SubmapData, bool)
	AllSubmapData() []SubmapData

	// IsTraversable reports whether the mission-frame point is known free
	// with the given clearance radius.
	IsTraversable(p Point, radius float64) bool
	// IsLineTraversable walks from a to b in voxel-size steps and reports
	// whether the whole segment is traversable, returning the last
	// traversable point reached.
	IsLineTraversable(a, b Point, radius float64) (lastTraversable Point, ok bool)
	// DistanceAndGradientAt returns the distance to the nearest observed
	// obstacle around the mission-frame point and the gradient pointing
	// away from it. ok is false when no obstacle is within the local
	// search window.
	DistanceAndGradientAt(p Point) (distance float64, gradient Point, ok bool)
}
