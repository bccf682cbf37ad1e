package explore

// Frontier is a maximal connected cluster of frontier voxels: free voxels
// with at least one unknown neighbor. Member points are voxel centers in
// the owning submap's local frame; mission-frame placement is applied by
// the registry using the submap's current transform.
type Frontier struct {
	Submap SubmapID
	// Points are the member voxel centers, submap-local.
	Points []Point
	// Centroid is the mean of Points, submap-local.
	Centroid Point
	// Representative is the member voxel center nearest the centroid. It is
	// guaranteed to lie on the frontier, unlike the centroid itself.
	Representative Point
}

// Size returns the number of member voxels.
func (f *Frontier) Size() int { return len(f.Points) }

// FrontierRef is a stable handle to a frontier inside the registry. Refs
// survive pose updates but are invalidated when the owning collection is
// recomputed (epoch bump) or the submap is dropped; Resolve then reports
// ok=false instead of dangling.
type FrontierRef struct {
	Submap SubmapID
	Index  int
	Epoch  uint64
}

// FrontierView is a read-only, mission-frame snapshot of one frontier as
// returned by ActiveFrontiers. It is a value copy: safe to retain, but it
// reflects the registry state at snapshot time only.
type FrontierView struct {
	Ref            FrontierRef
	Submap         SubmapID
	Size           int
	Centroid       Point // mission frame
	Representative Point // mission frame
}

// frontierCollection holds all frontiers of one submap at one point in
// time, plus the transform used to place them in the mission frame. Epochs
// are monotone per submap id, across overwrites and drops, and validate
// outstanding refs.
type frontierCollection struct {
	frontiers []Frontier
	transform Transform
	epoch     uint64
}

func newFrontier(submap SubmapID, points []Point) Frontier {
	f := Frontier{Submap: submap, Points: points}
	n := float64(len(points))
	if n == 0 {
		return f
	}
	var cx, cy, cz float64
	for _, p := range points {
		cx += p.X
		cy += p.Y
		cz += p.Z
	}
	f.Centroid = Point{cx / n, cy / n, cz / n}

	best := points[0]
	bestDist := best.Dist(f.Centroid)
	for _, p := range points[1:] {
		if d := p.Dist(f.Centroid); d < bestDist {
			best = p
			bestDist = d
		}
	}
	f.Representative = best
	return f
}
