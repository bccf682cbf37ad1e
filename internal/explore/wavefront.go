package explore

import "errors"

// ErrEmptySeed is returned by DetectFrontiers when the seed voxel is not
// free. The caller supplies a different seed or accepts an empty collection
// for that submap this cycle.
var ErrEmptySeed = errors.New("explore: seed voxel is not free")

// DetectFrontiers runs a wavefront pass over one submap: a breadth-first
// flood fill over free voxels starting at the seed, marking every free
// voxel with an unknown face-neighbor as a frontier voxel, then grouping
// frontier voxels into 26-connected clusters.
//
// Each free voxel is visited at most once, so the pass is bounded by the
// number of free voxels reachable from the seed. Cluster membership is
// deterministic for a fixed grid and seed; only ordering may vary.
// Occupied and unknown voxels are never expanded into, and the detector
// never guesses additional seeds for disconnected free regions.
func DetectFrontiers(data SubmapData, seed Point) ([]Frontier, error) {
	vs := data.VoxelSize
	if vs <= 0 {
		vs = data.Access.VoxelSize()
	}
	stateAt := func(k VoxelKey) VoxelState {
		return data.Access.StateAt(k.Center(vs))
	}

	seedKey := KeyForPoint(seed, vs)
	if stateAt(seedKey) != VoxelFree {
		return nil, ErrEmptySeed
	}

	// Wavefront: BFS over free space. frontierOrder keeps discovery order
	// so the cluster pass below is reproducible.
	queue := []VoxelKey{seedKey}
	visited := map[VoxelKey]bool{seedKey: true}
	frontierSet := make(map[VoxelKey]bool)
	var frontierOrder []VoxelKey

	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]

		isFrontier := false
		for _, o := range neighborOffsets6 {
			n := k.add(o)
			switch stateAt(n) {
			case VoxelUnknown:
				isFrontier = true
			case VoxelFree:
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		if isFrontier && !frontierSet[k] {
			frontierSet[k] = true
			frontierOrder = append(frontierOrder, k)
		}
	}

	// Group frontier voxels into connected components. 26-connectivity so
	// diagonal frontier surfaces form a single cluster.
	assigned := make(map[VoxelKey]bool, len(frontierSet))
	var frontiers []Frontier
	for _, start := range frontierOrder {
		if assigned[start] {
			continue
		}
		assigned[start] = true
		comp := []VoxelKey{start}
		for i := 0; i < len(comp); i++ {
			for _, o := range neighborOffsets26 {
				n := comp[i].add(o)
				if frontierSet[n] && !assigned[n] {
					assigned[n] = true
					comp = append(comp, n)
				}
			}
		}

		points := make([]Point, len(comp))
		for i, k := range comp {
			points[i] = k.Center(vs)
		}
		frontiers = append(frontiers, newFrontier(data.ID, points))
	}

	return frontiers, nil
}
