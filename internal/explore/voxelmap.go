package explore

import (
	"fmt"
	"math"
	"sync"
)

// distanceSearchWindowVoxels bounds the local obstacle search used by
// DistanceAndGradientAt. Queries farther than this from any observed
// obstacle report ok=false.
const distanceSearchWindowVoxels = 5

// VoxelMap is an in-memory MapService backed by sparse per-submap voxel
// grids. It is the map used by the simulator and the test suites; a
// production deployment substitutes the real volumetric mapper behind the
// same interface. All queries are mutex-guarded so mapping goroutines can
// write while the exploration loop reads.
type VoxelMap struct {
	mu        sync.RWMutex
	voxelSize float64
	submaps   map[SubmapID]*voxelSubmap
}

type voxelSubmap struct {
	id        SubmapID
	transform Transform
	frozen    bool
	voxels    map[VoxelKey]VoxelState
}

// NewVoxelMap creates an empty map with the given voxel size.
func NewVoxelMap(voxelSize float64) (*VoxelMap, error) {
	if voxelSize <= 0 {
		return nil, fmt.Errorf("voxel size must be positive, got %f", voxelSize)
	}
	return &VoxelMap{
		voxelSize: voxelSize,
		submaps:   make(map[SubmapID]*voxelSubmap),
	}, nil
}

// AddSubmap registers a new submap with the given submap->mission transform.
func (m *VoxelMap) AddSubmap(id SubmapID, t Transform) error {
	if !t.IsValid() {
		return fmt.Errorf("submap %d: invalid transform", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submaps[id]; ok {
		return fmt.Errorf("submap %d already exists", id)
	}
	m.submaps[id] = &voxelSubmap{
		id:        id,
		transform: t,
		voxels:    make(map[VoxelKey]VoxelState),
	}
	return nil
}

// SetVoxel classifies the voxel containing the submap-local point p.
// Frozen submaps reject content changes.
func (m *VoxelMap) SetVoxel(id SubmapID, p Point, s VoxelState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.submaps[id]
	if !ok {
		return fmt.Errorf("submap %d not found", id)
	}
	if sm.frozen {
		return fmt.Errorf("submap %d is frozen", id)
	}
	sm.voxels[KeyForPoint(p, m.voxelSize)] = s
	return nil
}

// FillBox classifies every voxel whose center lies in the submap-local
// axis-aligned box [min, max]. Convenience for simulations and tests.
func (m *VoxelMap) FillBox(id SubmapID, min, max Point, s VoxelState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.submaps[id]
	if !ok {
		return fmt.Errorf("submap %d not found", id)
	}
	if sm.frozen {
		return fmt.Errorf("submap %d is frozen", id)
	}
	lo := KeyForPoint(min, m.voxelSize)
	hi := KeyForPoint(max, m.voxelSize)
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				sm.voxels[VoxelKey{x, y, z}] = s
			}
		}
	}
	return nil
}

// SetTransform updates a submap's pose after an upstream correction.
func (m *VoxelMap) SetTransform(id SubmapID, t Transform) error {
	if !t.IsValid() {
		return fmt.Errorf("submap %d: invalid transform", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.submaps[id]
	if !ok {
		return fmt.Errorf("submap %d not found", id)
	}
	sm.transform = t
	return nil
}

// Freeze marks a submap's content immutable. Its pose may still change.
func (m *VoxelMap) Freeze(id SubmapID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.submaps[id]
	if !ok {
		return fmt.Errorf("submap %d not found", id)
	}
	sm.frozen = true
	return nil
}

// RemoveSubmap drops a submap, e.g. after it was merged into another.
// Removing an unknown id is a no-op.
func (m *VoxelMap) RemoveSubmap(id SubmapID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.submaps, id)
}

// VoxelSize implements MapService.
func (m *VoxelMap) VoxelSize() float64 { return m.voxelSize }

// SubmapIDs implements MapService.
func (m *VoxelMap) SubmapIDs() []SubmapID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]SubmapID, 0, len(m.submaps))
	for id := range m.submaps {
		ids = append(ids, id)
	}
	return ids
}

// SubmapData implements MapService.
func (m *VoxelMap) SubmapData(id SubmapID) (SubmapData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sm, ok := m.submaps[id]
	if !ok {
		return SubmapData{}, false
	}
	return m.dataLocked(sm), true
}

// AllSubmapData implements MapService.
func (m *VoxelMap) AllSubmapData() []SubmapData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SubmapData, 0, len(m.submaps))
	for _, sm := range m.submaps {
		out = append(out, m.dataLocked(sm))
	}
	return out
}

func (m *VoxelMap) dataLocked(sm *voxelSubmap) SubmapData {
	return SubmapData{
		ID:             sm.id,
		TMissionSubmap: sm.transform,
		VoxelSize:      m.voxelSize,
		Frozen:         sm.frozen,
		Access:         &submapAccessor{m: m, id: sm.id},
	}
}

// submapAccessor is the per-submap classification view handed to the
// detector. Reads go through the map lock.
type submapAccessor struct {
	m  *VoxelMap
	id SubmapID
}

func (a *submapAccessor) VoxelSize() float64 { return a.m.voxelSize }

func (a *submapAccessor) StateAt(p Point) VoxelState {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	sm, ok := a.m.submaps[a.id]
	if !ok {
		return VoxelUnknown
	}
	if s, ok := sm.voxels[KeyForPoint(p, a.m.voxelSize)]; ok {
		return s
	}
	return VoxelUnknown
}

// stateAtMission classifies a mission-frame point against all submaps.
// Occupied wins over free; a point no submap observed is unknown.
func (m *VoxelMap) stateAtMission(p Point) VoxelState {
	state := VoxelUnknown
	for _, sm := range m.submaps {
		local := sm.transform.Inverse().Apply(p)
		s, ok := sm.voxels[KeyForPoint(local, m.voxelSize)]
		if !ok {
			continue
		}
		if s == VoxelOccupied {
			return VoxelOccupied
		}
		if s == VoxelFree {
			state = VoxelFree
		}
	}
	return state
}

// IsTraversable implements MapService: every voxel center within the
// clearance radius of p must be observed free.
func (m *VoxelMap) IsTraversable(p Point, radius float64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps := int32(math.Ceil(radius / m.voxelSize))
	r2 := radius * radius
	for dx := -steps; dx <= steps; dx++ {
		for dy := -steps; dy <= steps; dy++ {
			for dz := -steps; dz <= steps; dz++ {
				off := Point{
					X: float64(dx) * m.voxelSize,
					Y: float64(dy) * m.voxelSize,
					Z: float64(dz) * m.voxelSize,
				}
				if off.X*off.X+off.Y*off.Y+off.Z*off.Z > r2 {
					continue
				}
				q := Point{p.X + off.X, p.Y + off.Y, p.Z + off.Z}
				if m.stateAtMission(q) != VoxelFree {
					return false
				}
			}
		}
	}
	return true
}

// IsLineTraversable implements MapService by stepping from a to b at half
// voxel resolution.
func (m *VoxelMap) IsLineTraversable(a, b Point, radius float64) (Point, bool) {
	dir := b.Sub(a)
	length := dir.Norm()
	if length == 0 {
		return a, m.IsTraversable(a, radius)
	}
	step := m.voxelSize / 2
	n := int(math.Ceil(length / step))

	last := a
	for i := 0; i <= n; i++ {
		f := float64(i) / float64(n)
		q := Point{a.X + dir.X*f, a.Y + dir.Y*f, a.Z + dir.Z*f}
		if !m.IsTraversable(q, radius) {
			return last, false
		}
		last = q
	}
	return last, true
}

// DistanceAndGradientAt implements MapService with a bounded local search
// for the nearest occupied voxel.
func (m *VoxelMap) DistanceAndGradientAt(p Point) (float64, Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	best := math.Inf(1)
	var nearest Point
	found := false
	w := int32(distanceSearchWindowVoxels)
	for dx := -w; dx <= w; dx++ {
		for dy := -w; dy <= w; dy++ {
			for dz := -w; dz <= w; dz++ {
				q := Point{
					X: p.X + float64(dx)*m.voxelSize,
					Y: p.Y + float64(dy)*m.voxelSize,
					Z: p.Z + float64(dz)*m.voxelSize,
				}
				if m.stateAtMission(q) != VoxelOccupied {
					continue
				}
				if d := p.Dist(q); d < best {
					best = d
					nearest = q
					found = true
				}
			}
		}
	}
	if !found {
		return 0, Point{}, false
	}
	grad := p.Sub(nearest)
	if n := grad.Norm(); n > 0 {
		grad = Point{grad.X / n, grad.Y / n, grad.Z / n}
	}
	return best, grad, true
}
