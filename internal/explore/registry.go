package explore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/explore/internal/monitoring"
)

// Registry owns one frontier collection per submap id and keeps the active
// frontier set consistent as submap content and poses change. Consumers
// never receive pointers into internal storage: ActiveFrontiers returns
// value snapshots and Resolve checks handles against the collection epoch.
type Registry struct {
	cfg  RegistryConfig
	logf func(format string, v ...interface{})

	mu          sync.Mutex
	collections map[SubmapID]*frontierCollection
	// nextEpoch is monotone per submap id and survives DropSubmap, so a ref
	// issued before a drop can never resolve against a later recompute of
	// the same id.
	nextEpoch map[SubmapID]uint64
	// computing serializes recomputes per submap id so a flood fill never
	// interleaves with an overwrite of the same submap.
	computing map[SubmapID]*sync.Mutex
}

// NewRegistry validates the configuration and returns an empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}
	return &Registry{
		cfg:         cfg,
		logf:        monitoring.Prefixed("[registry]"),
		collections: make(map[SubmapID]*frontierCollection),
		nextEpoch:   make(map[SubmapID]uint64),
		computing:   make(map[SubmapID]*sync.Mutex),
	}, nil
}

// ComputeFrontiersForSubmap runs the wavefront detector on the submap and
// stores the resulting collection, filtered by MinFrontierSize.
//
// Under the frozen policy a submap already computed is never recomputed;
// the call is a no-op. Under the non-frozen policy a later call fully
// replaces the prior collection and bumps its epoch, invalidating
// outstanding refs. An empty-seed failure leaves stored state untouched.
func (r *Registry) ComputeFrontiersForSubmap(data SubmapData, seed Point) error {
	r.mu.Lock()
	if r.cfg.SubmapsAreFrozen {
		if _, ok := r.collections[data.ID]; ok {
			r.mu.Unlock()
			return nil
		}
	}
	perSubmap, ok := r.computing[data.ID]
	if !ok {
		perSubmap = &sync.Mutex{}
		r.computing[data.ID] = perSubmap
	}
	r.mu.Unlock()

	// The flood fill is the only long-running operation; hold only the
	// per-submap lock so cross-submap queries stay responsive.
	perSubmap.Lock()
	defer perSubmap.Unlock()

	frontiers, err := DetectFrontiers(data, seed)
	if err != nil {
		return fmt.Errorf("submap %d: %w", data.ID, err)
	}

	kept := frontiers[:0]
	for _, f := range frontiers {
		if f.Size() >= r.cfg.MinFrontierSize {
			kept = append(kept, f)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg.SubmapsAreFrozen {
		// A concurrent first compute may have landed while we detected.
		if _, ok := r.collections[data.ID]; ok {
			return nil
		}
	}
	epoch := r.nextEpoch[data.ID]
	r.nextEpoch[data.ID] = epoch + 1
	r.collections[data.ID] = &frontierCollection{
		frontiers: kept,
		transform: data.TMissionSubmap,
		epoch:     epoch,
	}
	r.logf("submap %d: %d frontiers (%d filtered below size %d)",
		data.ID, len(kept), len(frontiers)-len(kept), r.cfg.MinFrontierSize)
	return nil
}

// UpdateFrontiers refreshes the mission-frame placement of stored
// collections after upstream pose-graph corrections. Submap ids absent
// from the mapping retain their last known transform; ids never seen are
// ignored. Cluster membership is never touched.
func (r *Registry) UpdateFrontiers(transforms map[SubmapID]Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range transforms {
		if col, ok := r.collections[id]; ok {
			col.transform = t
		}
	}
}

// ActiveFrontiers returns a mission-frame snapshot of every frontier
// across all tracked submaps. The views are value copies and remain
// meaningful after later registry mutations; their refs resolve only while
// the owning collection's epoch is unchanged.
func (r *Registry) ActiveFrontiers() []FrontierView {
	r.mu.Lock()
	defer r.mu.Unlock()

	var views []FrontierView
	for id, col := range r.collections {
		for i := range col.frontiers {
			f := &col.frontiers[i]
			views = append(views, FrontierView{
				Ref:            FrontierRef{Submap: id, Index: i, Epoch: col.epoch},
				Submap:         id,
				Size:           f.Size(),
				Centroid:       col.transform.Apply(f.Centroid),
				Representative: col.transform.Apply(f.Representative),
			})
		}
	}
	return views
}

// Resolve returns a copy of the frontier a ref points at, in submap-local
// coordinates, together with the submap's current transform. ok is false
// when the collection was overwritten or dropped since the ref was issued.
func (r *Registry) Resolve(ref FrontierRef) (Frontier, Transform, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	col, ok := r.collections[ref.Submap]
	if !ok || col.epoch != ref.Epoch || ref.Index < 0 || ref.Index >= len(col.frontiers) {
		return Frontier{}, Transform{}, false
	}
	f := col.frontiers[ref.Index]
	f.Points = append([]Point(nil), f.Points...)
	return f, col.transform, true
}

// DropSubmap retires a submap id, e.g. after the mapper merged it into
// another submap. Its collection is discarded and outstanding refs stop
// resolving; the surviving submap's recompute covers the region. The epoch
// counter for the id is retained, so refs issued before the drop stay dead
// even if the same id is recomputed later. Dropping an unknown id is a
// no-op.
func (r *Registry) DropSubmap(id SubmapID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[id]; !ok {
		return
	}
	delete(r.collections, id)
	delete(r.computing, id)
	r.logf("submap %d dropped", id)
}

// RefreshFromMap runs one synchronization pass against the map service:
// every submap is (re)computed per the frozen policy, seeded at the robot's
// mission-frame position mapped into the submap's local frame, and stored
// transforms are refreshed from the map's current poses. Submaps the robot
// has not observed free space in yet report ErrEmptySeed and are skipped.
func (r *Registry) RefreshFromMap(m MapService, robot Point) {
	all := m.AllSubmapData()
	transforms := make(map[SubmapID]Transform, len(all))
	for _, data := range all {
		transforms[data.ID] = data.TMissionSubmap
		seed := data.TMissionSubmap.Inverse().Apply(robot)
		if err := r.ComputeFrontiersForSubmap(data, seed); err != nil && !errors.Is(err, ErrEmptySeed) {
			r.logf("refresh submap %d: %v", data.ID, err)
		}
	}
	r.UpdateFrontiers(transforms)
}

// SubmapFrontierCount reports how many frontiers are stored for a submap.
// Unknown ids report zero; absence of data is expected early in a run.
func (r *Registry) SubmapFrontierCount(id SubmapID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	col, ok := r.collections[id]
	if !ok {
		return 0
	}
	return len(col.frontiers)
}

// SubmapIDs lists the submaps with stored collections.
func (r *Registry) SubmapIDs() []SubmapID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]SubmapID, 0, len(r.collections))
	for id := range r.collections {
		ids = append(ids, id)
	}
	return ids
}
