package api

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/explore/internal/explore"
)

// FrontierPlotter records per-submap frontier counts over time for
// visualization. It samples the registry on each call to Sample(),
// accumulating time series data that can be plotted after a run.
type FrontierPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	// samples holds per-submap time series.
	samples   map[explore.SubmapID][]FrontierSample
	startTime time.Time
	tickIdx   int
}

// FrontierSample represents one snapshot of a submap's frontier census.
type FrontierSample struct {
	TickIdx   int
	Timestamp time.Time
	Count     int
}

// NewFrontierPlotter creates a plotter with no recording enabled.
func NewFrontierPlotter() *FrontierPlotter {
	return &FrontierPlotter{
		samples: make(map[explore.SubmapID][]FrontierSample),
	}
}

// Start initializes the plotter for a new run. outputDir should be a
// timestamped directory (e.g. "plots/mission-001/20260823_101500").
func (fp *FrontierPlotter) Start(outputDir string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	fp.outputDir = outputDir
	fp.enabled = true
	fp.startTime = time.Time{}
	fp.tickIdx = 0
	fp.samples = make(map[explore.SubmapID][]FrontierSample)
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (fp *FrontierPlotter) Stop() {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (fp *FrontierPlotter) IsEnabled() bool {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.enabled
}

// Sample captures the current frontier census of every known submap. Call
// this once per recompute cycle.
func (fp *FrontierPlotter) Sample(registry *explore.Registry) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if !fp.enabled || registry == nil {
		return
	}
	now := time.Now()
	if fp.startTime.IsZero() {
		fp.startTime = now
	}

	for _, id := range registry.SubmapIDs() {
		fp.samples[id] = append(fp.samples[id], FrontierSample{
			TickIdx:   fp.tickIdx,
			Timestamp: now,
			Count:     registry.SubmapFrontierCount(id),
		})
	}
	fp.tickIdx++
}

// GeneratePlots writes one PNG line chart per submap into the output
// directory configured by Start.
func (fp *FrontierPlotter) GeneratePlots() error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.outputDir == "" {
		return fmt.Errorf("plotter was never started")
	}

	ids := make([]explore.SubmapID, 0, len(fp.samples))
	for id := range fp.samples {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		samples := fp.samples[id]
		if len(samples) == 0 {
			continue
		}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("Submap %d frontier count", id)
		p.X.Label.Text = "sample"
		p.Y.Label.Text = "frontiers"

		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pts = append(pts, plotter.XY{X: float64(s.TickIdx), Y: float64(s.Count)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build line for submap %d: %w", id, err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 158, B: 137, A: 255}
		p.Add(line)
		p.Legend.Add("frontiers", line)

		outFile := filepath.Join(fp.outputDir, fmt.Sprintf("submap_%03d_frontiers.png", id))
		if err := p.Save(14*vg.Inch, 6*vg.Inch, outFile); err != nil {
			return fmt.Errorf("failed to save plot for submap %d: %w", id, err)
		}
	}
	return nil
}
