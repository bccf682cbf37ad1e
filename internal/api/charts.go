package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/explore/internal/httputil"
)

// handleFrontiersChart renders a top-down scatter (HTML) of the active
// frontier centroids using go-echarts, colored by cluster size. This is a
// debugging-only endpoint (no auth) to eyeball the frontier set without a
// full visualization stack.
// Query params:
//   - max_points (optional; default 8000) to reduce payload size
func (ws *WebServer) handleFrontiersChart(w http.ResponseWriter, r *http.Request) {
	views := ws.registry.ActiveFrontiers()
	if len(views) == 0 {
		httputil.NotFound(w, "no active frontiers")
		return
	}

	maxPoints := 8000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	// Downsample by stride to stay within maxPoints
	stride := 1
	if len(views) > maxPoints {
		stride = int(math.Ceil(float64(len(views)) / float64(maxPoints)))
	}

	data := make([]opts.ScatterData, 0, len(views)/stride+1)
	maxAbs := 0.0
	maxSize := 0.0
	for i := 0; i < len(views); i += stride {
		v := views[i]
		x, y := v.Centroid.X, v.Centroid.Y
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
		size := float64(v.Size)
		if size > maxSize {
			maxSize = size
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, size}})
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}
	if maxSize == 0 {
		maxSize = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Active Frontiers", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Frontier Centroids", Subtitle: fmt.Sprintf("frontiers=%d stride=%d", len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSize),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)
	scatter.AddSeries("frontiers", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
