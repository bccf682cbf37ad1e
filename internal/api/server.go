// Package api exposes the exploration engine over HTTP: odometry ingest,
// mission start/stop, target and frontier queries, plus debug charts and the
// mission database admin surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/explore/internal/explore"
	"github.com/banshee-data/explore/internal/httputil"
	"github.com/banshee-data/explore/internal/missionlog"
	"github.com/banshee-data/explore/internal/monitoring"
	"github.com/banshee-data/explore/internal/replan"
	"github.com/banshee-data/explore/internal/version"
)

// WebServer handles the HTTP interface for the exploration engine.
type WebServer struct {
	address      string
	orchestrator *replan.Orchestrator
	registry     *explore.Registry
	store        *missionlog.Store
	server       *http.Server
	logf         func(format string, v ...interface{})
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address      string
	Orchestrator *replan.Orchestrator
	Registry     *explore.Registry
	Store        *missionlog.Store // optional; enables /debug admin routes
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	if config.Orchestrator == nil || config.Registry == nil {
		return nil, fmt.Errorf("api: orchestrator and registry are required")
	}
	ws := &WebServer{
		address:      config.Address,
		orchestrator: config.Orchestrator,
		registry:     config.Registry,
		store:        config.Store,
		logf:         monitoring.Prefixed("[api]"),
	}

	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: mux,
	}
	return ws, nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/explore/start", ws.handleExploreStart)
	mux.HandleFunc("/api/explore/stop", ws.handleExploreStop)
	mux.HandleFunc("/api/odometry", ws.handleOdometry)
	mux.HandleFunc("/api/target", ws.handleTarget)
	mux.HandleFunc("/api/frontiers", ws.handleFrontiers)
	mux.HandleFunc("/debug/charts/frontiers", ws.handleFrontiersChart)

	if ws.store != nil {
		if err := ws.store.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// Start begins the HTTP server and blocks until ctx is cancelled, then shuts
// the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		ws.logf("starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	ws.logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		ws.logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			ws.logf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// Handler returns the configured mux, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"state":   string(ws.orchestrator.State()),
		"version": version.Version,
	})
}

func (ws *WebServer) handleExploreStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if err := ws.orchestrator.Start(); err != nil {
		httputil.WriteJSONError(w, http.StatusConflict, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"state": string(ws.orchestrator.State())})
}

func (ws *WebServer) handleExploreStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	ws.orchestrator.Stop()
	httputil.WriteJSONOK(w, map[string]string{"state": string(ws.orchestrator.State())})
}

// odometryRequest is the wire form of one odometry message.
type odometryRequest struct {
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	} `json:"position"`
	Orientation struct {
		W float64 `json:"w"`
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	} `json:"orientation"`
	Stamp time.Time `json:"stamp"`
}

func (ws *WebServer) handleOdometry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req odometryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid odometry payload: %v", err))
		return
	}
	stamp := req.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	ws.orchestrator.HandleOdometry(r.Context(), replan.Odometry{
		Position: explore.Point{X: req.Position.X, Y: req.Position.Y, Z: req.Position.Z},
		Orientation: quat.Number{
			Real: req.Orientation.W,
			Imag: req.Orientation.X,
			Jmag: req.Orientation.Y,
			Kmag: req.Orientation.Z,
		},
		Stamp: stamp,
	})
	w.WriteHeader(http.StatusAccepted)
}

func (ws *WebServer) handleTarget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	target := ws.orchestrator.Target()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"state": string(ws.orchestrator.State()),
		"position": map[string]float64{
			"x": target.Position.X,
			"y": target.Position.Y,
			"z": target.Position.Z,
		},
		"yaw": target.Yaw,
	})
}

// frontierResponse is the wire form of one active frontier.
type frontierResponse struct {
	Submap         int        `json:"submap_id"`
	Index          int        `json:"index"`
	Epoch          uint64     `json:"epoch"`
	Size           int        `json:"size"`
	Centroid       [3]float64 `json:"centroid"`
	Representative [3]float64 `json:"representative"`
}

func (ws *WebServer) handleFrontiers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	views := ws.registry.ActiveFrontiers()
	resp := make([]frontierResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, frontierResponse{
			Submap:         int(v.Ref.Submap),
			Index:          v.Ref.Index,
			Epoch:          v.Ref.Epoch,
			Size:           v.Size,
			Centroid:       [3]float64{v.Centroid.X, v.Centroid.Y, v.Centroid.Z},
			Representative: [3]float64{v.Representative.X, v.Representative.Y, v.Representative.Z},
		})
	}
	httputil.WriteJSONOK(w, resp)
}
