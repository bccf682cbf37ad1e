// Command explorerd runs the autonomous exploration engine: it maintains the
// submap voxel map, computes frontiers, replans exploration targets from
// incoming odometry, and serves the HTTP control and debug surface.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/explore/internal/api"
	"github.com/banshee-data/explore/internal/config"
	"github.com/banshee-data/explore/internal/explore"
	"github.com/banshee-data/explore/internal/missionlog"
	"github.com/banshee-data/explore/internal/monitoring"
	"github.com/banshee-data/explore/internal/replan"
	"github.com/banshee-data/explore/internal/version"
)

var (
	listen        = flag.String("listen", "", "Listen address (overrides config)")
	missionDB     = flag.String("mission-db", "", "Mission log database path (overrides config)")
	statsInterval = flag.Duration("stats-interval", 10*time.Second, "Frontier census recording interval")
	plotDir       = flag.String("plot-dir", "", "If set, write frontier count plots here on shutdown")
)

func main() {
	flag.Parse()
	monitoring.Logf("explorerd %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Address = *listen
	}
	if *missionDB != "" {
		cfg.Mission.DBPath = *missionDB
	}

	voxelMap, err := explore.NewVoxelMap(cfg.Map.VoxelSize)
	if err != nil {
		log.Fatalf("failed to create voxel map: %v", err)
	}
	registry, err := explore.NewRegistry(cfg.RegistryConfig())
	if err != nil {
		log.Fatalf("failed to create frontier registry: %v", err)
	}
	selector, err := replan.NewFrontierTargetSelector(cfg.SelectorConfig(), registry, voxelMap)
	if err != nil {
		log.Fatalf("failed to create target selector: %v", err)
	}

	store, err := missionlog.NewStore(cfg.Mission.DBPath, cfg.Mission.Label)
	if err != nil {
		log.Fatalf("failed to open mission log: %v", err)
	}
	defer store.Close()
	monitoring.Logf("mission %s recording to %s", store.MissionID(), cfg.Mission.DBPath)

	publishLogf := monitoring.Prefixed("[target]")
	orchestrator, err := replan.New(cfg.ReplanningConfig(), selector, func(t replan.TargetPose) {
		publishLogf("commanded pose %+v yaw %.2f", t.Position, t.Yaw)
	})
	if err != nil {
		log.Fatalf("failed to create orchestrator: %v", err)
	}
	orchestrator.OnReplan(func(ev replan.ReplanEvent) {
		rec := missionlog.ReplanRecord{
			Reason:            string(ev.Reason),
			Previous:          ev.Previous.Position,
			Next:              ev.Next.Position,
			NextYaw:           ev.Next.Yaw,
			PositionDeviation: ev.PositionDeviation,
			YawDeviationDeg:   ev.YawDeviationDeg,
			Elapsed:           ev.Elapsed,
		}
		if err := store.RecordReplan(rec); err != nil {
			monitoring.Logf("failed to record replan: %v", err)
		}
	})

	server, err := api.NewWebServer(api.WebServerConfig{
		Address:      cfg.Server.Address,
		Orchestrator: orchestrator,
		Registry:     registry,
		Store:        store,
	})
	if err != nil {
		log.Fatalf("failed to create web server: %v", err)
	}

	plotter := api.NewFrontierPlotter()
	if *plotDir != "" {
		if err := plotter.Start(*plotDir); err != nil {
			log.Fatalf("failed to start frontier plotter: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(ctx)
	})

	// Periodically synchronize frontiers with the map, then record the
	// census to the mission log and the plotter.
	g.Go(func() error {
		ticker := time.NewTicker(*statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if pose, ok := orchestrator.CurrentPose(); ok {
					registry.RefreshFromMap(voxelMap, pose.Position)
				}
				plotter.Sample(registry)
				voxelsBySubmap := make(map[explore.SubmapID]int)
				for _, v := range registry.ActiveFrontiers() {
					voxelsBySubmap[v.Ref.Submap] += v.Size
				}
				for _, id := range registry.SubmapIDs() {
					count := registry.SubmapFrontierCount(id)
					if err := store.RecordFrontierStats(id, count, voxelsBySubmap[id]); err != nil {
						monitoring.Logf("failed to record frontier stats: %v", err)
					}
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("daemon error: %v", err)
	}

	if *plotDir != "" {
		plotter.Stop()
		if err := plotter.GeneratePlots(); err != nil {
			monitoring.Logf("failed to generate plots: %v", err)
		}
	}
	monitoring.Logf("graceful shutdown complete")
}
