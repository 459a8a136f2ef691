package main

import (
	"context"
	"flag"
	"log"
	"time"

	"dispatchsim/internal/config"
	"dispatchsim/internal/db"
	"dispatchsim/internal/demand"
	"dispatchsim/internal/forecast"
	"dispatchsim/internal/metrics"
	"dispatchsim/internal/network"
	"dispatchsim/internal/publisher"
	"dispatchsim/internal/report"
	"dispatchsim/internal/sim"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	flag.IntVar(&cfg.SampleSize, "sample-size", cfg.SampleSize, "simulate only the first N passengers (0 = full trace)")
	flag.Parse()

	ctx := context.Background()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open error: %v", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Fatalf("db ping error: %v", err)
	}

	stops, err := db.FetchStops(ctx, sqlDB)
	if err != nil {
		log.Fatalf("fetch stops error: %v", err)
	}
	edges, err := db.FetchTravelEdges(ctx, sqlDB)
	if err != nil {
		log.Fatalf("fetch travel edges error: %v", err)
	}

	trace, err := demand.LoadTrace(cfg.DemandPath, cfg.SampleSize)
	if err != nil {
		log.Fatalf("demand trace error: %v", err)
	}
	clusters, err := forecast.LoadAssignments(cfg.ClustersPath)
	if err != nil {
		log.Fatalf("cluster assignments error: %v", err)
	}
	table, err := forecast.LoadTable(cfg.ForecastPath)
	if err != nil {
		log.Fatalf("forecast table error: %v", err)
	}
	// A cluster with no trained model at all is a fatal input error;
	// per-interval gaps degrade gracefully inside the engine.
	covered := table.Clusters()
	for _, c := range clusters.Clusters() {
		if !covered[c] {
			log.Fatalf("forecast table has no model for cluster %d", c)
		}
	}

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector("dynamic")
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	net := network.New(stops, edges, cfg.AvgSpeedKmph)
	cost := sim.CostModel{
		BusCapacity:  cfg.BusCapacity,
		KmCost:       cfg.KmCost,
		DispatchCost: cfg.DispatchCost,
		MaxWaitSec:   int64(cfg.MaxWaitMin) * 60,
		AvgSpeedKmph: cfg.AvgSpeedKmph,
	}

	log.Printf("running dynamic simulation for %d passengers, fleet %d, %d clusters",
		len(trace), cfg.FleetSize, len(clusters.Clusters()))
	engine := sim.NewDynamic(cost, net, table, clusters,
		cfg.FleetSize, int64(cfg.DispatchIntervalMin)*60, cfg.HorizonSec, mcol)
	result := engine.Run(trace)
	result.Stamp(time.Now())

	// Console summary always comes first so a failed write loses nothing.
	report.Print(result)
	path, err := report.Write(cfg.ResultsDir, result)
	if err != nil {
		log.Fatalf("write result error: %v", err)
	}
	log.Printf("results saved to %s", path)

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			log.Printf("nats connect error: %v", err)
		} else {
			defer pub.Close()
			if err := pub.PublishResult(result); err != nil {
				log.Printf("nats publish error: %v", err)
			}
		}
	}
}
