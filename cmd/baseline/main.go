package main

import (
	"context"
	"flag"
	"log"
	"time"

	"dispatchsim/internal/config"
	"dispatchsim/internal/db"
	"dispatchsim/internal/demand"
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
	visits, err := db.FetchScheduleVisits(ctx, sqlDB)
	if err != nil {
		log.Fatalf("fetch schedule error: %v", err)
	}
	if len(visits) == 0 {
		log.Fatalf("static schedule is empty; was the GTFS feed imported?")
	}

	trace, err := demand.LoadTrace(cfg.DemandPath, cfg.SampleSize)
	if err != nil {
		log.Fatalf("demand trace error: %v", err)
	}

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector("baseline")
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	net := network.New(stops, nil, cfg.AvgSpeedKmph)
	cost := sim.CostModel{
		BusCapacity:  cfg.BusCapacity,
		KmCost:       cfg.KmCost,
		DispatchCost: cfg.DispatchCost,
		MaxWaitSec:   int64(cfg.MaxWaitMin) * 60,
		AvgSpeedKmph: cfg.AvgSpeedKmph,
	}

	log.Printf("running baseline simulation for %d passengers over %d schedule visits", len(trace), len(visits))
	engine := sim.NewBaseline(cost, net, visits, cfg.HorizonSec, cfg.StaticTotalKm, mcol)
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
