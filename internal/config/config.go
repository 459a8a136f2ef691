package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries every constant an engine needs, resolved once at startup.
// Engines receive it at construction; nothing reads the environment later,
// so independent runs never share state.
type Config struct {
	DatabaseURL string

	DemandPath   string
	ClustersPath string
	ForecastPath string
	ResultsDir   string

	BusCapacity  int
	KmCost       float64
	DispatchCost float64
	MaxWaitMin   int
	AvgSpeedKmph float64

	FleetSize           int
	DispatchIntervalMin int

	HorizonSec    int64
	StaticTotalKm float64 // audit override for baseline mileage; 0 computes from the timetable
	SampleSize    int

	NATSURL     string
	MetricsAddr string
}

// Load reads .env (ignored if missing) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.DemandPath = getenvDefault("DEMAND_PATH", "data/raw/passenger_demand.csv")
	cfg.ClustersPath = getenvDefault("CLUSTERS_PATH", "data/raw/stop_clusters.csv")
	cfg.ForecastPath = getenvDefault("FORECAST_PATH", "data/processed/cluster_forecasts.csv")
	cfg.ResultsDir = getenvDefault("RESULTS_DIR", "data/processed")

	var err error
	if cfg.BusCapacity, err = envInt("BUS_CAPACITY", 60); err != nil {
		return nil, err
	}
	if cfg.KmCost, err = envFloat("KM_COST", 116.26); err != nil {
		return nil, err
	}
	if cfg.DispatchCost, err = envFloat("DISPATCH_COST", 0); err != nil {
		return nil, err
	}
	if cfg.MaxWaitMin, err = envInt("MAX_WAIT_MIN", 45); err != nil {
		return nil, err
	}
	if cfg.AvgSpeedKmph, err = envFloat("AVG_SPEED_KMPH", 18); err != nil {
		return nil, err
	}
	if cfg.FleetSize, err = envInt("FLEET_SIZE", 40); err != nil {
		return nil, err
	}
	if cfg.DispatchIntervalMin, err = envInt("DISPATCH_INTERVAL_MIN", 30); err != nil {
		return nil, err
	}
	horizon, err := envInt("HORIZON_SEC", 27*60*60) // one service day plus a drain buffer
	if err != nil {
		return nil, err
	}
	cfg.HorizonSec = int64(horizon)
	if cfg.StaticTotalKm, err = envFloat("STATIC_TOTAL_KM", 0); err != nil {
		return nil, err
	}
	if cfg.SampleSize, err = envInt("SAMPLE_SIZE", 0); err != nil {
		return nil, err
	}

	if cfg.BusCapacity <= 0 {
		return nil, errors.New("BUS_CAPACITY must be positive")
	}
	if cfg.FleetSize <= 0 {
		return nil, errors.New("FLEET_SIZE must be positive")
	}
	if cfg.DispatchIntervalMin <= 0 {
		return nil, errors.New("DISPATCH_INTERVAL_MIN must be positive")
	}
	if cfg.HorizonSec <= 0 {
		return nil, errors.New("HORIZON_SEC must be positive")
	}
	if cfg.AvgSpeedKmph <= 0 {
		return nil, errors.New("AVG_SPEED_KMPH must be positive")
	}

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return n, nil
}

func envFloat(k string, def float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
