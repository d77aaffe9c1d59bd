package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"autouplift/internal/automl"
	"autouplift/internal/config"
	"autouplift/internal/dataset"
	"autouplift/internal/logger"
	"autouplift/internal/monitor"
	"autouplift/internal/uplift"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Configuration file path (YAML)")
		dataFile     = flag.String("data", "", "Training data file path (CSV with header)")
		targetCol    = flag.String("target", "target", "Target column name")
		treatmentCol = flag.String("treatment", "treatment", "Treatment column name")
		logLevel     = flag.String("log-level", "", "Log level override (trace, debug, info, warn, error)")
	)
	flag.Parse()

	if *dataFile == "" {
		flag.Usage()
		log.Fatal("missing required -data flag")
	}

	// .env is optional; environment overrides still apply without it
	_ = godotenv.Load()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = logger.LogLevel(*logLevel)
	}
	logger.Init(cfg.Logging)
	lg := logger.GetGlobalLogger()

	metrics := monitor.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		lg.Warn("failed to register metrics", "error", err.Error())
	}

	searchCfg, err := buildSearchConfig(cfg)
	if err != nil {
		lg.Fatal("invalid search configuration", "error", err.Error())
	}

	data, err := dataset.LoadCSV(*dataFile)
	if err != nil {
		lg.Fatal("failed to load training data", "path", *dataFile, "error", err.Error())
	}
	roles := dataset.Roles{
		dataset.RoleTarget:    *targetCol,
		dataset.RoleTreatment: *treatmentCol,
	}
	lg.Info("training data loaded",
		"path", *dataFile, "rows", data.Len(), "columns", len(data.Columns()))

	search, err := uplift.NewAutoUpliftTX(searchCfg, lg, metrics)
	if err != nil {
		lg.Fatal("failed to create uplift search", "error", err.Error())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := search.Fit(ctx, data, roles); err != nil {
		lg.Fatal("uplift search failed", "error", err.Error())
	}

	printResults(search)
}

// buildSearchConfig maps the file configuration onto the search config
func buildSearchConfig(cfg *config.Config) (uplift.Config, error) {
	out := uplift.DefaultConfig()
	out.Metric = cfg.Search.Metric
	out.NormedMetric = cfg.Search.NormedMetric
	out.IncreasingMetric = cfg.Search.IncreasingMetric
	out.TestSize = cfg.Search.TestSize
	out.Seed = cfg.Search.Seed
	out.Level2Burst = cfg.Search.Level2Burst
	out.BaseTask = automlTask(cfg.Search.BaseTask)

	if cfg.Search.TimeoutSeconds > 0 {
		out.Timeout = time.Duration(cfg.Search.TimeoutSeconds) * time.Second
	} else {
		out.Timeout = -1
	}
	if cfg.Search.LearnerTimeout > 0 {
		out.LearnerTimeout = time.Duration(cfg.Search.LearnerTimeout) * time.Second
	}

	if len(cfg.Search.Strategies) > 0 {
		strategies := make([]uplift.StrategyKind, 0, len(cfg.Search.Strategies))
		for _, name := range cfg.Search.Strategies {
			strategy, err := uplift.ParseStrategy(name)
			if err != nil {
				return uplift.Config{}, err
			}
			strategies = append(strategies, strategy)
		}
		out.Strategies = strategies
	}
	return out, nil
}

func printResults(search *uplift.AutoUpliftTX) {
	completed, total, exceeded := search.Completed()
	fmt.Printf("Stage trainings: %d/%d", completed, total)
	if exceeded {
		fmt.Printf(" (time budget exceeded)")
	}
	fmt.Println()

	rating, err := search.Rating()
	if err != nil {
		log.Fatalf("Failed to build rating: %v", err)
	}
	fmt.Println("\nStrategy rating:")
	for _, row := range rating {
		fmt.Printf("  %2d. %-8s %-90s %.6f\n", row.Rank, row.Strategy, row.Assignment, row.Score)
	}

	best, err := search.Best()
	if err != nil {
		log.Fatalf("Failed to get best strategy: %v", err)
	}
	fmt.Printf("\nBest strategy: %s (%s) score=%.6f\n",
		best.Strategy, best.AssignmentKey(), best.Score)
}

// automlTask maps the config task name onto the learner task
func automlTask(name string) automl.Task {
	if name == "reg" {
		return automl.TaskReg
	}
	return automl.TaskBinary
}
