package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dispatchsim/dispatchsim/internal/archive"
	"github.com/dispatchsim/dispatchsim/internal/cloudwriter"
	"github.com/dispatchsim/dispatchsim/internal/models"
	"github.com/dispatchsim/dispatchsim/internal/output"
	"github.com/dispatchsim/dispatchsim/internal/simulator"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "dispatchsim",
	Short: "Simulates a delivery network over a procedurally generated spatial graph",
	Long: `dispatchsim generates a connected spatial graph, spawns delivery orders
stochastically and moves drivers along precomputed shortest paths, tick by tick.
Snapshots stream to the console, local files, Kafka or Postgres; order history
can be archived as parquet locally or to S3.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := models.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return run(cfg)
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is examples/config.json)")

	rootCmd.Flags().Int64("seed", 42, "Random seed for graph synthesis and order arrivals")
	rootCmd.Flags().Int("num-nodes", 30, "Number of nodes in the generated graph")
	rootCmd.Flags().Int("num-edges", 60, "Target edge count (repaired upward if below the connectivity minimum)")
	rootCmd.Flags().Int("num-drivers", 5, "Number of drivers")
	rootCmd.Flags().String("distribution", models.DistributionUniform, "Node placement distribution: uniform or mixture")
	rootCmd.Flags().Float64("order-rate-min", models.DefaultOrderRateMin, "Minimum per-node order probability per tick")
	rootCmd.Flags().Float64("order-rate-max", models.DefaultOrderRateMax, "Maximum per-node order probability per tick")
	rootCmd.Flags().Int("max-pending-orders", models.DefaultMaxPendingObs, "Pending orders exposed in the observation vector")
	rootCmd.Flags().Int("max-ticks", 0, "Number of ticks to run (0 runs until interrupted)")
	rootCmd.Flags().Duration("tick-interval", models.DefaultTickInterval, "Wall-clock interval between ticks in continuous mode")
	rootCmd.Flags().Bool("auto-assign", false, "Enable the greedy nearest-driver assignment policy")
	rootCmd.Flags().Bool("continuous", false, "Run the tick loop continuously instead of a fixed tick count")
	rootCmd.Flags().Bool("kafka-enabled", false, "Publish snapshots to Kafka")
	rootCmd.Flags().String("kafka-broker-list", "localhost:9092", "Kafka broker list")
	rootCmd.Flags().Bool("postgres-enabled", false, "Persist snapshots and order history to Postgres")
	rootCmd.Flags().String("output-folder", "", "Write snapshots as JSON lines under this folder")
	rootCmd.Flags().String("archive-path", "", "Write the order history as a parquet file on exit")

	// bind each flag to its snake_case config key
	flagKeys := map[string]string{
		"seed":               "seed",
		"num-nodes":          "num_nodes",
		"num-edges":          "num_edges",
		"num-drivers":        "num_drivers",
		"distribution":       "distribution",
		"order-rate-min":     "order_rate_min",
		"order-rate-max":     "order_rate_max",
		"max-pending-orders": "max_pending_orders",
		"max-ticks":          "max_ticks",
		"tick-interval":      "tick_interval",
		"auto-assign":        "auto_assign",
		"continuous":         "continuous",
		"kafka-enabled":      "kafka_enabled",
		"kafka-broker-list":  "kafka_broker_list",
		"postgres-enabled":   "postgres_enabled",
		"output-folder":      "output_folder",
		"archive-path":       "archive_path",
	}
	for flag, key := range flagKeys {
		viper.BindPFlag(key, rootCmd.Flags().Lookup(flag))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func run(cfg *models.Config) error {
	start := time.Now()

	world, err := simulator.NewWorld(cfg)
	if err != nil {
		return fmt.Errorf("building world: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"run_id":  world.RunID(),
		"nodes":   cfg.NumNodes,
		"drivers": cfg.NumDrivers,
		"seed":    cfg.Seed,
	}).Info("world constructed")

	out, pg, err := buildOutput(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	var policy simulator.AssignmentPolicy
	if cfg.AutoAssign {
		policy = simulator.GreedyPolicy{}
	}
	runner := simulator.NewRunner(world, out, policy, cfg.TickInterval)

	if cfg.MaxTicks > 0 && !cfg.Continuous {
		bar := progressbar.Default(int64(cfg.MaxTicks))
		for i := 0; i < cfg.MaxTicks; i++ {
			runner.StepOnce()
			bar.Add(1)
		}
	} else {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runner.Start(ctx)
	}

	if err := archiveHistory(cfg, world, pg); err != nil {
		return err
	}

	stats := world.Stats()
	logrus.WithFields(logrus.Fields{
		"ticks":             world.CurrentTick(),
		"delivered":         stats.Delivered,
		"avg_delivery_time": stats.AvgDeliveryTime,
		"elapsed":           time.Since(start),
	}).Info("simulation finished")
	return nil
}

// buildOutput picks the snapshot sink; the Postgres handle is also
// returned separately so the order history can be archived through it.
func buildOutput(cfg *models.Config) (simulator.OutputDestination, *output.PostgresOutput, error) {
	switch {
	case cfg.KafkaEnabled:
		out, err := simulator.NewKafkaOutput(cfg)
		return out, nil, err
	case cfg.PostgresEnabled:
		pg, err := output.NewPostgresOutput(context.Background(), &cfg.Database)
		return pg, pg, err
	case cfg.OutputFolder != "":
		return simulator.NewJSONOutput(".", cfg.OutputFolder), nil, nil
	default:
		return &simulator.ConsoleOutput{}, nil, nil
	}
}

func archiveHistory(cfg *models.Config, world *simulator.World, pg *output.PostgresOutput) error {
	history := world.History()

	if pg != nil {
		if err := pg.ArchiveOrders(context.Background(), world.RunID(), history); err != nil {
			return err
		}
	}

	if cfg.ArchivePath == "" {
		return nil
	}
	if cfg.OutputDestination != "" && cfg.OutputDestination != "local" {
		factory, err := cloudwriter.NewS3WriterFactory(context.Background(), cfg.CloudStorage.Region)
		if err != nil {
			return err
		}
		return archive.WriteCloud(factory, cfg.CloudStorage.BucketName, cfg.ArchivePath, world.RunID(), history)
	}
	return archive.WriteLocal(cfg.ArchivePath, world.RunID(), history)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
