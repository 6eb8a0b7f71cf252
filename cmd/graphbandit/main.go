package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/n0madic/go-graph-bandits/internal/config"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graphbandit",
		Short: "Graph-based linear bandit simulations",
		Long: `graphbandit compares linear contextual bandits that share evidence
between users through a similarity graph (GOB, LapUCB, SCLUB, CLUB, CoLin)
against independent per-user baselines (LinUCB, LinTS) on synthetic problems.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig loads the config named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Experiment, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured algorithms on synthetic problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg); err != nil {
				return err
			}

			logger, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			logger = logger.With().Str("run_id", runID).Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info().
				Strs("algorithms", cfg.Algorithms).
				Int("users", cfg.Problem.Users).
				Int("dim", cfg.Problem.Dim).
				Int("horizon", cfg.Problem.Horizon).
				Int("loops", cfg.Loops).
				Msg("starting experiment")

			curves, err := runExperiment(ctx, cfg, logger)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn().Msg("experiment interrupted")
				}
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(out, Report{RunID: runID, Config: cfg, Algorithms: curves})
			}
			return writeSummary(out, curves)
		},
	}

	cmd.Flags().Int("horizon", 0, "Override the number of rounds")
	cmd.Flags().Int("loops", 0, "Override the number of repetitions")
	cmd.Flags().Uint64("seed", 0, "Override the random seed")
	cmd.Flags().StringSlice("algorithms", nil, "Override the algorithms to run")
	return cmd
}

// applyRunFlags copies explicitly set flags over cfg and revalidates it.
func applyRunFlags(cmd *cobra.Command, cfg *config.Experiment) error {
	flags := cmd.Flags()
	if flags.Changed("horizon") {
		cfg.Problem.Horizon, _ = flags.GetInt("horizon")
	}
	if flags.Changed("loops") {
		cfg.Loops, _ = flags.GetInt("loops")
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("algorithms") {
		cfg.Algorithms, _ = flags.GetStringSlice("algorithms")
	}
	return cfg.Validate()
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "graphbandit version %s\n", version)
			return err
		},
	}
}

// newLogger builds the CLI logger. Console output is meant for terminals,
// json for log collectors.
func newLogger(cfg config.Logging, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}
