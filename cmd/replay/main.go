package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lorancew-l/proto-testing-sub000/internal/logging"
	"github.com/lorancew-l/proto-testing-sub000/internal/model"
	"github.com/lorancew-l/proto-testing-sub000/internal/replay"
)

var (
	researchPath string
	scriptPath   string
	startTime    string
	sessionID    string
	verbose      bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a respondent intent script against a research definition",
	Long: `Runs the research engine offline with a fixed clock and sequential ids,
then prints the final session view and the delivered telemetry events as JSON.

Example:
  replay --research research.json --script intents.json`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "warn"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level, true)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runReplay,
}

func init() {
	rootCmd.Flags().StringVarP(&researchPath, "research", "r", "", "research definition JSON file")
	rootCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "intent script JSON file")
	rootCmd.Flags().StringVar(&startTime, "start", "2024-01-01T00:00:00Z", "clock start (RFC3339)")
	rootCmd.Flags().StringVar(&sessionID, "session", "replay", "session id stamped on events")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
	_ = rootCmd.MarkFlagRequired("research")
	_ = rootCmd.MarkFlagRequired("script")
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(researchPath)
	if err != nil {
		return fmt.Errorf("read research: %w", err)
	}
	research, err := model.ParseBootstrap(data)
	if err != nil {
		return err
	}

	data, err = os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	var script replay.Script
	if err := json.Unmarshal(data, &script); err != nil {
		return fmt.Errorf("decode script: %w", err)
	}

	start, err := time.Parse(time.RFC3339, startTime)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}

	res, err := replay.Run(context.Background(), research, script, replay.Options{
		Start:     start,
		SessionID: sessionID,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
