package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-scout/internal/config"
	"github.com/sells-group/lead-scout/internal/resilience"
)

// Exit codes.
const (
	exitError  = 1
	exitConfig = 2
)

var (
	cfg        *config.Config
	configPath string
)

// errRunFailed marks a run that completed with status failed.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "lead-scout",
	Short: "Adaptive lead discovery for German sales contacts",
	Long: "Searches the web with adaptive dorks, extracts and validates contact data, " +
		"scores leads and adjusts its throughput with the Wasserfall mode manager.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if resilience.IsConfiguration(err) {
		return exitConfig
	}
	return exitError
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}
