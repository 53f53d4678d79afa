// Package cmd provides the fswatchbench command line.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Leantar/fswatchbench/bench"
	"github.com/Leantar/fswatchbench/modules/config"
	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/Leantar/fswatchbench/modules/watcher"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	backend    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "fswatchbench <directory> <mode>",
	Short: "Compare per-file and native recursive filesystem watching",
	Long: `fswatchbench measures how long it takes to watch a directory tree by
registering one watch per file versus a single native recursive watch.

Modes:
  manual           - Manually recursive: watch each file individually
  native           - Native recursive: use built-in recursive watching
  manual-filtered  - Manual with subset: watch only every Nth file
  native-filtered  - Native with filter: watch dir but filter events
  compare          - Compare manual vs native modes
  compare-filtered - Compare filtered manual vs filtered native

Test modes (with file modifications):
  test-manual      - Test manual watcher with file modifications
  test-native      - Test native watcher with file modifications
  test-filtered    - Test both filtered watchers
  test-all         - Run all watch tests`,
	Example: `  fswatchbench generate ./test-tree
  fswatchbench ./test-tree manual
  fswatchbench ./test-tree compare
  fswatchbench ./test-tree test-all`,
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBench,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Specify a path to load the config from")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", fmt.Sprintf("Notification backend %v", notifier.Names()))
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig layers defaults, the config file, the environment and flags.
// The default config file may be absent, an explicit one must exist.
func loadConfig(cmd *cobra.Command) (bench.Config, error) {
	conf := bench.DefaultConfig()

	load := config.FromOptionalYamlFile
	if cmd.Flags().Changed("config") {
		load = config.FromYamlFile
	}
	if err := load(configPath, &conf); err != nil {
		return conf, err
	}

	if err := config.FromEnv(bench.EnvPrefix, &conf); err != nil {
		return conf, err
	}

	if backend != "" {
		conf.Backend = backend
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}

	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config: %w", err)
	}

	return conf, setupLogging(conf.LogLevel)
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	return nil
}

func runBench(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dir, mode := args[0], args[1]

	err = bench.New(conf, cmd.OutOrStdout()).Run(dir, mode)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: first create a test directory:\n  fswatchbench generate %s\n\n", dir)
	case errors.Is(err, watcher.ErrUnknownMode):
		_ = cmd.Usage()
	}

	return err
}
