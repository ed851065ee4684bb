// Package cmd wires the CLI surface: flag parsing, config and logger
// bootstrap, and the convert and history subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DawnLiExp/Me2Comic-sub000/config"
	"github.com/DawnLiExp/Me2Comic-sub000/internal/logger"
)

var (
	cfgFile string
	verbose bool

	log     *zap.Logger
	manager *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "me2comic",
	Short: "Batch comic page converter",
	Long: `Me2Comic converts manga and comic page scans for e-readers.

It scans an input directory tree, splits double-page spreads, resizes
pages to a target height and streams the work to GraphicsMagick in
large batches. Wide directories are processed with priority so the
most expensive work starts first.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Keep cobra's own output on stderr so stdout stays clean.
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.me2comic.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() {
	var err error
	log, err = logger.New(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	manager, err = config.NewManager(cfgFile, log)
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}
	manager.EnableHotReload()
}
