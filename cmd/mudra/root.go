package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
)

const version = "dev"

var (
	verbose    bool
	configFile string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mudra",
	Short: "Gesture-driven air drawing board",
	Long: `Mudra turns a webcam into a drawing board: point one finger to draw,
open the palm to erase and raise two fingers to preview a shape.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "INI file (default ~/.mudra/mudra.ini)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		var err error
		if path, err = config.DefaultFile(); err != nil {
			return err
		}
	}

	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if verbose {
		c.Verbose = true
	}
	if c.Verbose {
		log.SetLevel(log.DebugLevel)
	}
	cfg = c
	log.WithField("data_dir", cfg.DataDir).Debug("configuration loaded")
	return nil
}

func openStore() (*store.Store, error) {
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

// findWebDir returns the viewer's static directory: the configured one, then
// "web" relative to the working directory, then <data dir>/web.
func findWebDir() string {
	candidates := []string{cfg.StaticDir, "web", "../web", "../../web", filepath.Join(cfg.DataDir, "web")}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
