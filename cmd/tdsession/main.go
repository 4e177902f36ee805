// ABOUTME: Entry point for the tdsession command line tool
// ABOUTME: Wires the cobra command tree, signal handling and shared flags

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/tdsession/internal/config"
)

// Version is set at build time.
var version = "dev"

const banner = `
 _      _                   _
| |_ __| |___ ___ ___ ___ _(_)___ _ _
|  _/ _' (_-</ -_|_-<_-< / _ \ ' \
 \__\__,_/__/\___/__/__/_\___/_||_|
`

var (
	configPath  string
	profileName string
	remoteAddr  string
)

var rootCmd = &cobra.Command{
	Use:           "tdsession",
	Short:         "Run and inspect engine sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $TDSESSION_CONFIG or $XDG_CONFIG_HOME/tdsession/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile to use (default: default_profile from config)")
	rootCmd.PersistentFlags().StringVar(&remoteAddr, "remote", "", "use the engine of a bridge server at host:port")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(bridgeCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// resolvedConfigPath applies --config > TDSESSION_CONFIG > XDG default.
func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// loadConfig loads the config file. When optional is set and no --config was
// given, a missing default file yields an empty config.
func loadConfig(optional bool) (*config.Config, string, error) {
	path := resolvedConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		if optional && configPath == "" && errors.Is(err, fs.ErrNotExist) {
			return &config.Config{}, "", nil
		}
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func printBanner() {
	cyan := color.New(color.FgCyan)
	cyan.Fprint(os.Stderr, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(os.Stderr, "    version: %s\n\n", version)
}

// printInfo writes one "▶ label: value" startup line to stderr.
func printInfo(label, value string) {
	green := color.New(color.FgGreen)
	green.Fprint(os.Stderr, "    ▶ ")
	fmt.Fprintf(os.Stderr, "%-10s %s\n", label+":", value)
}
