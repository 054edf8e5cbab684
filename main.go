// Package main provides the entry point for the synthline station player.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/kolradio/synthline/internal/catalog"
	"github.com/kolradio/synthline/synth"
	"github.com/kolradio/synthline/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	volume     float64
	muted      bool
	sampleRate int

	rootCmd = &cobra.Command{
		Use:   "synthline",
		Short: "Procedural radio on the CLI",
		Long: paragraph(
			fmt.Sprintf("\nRun the station player. Every track is %s from its catalog metadata; the same entry always sounds the same.", keyword("synthesized live")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(_ *cobra.Command) error {
	// grab config values from Viper
	volume = clamp01(viper.GetFloat64("volume"))
	muted = viper.GetBool("mute")
	sampleRate = viper.GetInt("sample_rate")

	if sampleRate != 44100 && sampleRate != 48000 {
		return fmt.Errorf("sample_rate must be 44100 or 48000, got %d", sampleRate)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func execute(*cobra.Command, []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the player needs a terminal; try %s for non-interactive use", keyword("synthline render"))
	}
	return runTUI()
}

// feedStart is the simulated scheduler start timestamp: the rotation is
// pinned to the top of the current UTC day, so two players started on the
// same day agree about what is on air.
func feedStart() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func reloadConfig() (float64, bool, error) {
	if err := viper.ReadInConfig(); err != nil {
		return 0, false, fmt.Errorf("unable to re-read config: %w", err)
	}
	return clamp01(viper.GetFloat64("volume")), viper.GetBool("mute"), nil
}

func runTUI() error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Volume = volume
	cfg.Muted = muted
	cfg.ConfigPath = viper.ConfigFileUsed()
	cfg.ReloadConfig = reloadConfig

	engine := synth.NewEngine(synth.Config{SampleRate: sampleRate})
	entries := catalog.Builtin()
	feed := catalog.NewFeed(entries, feedStart())

	return ui.Run(cfg, engine, feed, entries)
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().Float64Var(&volume, "volume", 1.0, "master volume, 0 to 1")
	rootCmd.PersistentFlags().BoolVar(&muted, "mute", false, "start muted")
	rootCmd.PersistentFlags().IntVar(&sampleRate, "sample-rate", 44100, "output sample rate (44100 or 48000)")

	// Config bindings
	_ = viper.BindPFlag("volume", rootCmd.PersistentFlags().Lookup("volume"))
	_ = viper.BindPFlag("mute", rootCmd.PersistentFlags().Lookup("mute"))
	_ = viper.BindPFlag("sample_rate", rootCmd.PersistentFlags().Lookup("sample-rate"))

	viper.SetDefault("volume", 1.0)
	viper.SetDefault("mute", false)
	viper.SetDefault("sample_rate", 44100)

	rootCmd.AddCommand(configCmd, manCmd, playCmd, renderCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "synthline")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "synthline")}, dirs...)
	}

	if c := os.Getenv("SYNTHLINE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("synthline")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("synthline")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "synthline.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
