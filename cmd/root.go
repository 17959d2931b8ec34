// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/ColonelBlimp/cwtrainer/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "cwtrainer",
	Short: "Audio drills for confusable Morse character pairs",
	Long: `A CW trainer that plays precisely timed audio drills for a pair of
confusable Morse characters. Four modes are available: reanchor,
contrast, context and overspeed. Session events are logged to CSV and
the copy-based modes are scored on stop.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().StringP("pair", "p", "H,5", "character pair under training, e.g. H,5")
	rootCmd.PersistentFlags().Float64P("wpm", "w", 25, "nominal words per minute")
	rootCmd.PersistentFlags().Float64P("tone", "t", 650, "carrier frequency in Hz")
	rootCmd.PersistentFlags().IntP("device", "d", -1, "playback device index (-1 for default)")
	rootCmd.PersistentFlags().Float64("jitter", 0, "element duration jitter fraction (0-0.5)")
	rootCmd.PersistentFlags().Float64("wpm-jitter", 0, "per-block WPM jitter")
	rootCmd.PersistentFlags().Float64("tone-jitter", 0, "per-symbol carrier jitter in Hz")
	rootCmd.PersistentFlags().Bool("stereo", false, "pan the pair members apart (reanchor/contrast)")
	rootCmd.PersistentFlags().Float64("pan", 1.0, "stereo separation (0-1)")
	rootCmd.PersistentFlags().Bool("swap", false, "swap left/right ears")
	rootCmd.PersistentFlags().String("log-dir", "", "session log directory")

	// Bind flags to viper
	viper.BindPFlag("active_pair", rootCmd.PersistentFlags().Lookup("pair"))
	viper.BindPFlag("wpm", rootCmd.PersistentFlags().Lookup("wpm"))
	viper.BindPFlag("tone_hz", rootCmd.PersistentFlags().Lookup("tone"))
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("jitter_pct", rootCmd.PersistentFlags().Lookup("jitter"))
	viper.BindPFlag("wpm_jitter", rootCmd.PersistentFlags().Lookup("wpm-jitter"))
	viper.BindPFlag("tone_jitter_hz", rootCmd.PersistentFlags().Lookup("tone-jitter"))
	viper.BindPFlag("stereo", rootCmd.PersistentFlags().Lookup("stereo"))
	viper.BindPFlag("pan_strength", rootCmd.PersistentFlags().Lookup("pan"))
	viper.BindPFlag("swap_channels", rootCmd.PersistentFlags().Lookup("swap"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}
