// cmd/reanchor.go
package cmd

import (
	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reanchorCmd = &cobra.Command{
	Use:   "reanchor",
	Short: "Alternate slow and fast blocks of the repeating pair pattern",
	Long: `Plays the two-symbol pattern (e.g. H5H5H5...) in alternating blocks,
one slow and one fast, for two minutes. Listen for the rhythm contrast;
no copying is expected and no score is produced.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(cmd, drill.ModeReanchor)
	},
}

func init() {
	reanchorCmd.Flags().Float64("low-wpm", 12, "slow block WPM")
	reanchorCmd.Flags().Float64("high-wpm", 36, "fast block WPM")
	reanchorCmd.Flags().Float64("balance", 1.0, "block sizing: 0=equal characters, 1=equal time")

	viper.BindPFlag("low_wpm", reanchorCmd.Flags().Lookup("low-wpm"))
	viper.BindPFlag("high_wpm", reanchorCmd.Flags().Lookup("high-wpm"))
	viper.BindPFlag("timing_balance", reanchorCmd.Flags().Lookup("balance"))

	rootCmd.AddCommand(reanchorCmd)
}
