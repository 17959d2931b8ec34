// cmd/overspeed.go
package cmd

import (
	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var overspeedCmd = &cobra.Command{
	Use:   "overspeed",
	Short: "Copy pair catalog bursts above your comfortable speed",
	Long: `Plays the pair catalog round-robin above copy speed for two minutes.
Copy what you can; when the session ends you are prompted for your
typed copy and the Levenshtein score is appended to the log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(cmd, drill.ModeOverspeed)
	},
}

func init() {
	overspeedCmd.Flags().Float64("overspeed-wpm", 30, "burst WPM")
	viper.BindPFlag("overspeed_wpm", overspeedCmd.Flags().Lookup("overspeed-wpm"))

	rootCmd.AddCommand(overspeedCmd)
}
