// cmd/contrast.go
package cmd

import (
	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/spf13/cobra"
)

var contrastCmd = &cobra.Command{
	Use:   "contrast",
	Short: "Copy short dense pair lines at normal speed",
	Long: `Plays a fixed catalog of short lines built almost entirely from the
two pair members, four passes at the nominal WPM. Copy on paper;
accuracy over speed. Every line is logged to the session CSV.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(cmd, drill.ModeContrast)
	},
}

func init() {
	rootCmd.AddCommand(contrastCmd)
}
