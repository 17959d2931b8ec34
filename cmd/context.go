// cmd/context.go
package cmd

import (
	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Copy generated call-like lines containing the pair",
	Long: `Plays generated lines that embed both pair members in realistic
surroundings (callsign-like tokens with digits and letters), four
passes at the nominal WPM. When the session ends you are prompted for
your typed copy and the Levenshtein score is appended to the log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDrill(cmd, drill.ModeContext)
	},
}

func init() {
	rootCmd.AddCommand(contextCmd)
}
