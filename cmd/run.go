// cmd/run.go
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ColonelBlimp/cwtrainer/internal/audio"
	"github.com/ColonelBlimp/cwtrainer/internal/config"
	"github.com/ColonelBlimp/cwtrainer/internal/cw"
	"github.com/ColonelBlimp/cwtrainer/internal/drill"
	"github.com/ColonelBlimp/cwtrainer/internal/score"
	"github.com/ColonelBlimp/cwtrainer/internal/session"
	"github.com/spf13/cobra"
)

var ErrInvalidPair = errors.New("invalid character pair")

// parsePair parses a two-character pair such as "H,5" or "H5". Both
// members must be distinct supported Morse characters.
func parsePair(s string) ([2]rune, error) {
	var pair [2]rune
	cleaned := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	runes := []rune(cleaned)
	if len(runes) != 2 {
		return pair, fmt.Errorf("%w: %q (want two characters, e.g. H,5)", ErrInvalidPair, s)
	}
	if runes[0] == runes[1] {
		return pair, fmt.Errorf("%w: %q (members must differ)", ErrInvalidPair, s)
	}
	for _, r := range runes {
		if !cw.Supported(r) {
			return pair, fmt.Errorf("%w: %q has no Morse encoding", ErrInvalidPair, r)
		}
	}
	pair[0], pair[1] = runes[0], runes[1]
	return pair, nil
}

// buildSpec assembles a drill spec for one mode from the resolved settings.
func buildSpec(mode drill.Mode, s *config.Settings) (drill.Spec, error) {
	pair, err := parsePair(s.ActivePair)
	if err != nil {
		return drill.Spec{}, err
	}
	spec := drill.Spec{
		Mode:          mode,
		Pair:          pair,
		WPM:           s.WPM,
		ToneHz:        s.ToneHz,
		JitterPct:     s.JitterPct,
		WPMJitter:     s.WPMJitter,
		ToneJitterHz:  s.ToneJitterHz,
		Stereo:        s.Stereo,
		PanStrength:   s.PanStrength,
		SwapChannels:  s.SwapChannels,
		LowWPM:        s.LowWPM,
		HighWPM:       s.HighWPM,
		TimingBalance: s.TimingBalance,
		OverspeedWPM:  s.OverspeedWPM,
		Gain:          s.Gain,
	}
	if err := spec.Validate(); err != nil {
		return drill.Spec{}, err
	}
	return spec, nil
}

// scored reports whether a mode ends with a typed-copy scoring prompt.
func scored(mode drill.Mode) bool {
	return mode == drill.ModeContext || mode == drill.ModeOverspeed
}

// runDrill drives one session for the given mode: it resolves settings,
// opens the playback device, runs the session until it completes or is
// interrupted, and for the copy modes prompts for the typed copy and
// appends the score to the session log.
func runDrill(cmd *cobra.Command, mode drill.Mode) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}
	spec, err := buildSpec(mode, settings)
	if err != nil {
		return err
	}

	logPath := filepath.Join(settings.ResolvedLogDir(),
		fmt.Sprintf("session_%d.csv", time.Now().Unix()))

	audioCfg := audio.DefaultConfig()
	audioCfg.DeviceIndex = settings.DeviceIndex
	audioCfg.SampleRate = session.SampleRate
	out := audio.New(audioCfg)

	status := statusPrinter(cmd.OutOrStdout())

	runner, err := session.New(spec, logPath, out, status)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run() }()

	fmt.Fprintf(cmd.OutOrStdout(), "Pair %s, logging to %s. Ctrl-C to stop.\n",
		spec.PairString(), logPath)

	select {
	case <-sigCh:
		fmt.Fprintln(cmd.OutOrStdout(), "Stopping...")
		runner.Stop()
		if err := <-errCh; err != nil {
			return err
		}
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if scored(mode) {
		return promptAndScore(cmd, runner, logPath, spec)
	}
	return nil
}

// statusPrinter adapts session status lines for the terminal. The
// completion sentinel is a machine-readable trigger, not user text, so it
// is translated rather than echoed.
func statusPrinter(w io.Writer) session.StatusFunc {
	return func(msg string) {
		if msg == session.StatusComplete {
			fmt.Fprintln(w, "Session complete.")
			return
		}
		fmt.Fprintln(w, msg)
	}
}

// promptAndScore reads the typed copy from stdin, scores it against the
// lines the session actually played and appends the result to the log.
func promptAndScore(cmd *cobra.Command, runner *session.Runner, logPath string, spec drill.Spec) error {
	sent := runner.SentLines()
	if len(sent) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing was played; no score.")
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), "Type everything you copied, then press Enter: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	typed, err := reader.ReadString('\n')
	if err != nil && typed == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No copy entered; no score.")
		return nil
	}

	res := score.Compare(sent, typed)
	if err := score.AppendMetrics(logPath, spec.Mode, spec.PairString(), res); err != nil {
		return fmt.Errorf("append metrics: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Sent %d characters, edit distance %d, accuracy %.2f%%\n",
		res.CharsTotal, res.Distance, res.AccuracyPct)
	return nil
}
