// internal/drill/drill.go
// Package drill defines drill session specifications and the text
// patterns played in each mode.
package drill

import (
	"errors"
	"fmt"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

// Mode selects one of the four drill behaviors.
type Mode string

const (
	// ModeReanchor alternates the same pattern at a low and a high WPM
	ModeReanchor Mode = "reanchor"
	// ModeContrast plays the fixed dense pair catalog at nominal WPM
	ModeContrast Mode = "contrast"
	// ModeContext plays generated call-like lines for copy practice
	ModeContext Mode = "context"
	// ModeOverspeed plays the pair catalog above comfortable copy speed
	ModeOverspeed Mode = "overspeed"
)

var (
	// ErrInvalidMode indicates an unknown drill mode
	ErrInvalidMode = errors.New("unknown drill mode")
	// ErrInvalidPair indicates the pair must be two distinct supported symbols
	ErrInvalidPair = errors.New("pair must be two distinct symbols from the supported alphabet")
	// ErrInvalidWPM indicates WPM values must be positive
	ErrInvalidWPM = errors.New("WPM must be positive")
	// ErrInvalidPanStrength indicates pan strength must be between 0 and 1
	ErrInvalidPanStrength = errors.New("pan strength must be between 0.0 and 1.0")
	// ErrInvalidBalance indicates timing balance must be between 0 and 1
	ErrInvalidBalance = errors.New("timing balance must be between 0.0 and 1.0")
	// ErrInvalidGain indicates gain must be between 0 and 1
	ErrInvalidGain = errors.New("gain must be between 0.0 and 1.0")
)

// Spec holds the immutable parameters of one drill session. A Spec is
// validated once before the session starts and read-only thereafter.
type Spec struct {
	// Mode is the drill behavior to run
	Mode Mode
	// Pair is the confusable character pair under training
	Pair [2]rune
	// WPM is the nominal words-per-minute (contrast/context)
	WPM float64
	// ToneHz is the carrier frequency in Hz
	ToneHz float64
	// JitterPct applies +/- percentage jitter to element durations
	JitterPct float64
	// WPMJitter shifts the block WPM by a uniform +/- draw per block
	WPMJitter float64
	// ToneJitterHz shifts the carrier by a uniform +/- draw per symbol
	ToneJitterHz float64
	// Stereo enables pair panning (honored in reanchor/contrast only)
	Stereo bool
	// PanStrength controls stereo separation (0-1)
	PanStrength float64
	// SwapChannels mirrors the pair panning left<->right
	SwapChannels bool
	// LowWPM and HighWPM are the reanchor block speeds
	LowWPM  float64
	HighWPM float64
	// TimingBalance steers reanchor block sizing: 0 = equal character
	// counts, 1 = equal wall-clock time per block (0-1)
	TimingBalance float64
	// OverspeedWPM is the overspeed block speed
	OverspeedWPM float64
	// Gain scales the output amplitude (0-1)
	Gain float64
}

// Validate checks the spec before a session is constructed from it.
func (s Spec) Validate() error {
	var errs []error

	switch s.Mode {
	case ModeReanchor, ModeContrast, ModeContext, ModeOverspeed:
	default:
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMode, s.Mode))
	}

	if s.Pair[0] == s.Pair[1] || !cw.Supported(s.Pair[0]) || !cw.Supported(s.Pair[1]) {
		errs = append(errs, ErrInvalidPair)
	}
	if s.WPM <= 0 {
		errs = append(errs, fmt.Errorf("%w: wpm %v", ErrInvalidWPM, s.WPM))
	}
	if s.Mode == ModeReanchor && (s.LowWPM <= 0 || s.HighWPM <= 0) {
		errs = append(errs, fmt.Errorf("%w: low %v high %v", ErrInvalidWPM, s.LowWPM, s.HighWPM))
	}
	if s.Mode == ModeOverspeed && s.OverspeedWPM <= 0 {
		errs = append(errs, fmt.Errorf("%w: overspeed %v", ErrInvalidWPM, s.OverspeedWPM))
	}
	if s.PanStrength < 0 || s.PanStrength > 1 {
		errs = append(errs, ErrInvalidPanStrength)
	}
	if s.TimingBalance < 0 || s.TimingBalance > 1 {
		errs = append(errs, ErrInvalidBalance)
	}
	if s.Gain < 0 || s.Gain > 1 {
		errs = append(errs, ErrInvalidGain)
	}

	return errors.Join(errs...)
}

// PairString returns the normalized two-character pair, e.g. "H5".
func (s Spec) PairString() string {
	return string([]rune{cw.Upper(s.Pair[0]), cw.Upper(s.Pair[1])})
}
