// internal/synth/synth.go
// Package synth generates stereo Morse audio buffers from text.
package synth

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/ColonelBlimp/cwtrainer/internal/cw"
)

const (
	// RampSeconds is the cosine fade applied to both ends of every tone
	// segment to suppress key clicks.
	RampSeconds = 0.005
	// FallbackSilenceSeconds is the length of the silence buffer returned
	// for empty or fully-unsupported input.
	FallbackSilenceSeconds = 0.1
	// Channels is the number of interleaved output channels.
	Channels = 2
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidWPM indicates WPM must be positive
	ErrInvalidWPM = errors.New("WPM must be positive")
	// ErrInvalidToneHz indicates tone frequency must be positive and below Nyquist
	ErrInvalidToneHz = errors.New("tone frequency must be positive and less than Nyquist frequency")
	// ErrInvalidPanStrength indicates pan strength must be between 0 and 1
	ErrInvalidPanStrength = errors.New("pan strength must be between 0.0 and 1.0")
	// ErrInvalidPair indicates a stereo pair must be two distinct supported symbols
	ErrInvalidPair = errors.New("stereo pair must be two distinct supported symbols")
	// ErrInvalidGain indicates gain must be between 0 and 1
	ErrInvalidGain = errors.New("gain must be between 0.0 and 1.0")
)

// Config holds the per-block synthesizer configuration. All fields are
// required; a Config is validated once by New and treated as immutable.
type Config struct {
	// SampleRate is the output sample rate in Hz
	SampleRate int
	// WPM is the effective words-per-minute for this block
	WPM float64
	// ToneHz is the carrier frequency in Hz
	ToneHz float64
	// JitterPct applies +/- percentage jitter to every element duration
	JitterPct float64
	// ToneJitterHz shifts the carrier by a uniform +/- draw, once per symbol
	ToneJitterHz float64
	// StereoPair holds the two symbols under training, or empty for mono.
	// The first member leans left, the second right (unless swapped).
	StereoPair string
	// PanStrength controls how far pair members lean from center (0-1)
	PanStrength float64
	// SwapChannels mirrors the pair panning left<->right
	SwapChannels bool
	// Gain scales the final output amplitude (0-1)
	Gain float64
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.WPM <= 0 {
		errs = append(errs, ErrInvalidWPM)
	}
	if c.ToneHz <= 0 || (c.SampleRate > 0 && c.ToneHz >= float64(c.SampleRate)/2) {
		errs = append(errs, ErrInvalidToneHz)
	}
	if c.PanStrength < 0 || c.PanStrength > 1 {
		errs = append(errs, ErrInvalidPanStrength)
	}
	if c.Gain < 0 || c.Gain > 1 {
		errs = append(errs, ErrInvalidGain)
	}
	if c.StereoPair != "" {
		pair := []rune(c.StereoPair)
		if len(pair) != 2 || pair[0] == pair[1] ||
			!cw.Supported(pair[0]) || !cw.Supported(pair[1]) {
			errs = append(errs, ErrInvalidPair)
		}
	}
	return errors.Join(errs...)
}

// unit is one element of a symbol: a tone or an intra-character silence.
type unit struct {
	tone    bool
	seconds float64
}

// Synth generates interleaved stereo float32 buffers for symbols and
// strings of text according to its Config.
type Synth struct {
	cfg Config
	rng *rand.Rand
}

// New creates a synthesizer. The RNG drives duration and frequency jitter;
// pass a seeded source for reproducible output.
func New(cfg Config, rng *rand.Rand) (*Synth, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synth{cfg: cfg, rng: rng}, nil
}

// Config returns the synthesizer configuration (for testing and inspection)
func (s *Synth) Config() Config {
	return s.cfg
}

func (s *Synth) jitter(base float64) float64 {
	return cw.Jitter(s.rng, base, s.cfg.JitterPct)
}

// symbolUnits converts a symbol into its alternating tone/silence units.
// Tone durations are jittered dit/dah lengths, inter-element silences are
// jittered dits. There is no trailing silence after the last element.
func (s *Synth) symbolUnits(symbol rune) []unit {
	code := cw.Code[cw.Upper(symbol)]
	if code == "" {
		return nil
	}
	dit := cw.DitSeconds(s.cfg.WPM)
	units := make([]unit, 0, 2*len(code)-1)
	for i, el := range code {
		dur := dit
		if el == '-' {
			dur = cw.DahDitRatio * dit
		}
		units = append(units, unit{tone: true, seconds: s.jitter(dur)})
		if i != len(code)-1 {
			units = append(units, unit{seconds: s.jitter(cw.IntraCharGapRatio * dit)})
		}
	}
	return units
}

func (s *Synth) charGap() float64 {
	return s.jitter(cw.InterCharGapRatio * cw.DitSeconds(s.cfg.WPM))
}

func (s *Synth) wordGap() float64 {
	return s.jitter(cw.WordGapRatio * cw.DitSeconds(s.cfg.WPM))
}

// frames returns the frame count for a duration, at least one frame.
func (s *Synth) frames(seconds float64) int {
	n := int(seconds * float64(s.cfg.SampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

// tone synthesizes an interleaved stereo sine tone with cosine fade-in and
// fade-out and per-channel pan gains, scaled by the configured gain.
func (s *Synth) tone(seconds, freq, left, right float64) []float32 {
	sr := float64(s.cfg.SampleRate)
	n := s.frames(seconds)

	ramp := int(RampSeconds * sr)
	if ramp < 1 {
		ramp = 1
	}
	if ramp > n {
		ramp = n
	}

	buf := make([]float32, n*Channels)
	omega := 2 * math.Pi * freq / sr
	for i := 0; i < n; i++ {
		sig := math.Sin(omega * float64(i))
		if i < ramp {
			sig *= envRamp(i, ramp)
		}
		if i >= n-ramp {
			sig *= envRamp(n-1-i, ramp)
		}
		sig *= s.cfg.Gain
		buf[2*i] = float32(sig * left)
		buf[2*i+1] = float32(sig * right)
	}
	return buf
}

// envRamp is the cosine fade value for ramp position i of length n,
// rising from near zero to near one.
func envRamp(i, n int) float64 {
	return 0.5 * (1 - math.Cos(math.Pi*float64(i+1)/float64(n+1)))
}

// silence returns an interleaved stereo buffer of zeros, at least one frame.
func (s *Synth) silence(seconds float64) []float32 {
	return make([]float32, s.frames(seconds)*Channels)
}

// panFor returns the left/right gain multipliers for a symbol. Members of
// the active stereo pair lean toward opposite channels by PanStrength;
// everything else is centered at unity.
func (s *Synth) panFor(symbol rune) (left, right float64) {
	if s.cfg.StereoPair == "" {
		return 1, 1
	}
	pair := []rune(s.cfg.StereoPair)
	sym := cw.Upper(symbol)
	a, b := cw.Upper(pair[0]), cw.Upper(pair[1])
	if sym != a && sym != b {
		return 1, 1
	}

	strength := s.cfg.PanStrength
	if sym == a {
		left, right = 1, 1-strength
	} else {
		left, right = 1-strength, 1
	}
	if s.cfg.SwapChannels {
		left, right = right, left
	}
	return left, right
}

// SymbolAudio builds the stereo buffer for a single symbol. The carrier
// frequency jitter is drawn once and applied to every tone segment of the
// symbol. Unknown symbols yield the fallback silence buffer.
func (s *Synth) SymbolAudio(symbol rune) []float32 {
	freq := s.cfg.ToneHz
	if s.cfg.ToneJitterHz > 0 {
		freq += (s.rng.Float64()*2 - 1) * s.cfg.ToneJitterHz
	}
	units := s.symbolUnits(symbol)
	if len(units) == 0 {
		return s.silence(FallbackSilenceSeconds)
	}
	left, right := s.panFor(symbol)
	var buf []float32
	for _, u := range units {
		if u.tone {
			buf = append(buf, s.tone(u.seconds, freq, left, right)...)
		} else {
			buf = append(buf, s.silence(u.seconds)...)
		}
	}
	return buf
}

// StringAudio concatenates symbol audio for a text string. Spaces produce
// a word gap, unsupported symbols are skipped outright, and every other
// symbol is followed by a character gap unless it ends the string or the
// next symbol is a space. Empty or fully-unsupported input yields the
// fallback silence buffer, never an empty one.
func (s *Synth) StringAudio(text string) []float32 {
	runes := []rune(text)
	var buf []float32
	for i, ch := range runes {
		if ch == ' ' {
			buf = append(buf, s.silence(s.wordGap())...)
			continue
		}
		if !cw.Supported(ch) {
			continue
		}
		buf = append(buf, s.SymbolAudio(ch)...)
		if i != len(runes)-1 && runes[i+1] != ' ' {
			buf = append(buf, s.silence(s.charGap())...)
		}
	}
	if len(buf) == 0 {
		return s.silence(FallbackSilenceSeconds)
	}
	return buf
}
