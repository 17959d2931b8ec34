// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "cwtrainer"
	ConfigType    = "yaml"
	DefaultConfig = `# CW Pair Trainer Configuration

# Audio output
device_index: -1        # -1 for default playback device
gain: 0.25              # Output gain (0.0-1.0)

# Pair and speed
active_pair: "H,5"      # Character pair under training
tone_hz: 650            # Carrier frequency in Hz
wpm: 25                 # Nominal words per minute (contrast/context)
low_wpm: 12             # Re-anchor slow block WPM
high_wpm: 36            # Re-anchor fast block WPM
overspeed_wpm: 30       # Overspeed block WPM
timing_balance: 1.0     # Re-anchor block sizing: 0=equal chars, 1=equal time

# Variation
jitter_pct: 0.0         # +/- percentage jitter on element durations
wpm_jitter: 0.0         # +/- WPM drawn per block
tone_jitter_hz: 0.0     # +/- Hz drawn per symbol

# Stereo pair training
stereo: false           # Pan the pair members apart (reanchor/contrast)
pan_strength: 1.0       # Stereo separation (0=mono, 1=hard left/right)
swap_channels: false    # Swap L/R ears

# Session logs
log_dir: ""             # Empty = <user config dir>/cwtrainer/logs
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio output
	DeviceIndex int     `mapstructure:"device_index"`
	Gain        float64 `mapstructure:"gain"`

	// Pair and speed
	ActivePair    string  `mapstructure:"active_pair"`
	ToneHz        float64 `mapstructure:"tone_hz"`
	WPM           float64 `mapstructure:"wpm"`
	LowWPM        float64 `mapstructure:"low_wpm"`
	HighWPM       float64 `mapstructure:"high_wpm"`
	OverspeedWPM  float64 `mapstructure:"overspeed_wpm"`
	TimingBalance float64 `mapstructure:"timing_balance"`

	// Variation
	JitterPct    float64 `mapstructure:"jitter_pct"`
	WPMJitter    float64 `mapstructure:"wpm_jitter"`
	ToneJitterHz float64 `mapstructure:"tone_jitter_hz"`

	// Stereo pair training
	Stereo       bool    `mapstructure:"stereo"`
	PanStrength  float64 `mapstructure:"pan_strength"`
	SwapChannels bool    `mapstructure:"swap_channels"`

	// Session logs
	LogDir string `mapstructure:"log_dir"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/cwtrainer/
func Init() error {
	viper.SetDefault("device_index", -1)
	viper.SetDefault("gain", 0.25)
	viper.SetDefault("active_pair", "H,5")
	viper.SetDefault("tone_hz", 650)
	viper.SetDefault("wpm", 25)
	viper.SetDefault("low_wpm", 12)
	viper.SetDefault("high_wpm", 36)
	viper.SetDefault("overspeed_wpm", 30)
	viper.SetDefault("timing_balance", 1.0)
	viper.SetDefault("jitter_pct", 0.0)
	viper.SetDefault("wpm_jitter", 0.0)
	viper.SetDefault("tone_jitter_hz", 0.0)
	viper.SetDefault("stereo", false)
	viper.SetDefault("pan_strength", 1.0)
	viper.SetDefault("swap_channels", false)
	viper.SetDefault("log_dir", "")

	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// DefaultLogDir returns the session log directory used when log_dir is
// not configured.
func DefaultLogDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, AppName, "logs")
}

// ResolvedLogDir returns the configured log directory, falling back to
// the default when unset.
func (s *Settings) ResolvedLogDir() string {
	if s.LogDir != "" {
		return s.LogDir
	}
	return DefaultLogDir()
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	if s.Gain < 0 || s.Gain > 1 {
		errs = append(errs, fmt.Errorf("gain must be between 0.0 and 1.0, got %v", s.Gain))
	}

	// Upper bound keeps the carrier well below Nyquist at the fixed 48 kHz
	// output rate.
	if s.ToneHz < 100 || s.ToneHz > 3000 {
		errs = append(errs, fmt.Errorf("tone_hz must be between 100 and 3000 Hz, got %v", s.ToneHz))
	}

	for _, w := range []struct {
		name  string
		value float64
	}{
		{"wpm", s.WPM},
		{"low_wpm", s.LowWPM},
		{"high_wpm", s.HighWPM},
		{"overspeed_wpm", s.OverspeedWPM},
	} {
		if w.value < 1 || w.value > 100 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 100, got %v", w.name, w.value))
		}
	}
	if s.TimingBalance < 0 || s.TimingBalance > 1 {
		errs = append(errs, fmt.Errorf("timing_balance must be between 0.0 and 1.0, got %v", s.TimingBalance))
	}

	if s.JitterPct < 0 || s.JitterPct > 0.5 {
		errs = append(errs, fmt.Errorf("jitter_pct must be between 0.0 and 0.5, got %v", s.JitterPct))
	}
	if s.WPMJitter < 0 || s.WPMJitter > 20 {
		errs = append(errs, fmt.Errorf("wpm_jitter must be between 0 and 20, got %v", s.WPMJitter))
	}
	if s.ToneJitterHz < 0 || s.ToneJitterHz > 200 {
		errs = append(errs, fmt.Errorf("tone_jitter_hz must be between 0 and 200, got %v", s.ToneJitterHz))
	}

	if s.PanStrength < 0 || s.PanStrength > 1 {
		errs = append(errs, fmt.Errorf("pan_strength must be between 0.0 and 1.0, got %v", s.PanStrength))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
