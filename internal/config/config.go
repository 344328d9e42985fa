// Package config resolves runtime settings from flags, SMART_TRAINER_*
// environment variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	ErrInvalidTargetDistance      = errors.New("config: target distance must be positive")
	ErrInvalidMetersPerRevolution = errors.New("config: meters per revolution must be positive")
)

const (
	EnvPrefix      = "SMART_TRAINER"
	configFileName = "config.yaml"

	DefaultMetersPerRevolution = 2.1
	DefaultTargetDistanceKm    = 20.0
	DefaultPreferKnownGrace    = 3 * time.Second
	DefaultLogMaxSizeMB        = 10
)

const (
	keyConfig              = "config"
	keyDataDir             = "data-dir"
	keyLogFile             = "log-file"
	keyLogMaxSizeMB        = "log-max-size-mb"
	keyMetersPerRevolution = "meters-per-revolution"
	keyTargetDistanceKm    = "target-distance-km"
	keyTrack               = "track"
	keyPreferKnownGrace    = "prefer-known-grace"
	keyMock                = "mock"
	keyFITExport           = "fit-export"
)

type Config struct {
	DataDir             string
	LogFile             string
	LogMaxSizeMB        int
	MetersPerRevolution float64
	TargetDistanceKm    float64
	Track               string
	PreferKnownGrace    time.Duration
	Mock                bool
	FITExport           bool
	// ConfigFile is the YAML file that was read, empty if none
	ConfigFile string
}

func (c Config) IdentityPath() string { return filepath.Join(c.DataDir, "device.json") }
func (c Config) HistoryPath() string  { return filepath.Join(c.DataDir, "history.db") }
func (c Config) FITDir() string       { return filepath.Join(c.DataDir, "activities") }

// Validate rejects operator input the engine must never see
func (c Config) Validate() error {
	if !(c.MetersPerRevolution > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidMetersPerRevolution, c.MetersPerRevolution)
	}
	if !(c.TargetDistanceKm > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTargetDistance, c.TargetDistanceKm)
	}
	if c.LogMaxSizeMB <= 0 {
		return fmt.Errorf("config: log-max-size-mb must be positive: %d", c.LogMaxSizeMB)
	}
	if c.PreferKnownGrace < 0 {
		return fmt.Errorf("config: prefer-known-grace must not be negative: %v", c.PreferKnownGrace)
	}
	return nil
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".smart-trainer")
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String(keyConfig, "", "YAML config file (default <data-dir>/config.yaml)")
	fs.String(keyDataDir, defaultDataDir(), "directory for device identity, history and logs")
	fs.String(keyLogFile, "", "log file (default <data-dir>/smart-trainer.log)")
	fs.Int(keyLogMaxSizeMB, DefaultLogMaxSizeMB, "rotate the log file after this many megabytes")
	fs.Float64(keyMetersPerRevolution, DefaultMetersPerRevolution, "distance per crank revolution for cadence-only bikes")
	fs.Float64(keyTargetDistanceKm, DefaultTargetDistanceKm, "auto-stop distance when no track is selected")
	fs.String(keyTrack, "", "track id to ride (empty for none)")
	fs.Duration(keyPreferKnownGrace, DefaultPreferKnownGrace, "how long a scan waits for the remembered bike")
	fs.Bool(keyMock, false, "use a simulated bike instead of Bluetooth")
	fs.Bool(keyFITExport, false, "also write each workout as a FIT activity file")
	return fs
}

// Load parses args (without the program name) and resolves the settings
func Load(args []string) (Config, error) {
	fs := newFlagSet("smart_trainer")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}

	configFile := v.GetString(keyConfig)
	if configFile == "" {
		candidate := filepath.Join(v.GetString(keyDataDir), configFileName)
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	cfg := Config{
		DataDir:             v.GetString(keyDataDir),
		LogFile:             v.GetString(keyLogFile),
		LogMaxSizeMB:        v.GetInt(keyLogMaxSizeMB),
		MetersPerRevolution: v.GetFloat64(keyMetersPerRevolution),
		TargetDistanceKm:    v.GetFloat64(keyTargetDistanceKm),
		Track:               v.GetString(keyTrack),
		PreferKnownGrace:    v.GetDuration(keyPreferKnownGrace),
		Mock:                v.GetBool(keyMock),
		FITExport:           v.GetBool(keyFITExport),
		ConfigFile:          configFile,
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, "smart-trainer.log")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
