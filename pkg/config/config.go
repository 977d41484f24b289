// Package config loads midisched's configuration by layering, in
// increasing priority: built-in defaults, a config.toml found in the
// platform config directory or ./, a .env file, process environment
// variables prefixed MIDISCHED_, and finally any cobra flags the
// caller binds into the returned viper instance.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved, typed view of midisched's settings. Callers
// read it once at startup; cmd/midisched rebinds cobra flags into the
// backing viper instance before calling Load.
type Config struct {
	MIDIPort        string
	BeatsPerMeasure int
	BeatUnit        int
	TempoBPM        float64
	Channel         uint8
	Seed            uint64

	HTTPAddr       string
	MetricsEnabled bool

	LogLevel  string
	PrintMsgs bool
}

// New returns a viper instance pre-populated with midisched's defaults
// and search paths, ready for a caller to bind cobra flags onto before
// calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("MIDISCHED")
	v.AutomaticEnv()

	setDefaults(v)

	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("toml")

	_ = godotenv.Load()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			_ = fmt.Errorf("config: reading config file: %w", err)
		}
	}

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("midi_port", "")
	v.SetDefault("beats_per_measure", 4)
	v.SetDefault("beat_unit", 4)
	v.SetDefault("tempo_bpm", 60.0)
	v.SetDefault("channel", 0)
	v.SetDefault("seed", 0)
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("print_msgs", false)
}

// Load reads v's current state (defaults, file, env, and any bound
// flags) into a Config.
func Load(v *viper.Viper) *Config {
	return &Config{
		MIDIPort:        v.GetString("midi_port"),
		BeatsPerMeasure: v.GetInt("beats_per_measure"),
		BeatUnit:        v.GetInt("beat_unit"),
		TempoBPM:        v.GetFloat64("tempo_bpm"),
		Channel:         uint8(v.GetUint32("channel")),
		Seed:            v.GetUint64("seed"),
		HTTPAddr:        v.GetString("http_addr"),
		MetricsEnabled:  v.GetBool("metrics_enabled"),
		LogLevel:        v.GetString("log_level"),
		PrintMsgs:       v.GetBool("print_msgs"),
	}
}

func configDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("LOCALAPPDATA")
		if appData == "" {
			appData = os.Getenv("APPDATA")
		}
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "midisched"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midisched"), nil
}
