package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/breaktracker/backend/internal/models"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	Timezone        string        `mapstructure:"TIMEZONE"`
	PunchGraceMin   int           `mapstructure:"PUNCH_GRACE_MIN"`
	PunchDecayMin   int           `mapstructure:"PUNCH_DECAY_MIN"`
	EmergencyLimit  int           `mapstructure:"EMERGENCY_LIMIT"`
	MonitorInterval time.Duration `mapstructure:"MONITOR_INTERVAL"`
	MetricsAddr     string        `mapstructure:"METRICS_ADDR"`
	BreakDurations  string        `mapstructure:"BREAK_DURATIONS"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TIMEZONE", "Africa/Cairo")
	v.SetDefault("PUNCH_GRACE_MIN", 5)
	v.SetDefault("PUNCH_DECAY_MIN", 15)
	v.SetDefault("EMERGENCY_LIMIT", 1)
	v.SetDefault("MONITOR_INTERVAL", "30s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Durations returns the allowed-duration table with any BREAK_DURATIONS
// overrides applied. Overrides are "type:minutes" pairs joined by commas,
// e.g. "short:10,lunch:45".
func (c Config) Durations() (models.AllowedDurations, error) {
	table := models.DefaultAllowedDurations()
	if strings.TrimSpace(c.BreakDurations) == "" {
		return table, nil
	}
	for _, pair := range strings.Split(c.BreakDurations, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad break duration override %q", pair)
		}
		bt := models.BreakType(strings.TrimSpace(parts[0]))
		if !bt.Valid() {
			return nil, fmt.Errorf("unknown break type %q in BREAK_DURATIONS", parts[0])
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || minutes < 0 {
			return nil, fmt.Errorf("bad minutes for %q in BREAK_DURATIONS", parts[0])
		}
		if bt.IsPunch() && minutes != 0 {
			return nil, fmt.Errorf("punch type %q must keep a zero duration", parts[0])
		}
		table[bt] = minutes
	}
	return table, nil
}
