// Package config loads the matching engine's session configuration, the Go
// analogue of the original C++ source's boost::property_tree with dotted
// Engine.* keys. Grounded in the teacher's pkg/marketmaker/config.go: a
// viper.Viper with defaults set, bound to either a config file or
// environment variables, then validated into a typed struct.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

// EngineConfig is the parsed form of the Engine.* configuration keys (§6).
type EngineConfig struct {
	StartTime              time.Time
	StopTime               time.Time
	OpeningAuctionDuration time.Duration
	ClosingAuctionDuration time.Duration
	IntradayAuctionDuration time.Duration
	MaxPriceDeviation      float64 // factor D, e.g. 0.10 for a configured 10
	InstrumentDBPath       string
}

// LoadEngineConfig reads Engine.* keys from path (if non-empty) and from
// the environment, applying the teacher's pattern of sane defaults plus
// validation. start_time/stop_time are "HH:MM:SS" local time, applied to
// the current date — the session boundaries are always today's.
func LoadEngineConfig(path string) (*EngineConfig, error) {
	v := viper.New()
	v.SetDefault("engine.start_time", "09:00:00")
	v.SetDefault("engine.stop_time", "17:30:00")
	v.SetDefault("engine.opening_auction_duration", 300)
	v.SetDefault("engine.closing_auction_duration", 300)
	v.SetDefault("engine.intraday_auction_duration", 120)
	v.SetDefault("engine.max_price_deviation", 10.0)
	v.SetDefault("engine.instrument_db_path", "instruments.yaml")

	v.SetEnvPrefix("MATCHINGCORE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &core.ConfigError{Source: path, Err: err}
		}
	}

	now := time.Now()
	startTime, err := parseClockTime(now, v.GetString("engine.start_time"))
	if err != nil {
		return nil, &core.ConfigError{Source: "engine.start_time", Err: err}
	}
	stopTime, err := parseClockTime(now, v.GetString("engine.stop_time"))
	if err != nil {
		return nil, &core.ConfigError{Source: "engine.stop_time", Err: err}
	}
	if !stopTime.After(startTime) {
		return nil, &core.ConfigError{Source: "engine.stop_time", Err: fmt.Errorf("stop_time must be after start_time")}
	}

	deviationPercent := v.GetFloat64("engine.max_price_deviation")
	if deviationPercent < 0 {
		return nil, &core.ConfigError{Source: "engine.max_price_deviation", Err: fmt.Errorf("must be non-negative")}
	}

	dbPath := v.GetString("engine.instrument_db_path")
	if dbPath == "" {
		return nil, &core.ConfigError{Source: "engine.instrument_db_path", Err: fmt.Errorf("must not be empty")}
	}

	return &EngineConfig{
		StartTime:               startTime,
		StopTime:                stopTime,
		OpeningAuctionDuration:  time.Duration(v.GetInt("engine.opening_auction_duration")) * time.Second,
		ClosingAuctionDuration:  time.Duration(v.GetInt("engine.closing_auction_duration")) * time.Second,
		IntradayAuctionDuration: time.Duration(v.GetInt("engine.intraday_auction_duration")) * time.Second,
		MaxPriceDeviation:       deviationPercent / 100.0,
		InstrumentDBPath:        dbPath,
	}, nil
}

// parseClockTime applies an "HH:MM:SS" wall-clock time to day's date.
func parseClockTime(day time.Time, s string) (time.Time, error) {
	t, err := time.ParseInLocation("15:04:05", s, day.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
}
