package fraud

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Flag names double as the keys of the weight table and the Flags entries on
// a fraud case.
const (
	FlagVelocity       = "velocity"
	FlagGeoMismatch    = "geo_mismatch"
	FlagDeviceReuse    = "device_reuse"
	FlagOfflineCapture = "offline_capture"
)

// Config tunes the scoring strategy. Weights are additive; a case opens when
// the summed score reaches CaseThreshold and is urgent from UrgentThreshold.
type Config struct {
	CaseThreshold   float64 `yaml:"case_threshold"`
	UrgentThreshold float64 `yaml:"urgent_threshold"`

	VelocityWindowMinutes int     `yaml:"velocity_window_minutes"`
	VelocityMax           int     `yaml:"velocity_max"`
	GeoMaxKm              float64 `yaml:"geo_max_km"`
	DeviceCustomerMax     int     `yaml:"device_customer_max"`
	DeviceWindowDays      int     `yaml:"device_window_days"`

	Weights map[string]float64 `yaml:"weights"`
}

func DefaultConfig() Config {
	return Config{
		CaseThreshold:         40,
		UrgentThreshold:       80,
		VelocityWindowMinutes: 60,
		VelocityMax:           5,
		GeoMaxKm:              50,
		DeviceCustomerMax:     3,
		DeviceWindowDays:      30,
		Weights: map[string]float64{
			FlagVelocity:       40,
			FlagGeoMismatch:    35,
			FlagDeviceReuse:    30,
			FlagOfflineCapture: 10,
		},
	}
}

// LoadConfig overlays a YAML file onto the defaults. A missing weights block
// keeps the default table.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read fraud config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse fraud config: %w", err)
	}
	if cfg.Weights == nil {
		cfg.Weights = DefaultConfig().Weights
	}
	return cfg, nil
}

func (c Config) velocityWindow() time.Duration {
	return time.Duration(c.VelocityWindowMinutes) * time.Minute
}

func (c Config) deviceWindow() time.Duration {
	return time.Duration(c.DeviceWindowDays) * 24 * time.Hour
}
