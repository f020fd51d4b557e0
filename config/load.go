// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/katalvlaran/basinflow/market"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BASINFLOW"

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"label":       "run.label",
	"start":       "run.start",
	"months":      "run.months",
	"forecasts":   "run.forecasts",
	"metrics-out": "run.metrics_file",
	"log-level":   "logging.level",
	"dev":         "logging.development",
	"store":       "store.kind",
	"store-path":  "store.path",
}

// BindFlags registers the overridable flags on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("label", "", "run label")
	fs.String("start", "", "first simulated month (YYYY-MM)")
	fs.Int("months", 0, "number of simulated months")
	fs.String("forecasts", "", "static forecast table")
	fs.String("metrics-out", "", "write a Prometheus text dump here at exit")
	fs.Int("log-level", 0, "highest log V-level printed")
	fs.Bool("dev", false, "human readable development logging")
	fs.String("store", "", "ledger backend: memory or sqlite")
	fs.String("store-path", "", "sqlite ledger file")
}

// Load reads path, applies environment and flag overrides and validates.
// fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := newViper(fs)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return finish(v, filepath.Dir(path))
}

// Read is Load over an in-memory YAML document; relative paths resolve
// against dir.
func Read(r io.Reader, dir string, fs *pflag.FlagSet) (*Config, error) {
	v := newViper(fs)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return finish(v, dir)
}

func newViper(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults make the scalar keys known to AutomaticEnv
	d := Default()
	v.SetDefault("run.label", d.Run.Label)
	v.SetDefault("run.start", d.Run.Start)
	v.SetDefault("run.months", d.Run.Months)
	v.SetDefault("run.forecasts", d.Run.Forecasts)
	v.SetDefault("run.metrics_file", d.Run.MetricsFile)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("store.kind", d.Store.Kind)
	v.SetDefault("store.path", d.Store.Path)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}
	return v
}

func finish(v *viper.Viper, dir string) (*Config, error) {
	cfg := Default()
	if v.IsSet("market") {
		cfg.Market = &MarketConfig{Options: market.DefaultOptions()}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.dir = dir
	cfg.Run.Forecasts = cfg.Path(cfg.Run.Forecasts)
	if cfg.Store.Kind == "sqlite" {
		cfg.Store.Path = cfg.Path(cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path resolves p against the run file's directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// decodeOverlay writes the keys of raw onto dst, rejecting unknown keys.
func decodeOverlay(raw map[string]any, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
