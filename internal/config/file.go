package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// Duration decodes "250ms" style strings from YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// fileConfig mirrors Config with optional fields so a file only overrides
// what it names.
type fileConfig struct {
	Addr        *string   `yaml:"addr" toml:"addr"`
	MetricsPath *string   `yaml:"metrics_path" toml:"metrics_path"`
	LogLevel    *string   `yaml:"log_level" toml:"log_level"`
	LogConsole  *bool     `yaml:"log_console" toml:"log_console"`
	LogSampleN  *int      `yaml:"log_sample_n" toml:"log_sample_n"`
	SimTick     *Duration `yaml:"sim_tick" toml:"sim_tick"`
	PersistEach *Duration `yaml:"persist_every" toml:"persist_every"`

	Monitor struct {
		SlowOpThreshold      *Duration `yaml:"slow_op_threshold" toml:"slow_op_threshold"`
		ExtremeWarnAfter     *int      `yaml:"extreme_warn_after" toml:"extreme_warn_after"`
		ExtremeOptimizeAfter *int      `yaml:"extreme_optimize_after" toml:"extreme_optimize_after"`
	} `yaml:"monitor" toml:"monitor"`

	Tuner struct {
		Enabled       *bool     `yaml:"enabled" toml:"enabled"`
		Interval      *Duration `yaml:"interval" toml:"interval"`
		TargetHitRate *float64  `yaml:"target_hit_rate" toml:"target_hit_rate"`
		MaxOpTime     *Duration `yaml:"max_op_time" toml:"max_op_time"`
		ExtremeRatio  *float64  `yaml:"extreme_ratio" toml:"extreme_ratio"`
		PoolOversize  *int      `yaml:"pool_oversize" toml:"pool_oversize"`
	} `yaml:"tuner" toml:"tuner"`

	Pool struct {
		MaxPerKey *int `yaml:"max_per_key" toml:"max_per_key"`
		MaxTotal  *int `yaml:"max_total" toml:"max_total"`
	} `yaml:"pool" toml:"pool"`

	Cache struct {
		InitialSize         *int     `yaml:"initial_size" toml:"initial_size"`
		MinSize             *int     `yaml:"min_size" toml:"min_size"`
		MaxSize             *int     `yaml:"max_size" toml:"max_size"`
		EvalEvery           *int     `yaml:"eval_every" toml:"eval_every"`
		TargetHitRate       *float64 `yaml:"target_hit_rate" toml:"target_hit_rate"`
		MemoryLimit         *int64   `yaml:"memory_limit" toml:"memory_limit"`
		BatchLargeThreshold *int     `yaml:"batch_large_threshold" toml:"batch_large_threshold"`
	} `yaml:"cache" toml:"cache"`

	Predictive struct {
		Enabled   *bool     `yaml:"enabled" toml:"enabled"`
		Threshold *float64  `yaml:"threshold" toml:"threshold"`
		HalfLife  *Duration `yaml:"half_life" toml:"half_life"`
		MaxKeys   *int      `yaml:"max_keys" toml:"max_keys"`
	} `yaml:"predictive" toml:"predictive"`

	Store struct {
		RedisAddr *string   `yaml:"redis_addr" toml:"redis_addr"`
		Prefix    *string   `yaml:"prefix" toml:"prefix"`
		TTL       *Duration `yaml:"ttl" toml:"ttl"`
	} `yaml:"store" toml:"store"`

	Events struct {
		Enabled *bool   `yaml:"enabled" toml:"enabled"`
		Brokers *string `yaml:"brokers" toml:"brokers"`
		Topic   *string `yaml:"topic" toml:"topic"`
		Queue   *int    `yaml:"queue" toml:"queue"`
	} `yaml:"events" toml:"events"`
}

// LoadFile overlays the YAML or TOML file at path onto cfg. The format is
// picked from the extension.
func LoadFile(path string, cfg *Config) error {
	path = os.ExpandEnv(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	set(&cfg.Addr, fc.Addr)
	set(&cfg.MetricsPath, fc.MetricsPath)
	set(&cfg.LogLevel, fc.LogLevel)
	set(&cfg.LogConsole, fc.LogConsole)
	set(&cfg.LogSampleN, fc.LogSampleN)
	setDur(&cfg.SimTick, fc.SimTick)
	setDur(&cfg.PersistEach, fc.PersistEach)

	setDur(&cfg.Monitor.SlowOpThreshold, fc.Monitor.SlowOpThreshold)
	set(&cfg.Monitor.ExtremeWarnAfter, fc.Monitor.ExtremeWarnAfter)
	set(&cfg.Monitor.ExtremeOptimizeAfter, fc.Monitor.ExtremeOptimizeAfter)

	set(&cfg.Tuner.Enabled, fc.Tuner.Enabled)
	setDur(&cfg.Tuner.Interval, fc.Tuner.Interval)
	set(&cfg.Tuner.TargetHitRate, fc.Tuner.TargetHitRate)
	setDur(&cfg.Tuner.MaxOpTime, fc.Tuner.MaxOpTime)
	set(&cfg.Tuner.ExtremeRatio, fc.Tuner.ExtremeRatio)
	set(&cfg.Tuner.PoolOversize, fc.Tuner.PoolOversize)

	set(&cfg.Pool.MaxPerKey, fc.Pool.MaxPerKey)
	set(&cfg.Pool.MaxTotal, fc.Pool.MaxTotal)

	set(&cfg.Cache.InitialSize, fc.Cache.InitialSize)
	set(&cfg.Cache.MinSize, fc.Cache.MinSize)
	set(&cfg.Cache.MaxSize, fc.Cache.MaxSize)
	set(&cfg.Cache.EvalEvery, fc.Cache.EvalEvery)
	set(&cfg.Cache.TargetHitRate, fc.Cache.TargetHitRate)
	set(&cfg.Cache.MemoryLimit, fc.Cache.MemoryLimit)
	set(&cfg.Cache.BatchLargeThreshold, fc.Cache.BatchLargeThreshold)

	set(&cfg.Predictive.Enabled, fc.Predictive.Enabled)
	set(&cfg.Predictive.Threshold, fc.Predictive.Threshold)
	setDur(&cfg.Predictive.HalfLife, fc.Predictive.HalfLife)
	set(&cfg.Predictive.MaxKeys, fc.Predictive.MaxKeys)

	set(&cfg.Store.RedisAddr, fc.Store.RedisAddr)
	set(&cfg.Store.Prefix, fc.Store.Prefix)
	setDur(&cfg.Store.TTL, fc.Store.TTL)

	set(&cfg.Events.Enabled, fc.Events.Enabled)
	set(&cfg.Events.Brokers, fc.Events.Brokers)
	set(&cfg.Events.Topic, fc.Events.Topic)
	set(&cfg.Events.Queue, fc.Events.Queue)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDur(dst *time.Duration, v *Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
