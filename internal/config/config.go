package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type MonitorCfg struct {
	SlowOpThreshold      time.Duration
	ExtremeWarnAfter     int
	ExtremeOptimizeAfter int
}

type TunerCfg struct {
	Enabled       bool
	Interval      time.Duration
	TargetHitRate float64
	MaxOpTime     time.Duration
	ExtremeRatio  float64
	PoolOversize  int
}

type PoolCfg struct {
	MaxPerKey int
	MaxTotal  int
}

type CacheCfg struct {
	InitialSize         int
	MinSize             int
	MaxSize             int
	EvalEvery           int
	TargetHitRate       float64
	MemoryLimit         int64
	BatchLargeThreshold int
}

type PredictiveCfg struct {
	Enabled   bool
	Threshold float64
	HalfLife  time.Duration
	MaxKeys   int
}

type StoreCfg struct {
	RedisAddr string
	Prefix    string
	TTL       time.Duration
}

type EventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	Queue   int
}

type Config struct {
	Addr        string
	MetricsPath string
	LogLevel    string
	LogConsole  bool
	LogSampleN  int
	ConfigFile  string
	SimTick     time.Duration
	PersistEach time.Duration

	Monitor    MonitorCfg
	Tuner      TunerCfg
	Pool       PoolCfg
	Cache      CacheCfg
	Predictive PredictiveCfg
	Store      StoreCfg
	Events     EventsCfg
}

// Defaults returns the configuration used when no environment or file
// overrides are present.
func Defaults() Config {
	return Config{
		Addr:        ":8090",
		MetricsPath: "/metrics",
		LogLevel:    "info",
		SimTick:     100 * time.Millisecond,
		PersistEach: 10 * time.Second,
		Monitor: MonitorCfg{
			SlowOpThreshold:      100 * time.Millisecond,
			ExtremeWarnAfter:     100,
			ExtremeOptimizeAfter: 50,
		},
		Tuner: TunerCfg{
			Enabled:       true,
			Interval:      5 * time.Minute,
			TargetHitRate: 0.8,
			MaxOpTime:     10 * time.Millisecond,
			ExtremeRatio:  0.5,
			PoolOversize:  5000,
		},
		Pool: PoolCfg{MaxPerKey: 100, MaxTotal: 10000},
		Cache: CacheCfg{
			InitialSize:         128,
			MinSize:             32,
			MaxSize:             8192,
			EvalEvery:           100,
			TargetHitRate:       0.8,
			MemoryLimit:         32 << 20,
			BatchLargeThreshold: 1000,
		},
		Predictive: PredictiveCfg{Threshold: 3, HalfLife: time.Minute, MaxKeys: 4096},
		Store:      StoreCfg{Prefix: "hugenum:", TTL: 0},
		Events:     EventsCfg{Brokers: "localhost:9092", Topic: "hugenum-tuning", Queue: 256},
	}
}

func FromEnv() Config {
	d := Defaults()
	return Config{
		Addr:        getenv("ADDR", d.Addr),
		MetricsPath: getenv("METRICS_PATH", d.MetricsPath),
		LogLevel:    getenv("LOG_LEVEL", d.LogLevel),
		LogConsole:  getbool("LOG_CONSOLE", d.LogConsole),
		LogSampleN:  getint("LOG_SAMPLE_N", d.LogSampleN),
		ConfigFile:  getenv("CONFIG_FILE", ""),
		SimTick:     getduration("SIM_TICK", d.SimTick),
		PersistEach: getduration("PERSIST_EVERY", d.PersistEach),
		Monitor: MonitorCfg{
			SlowOpThreshold:      getduration("SLOW_OP_THRESHOLD", d.Monitor.SlowOpThreshold),
			ExtremeWarnAfter:     getint("EXTREME_WARN_AFTER", d.Monitor.ExtremeWarnAfter),
			ExtremeOptimizeAfter: getint("EXTREME_OPTIMIZE_AFTER", d.Monitor.ExtremeOptimizeAfter),
		},
		Tuner: TunerCfg{
			Enabled:       getbool("TUNER_ENABLED", d.Tuner.Enabled),
			Interval:      getduration("TUNER_INTERVAL", d.Tuner.Interval),
			TargetHitRate: getfloat("TUNER_TARGET_HIT_RATE", d.Tuner.TargetHitRate),
			MaxOpTime:     getduration("TUNER_MAX_OP_TIME", d.Tuner.MaxOpTime),
			ExtremeRatio:  getfloat("TUNER_EXTREME_RATIO", d.Tuner.ExtremeRatio),
			PoolOversize:  getint("TUNER_POOL_OVERSIZE", d.Tuner.PoolOversize),
		},
		Pool: PoolCfg{
			MaxPerKey: getint("POOL_MAX_PER_KEY", d.Pool.MaxPerKey),
			MaxTotal:  getint("POOL_MAX_TOTAL", d.Pool.MaxTotal),
		},
		Cache: CacheCfg{
			InitialSize:         getint("CACHE_INITIAL_SIZE", d.Cache.InitialSize),
			MinSize:             getint("CACHE_MIN_SIZE", d.Cache.MinSize),
			MaxSize:             getint("CACHE_MAX_SIZE", d.Cache.MaxSize),
			EvalEvery:           getint("CACHE_EVAL_EVERY", d.Cache.EvalEvery),
			TargetHitRate:       getfloat("CACHE_TARGET_HIT_RATE", d.Cache.TargetHitRate),
			MemoryLimit:         getint64("CACHE_MEMORY_LIMIT", d.Cache.MemoryLimit),
			BatchLargeThreshold: getint("BATCH_LARGE_THRESHOLD", d.Cache.BatchLargeThreshold),
		},
		Predictive: PredictiveCfg{
			Enabled:   getbool("PREDICTIVE_ENABLED", d.Predictive.Enabled),
			Threshold: getfloat("PREDICTIVE_THRESHOLD", d.Predictive.Threshold),
			HalfLife:  getduration("PREDICTIVE_HALF_LIFE", d.Predictive.HalfLife),
			MaxKeys:   getint("PREDICTIVE_MAX_KEYS", d.Predictive.MaxKeys),
		},
		Store: StoreCfg{
			RedisAddr: getenv("REDIS_ADDR", d.Store.RedisAddr),
			Prefix:    getenv("REDIS_PREFIX", d.Store.Prefix),
			TTL:       getduration("REDIS_TTL", d.Store.TTL),
		},
		Events: EventsCfg{
			Enabled: getbool("EVENTS_ENABLED", d.Events.Enabled),
			Brokers: getenv("KAFKA_BROKERS", d.Events.Brokers),
			Topic:   getenv("KAFKA_TOPIC", d.Events.Topic),
			Queue:   getint("EVENTS_QUEUE", d.Events.Queue),
		},
	}
}

// Load reads the environment and, when CONFIG_FILE is set, overlays that file.
func Load() (Config, error) {
	cfg := FromEnv()
	if cfg.ConfigFile == "" {
		return cfg, nil
	}
	if err := LoadFile(cfg.ConfigFile, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BrokerList splits the comma-separated broker string.
func (e EventsCfg) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
