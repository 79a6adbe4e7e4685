// Package config loads Kolibri runtime configuration from defaults,
// environment variables, and functional options, in that increasing order
// of precedence — the same three-layer model the teacher framework uses.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable knob the runtime components read at
// construction time.
type Config struct {
	// Persistence paths.
	JournalPath    string `json:"journal_path" env:"KOLIBRI_JOURNAL_PATH" default:""`
	GraphSnapshotDir string `json:"graph_snapshot_dir" env:"KOLIBRI_GRAPH_DIR" default:"."`
	LearnerStatePath string `json:"learner_state_path" env:"KOLIBRI_LEARNER_PATH" default:""`

	// Sandbox limits (defaults applied when a skill manifest omits quota).
	Sandbox SandboxConfig `json:"sandbox"`

	// Cache configuration.
	Cache CacheConfig `json:"cache"`

	// Alert thresholds for RAG cache health (spec section 4.6).
	Alerts AlertConfig `json:"alerts"`

	// SLO thresholds per stage (spec section 4.13).
	SLO SLOConfig `json:"slo"`

	// Self-learner configuration (spec section 4.10).
	Learner LearnerConfig `json:"learner"`

	// RedisAddr, when non-empty, switches the offline and RAG caches to
	// Redis-backed implementations.
	RedisAddr string `json:"redis_addr" env:"KOLIBRI_REDIS_ADDR" default:""`
}

type SandboxConfig struct {
	DefaultTimeLimit time.Duration `env:"KOLIBRI_SANDBOX_TIME_LIMIT" default:"5s"`
	DefaultRAMMB     int64         `env:"KOLIBRI_SANDBOX_RAM_MB" default:"256"`
	AuditRingSize    int           `env:"KOLIBRI_SANDBOX_AUDIT_SIZE" default:"512"`
}

type CacheConfig struct {
	OfflineTTL time.Duration `env:"KOLIBRI_OFFLINE_TTL" default:"1h"`
	RAGTTL     time.Duration `env:"KOLIBRI_RAG_TTL" default:"30m"`
}

type AlertConfig struct {
	MinHitRate      float64 `env:"KOLIBRI_ALERT_MIN_HIT_RATE" default:"0.2"`
	MaxMissRate     float64 `env:"KOLIBRI_ALERT_MAX_MISS_RATE" default:"0.95"`
	MaxSize         int     `env:"KOLIBRI_ALERT_MAX_SIZE" default:"1024"`
	MinObservations int     `env:"KOLIBRI_ALERT_MIN_OBS" default:"10"`
}

type SLOConfig struct {
	DefaultThresholdMS float64            `env:"KOLIBRI_SLO_DEFAULT_MS" default:"750"`
	WindowSize         int                `env:"KOLIBRI_SLO_WINDOW" default:"512"`
	StageThresholdsMS  map[string]float64 `json:"stage_thresholds_ms"`
}

type LearnerConfig struct {
	MinWeight      float64 `env:"KOLIBRI_LEARNER_MIN_WEIGHT" default:"0.05"`
	DriftAlpha     float64 `env:"KOLIBRI_LEARNER_DRIFT_ALPHA" default:"0.2"`
	DriftThreshold float64 `env:"KOLIBRI_LEARNER_DRIFT_THRESHOLD" default:"0.6"`
	HistorySize    int     `env:"KOLIBRI_LEARNER_HISTORY" default:"128"`
	DPNoiseSigma   float64 `env:"KOLIBRI_LEARNER_DP_SIGMA" default:"0"`
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithJournalPath sets the on-disk journal persistence path.
func WithJournalPath(path string) Option {
	return func(c *Config) { c.JournalPath = path }
}

// WithRedisAddr switches the offline and RAG caches to Redis.
func WithRedisAddr(addr string) Option {
	return func(c *Config) { c.RedisAddr = addr }
}

// WithSandboxLimits overrides the default sandbox time/memory limits.
func WithSandboxLimits(timeLimit time.Duration, ramMB int64) Option {
	return func(c *Config) {
		c.Sandbox.DefaultTimeLimit = timeLimit
		c.Sandbox.DefaultRAMMB = ramMB
	}
}

// WithCacheTTLs overrides the offline/RAG cache TTLs.
func WithCacheTTLs(offline, rag time.Duration) Option {
	return func(c *Config) {
		c.Cache.OfflineTTL = offline
		c.Cache.RAGTTL = rag
	}
}

// New builds a Config from defaults, then environment variables, then the
// supplied options — matching the teacher's three-layer precedence.
// The environment variables read are KOLIBRI_JOURNAL_PATH,
// KOLIBRI_GRAPH_DIR, KOLIBRI_LEARNER_PATH, KOLIBRI_REDIS_ADDR,
// KOLIBRI_SANDBOX_TIME_LIMIT, KOLIBRI_SANDBOX_RAM_MB,
// KOLIBRI_ALERT_MIN_HIT_RATE, KOLIBRI_ALERT_MAX_MISS_RATE and
// KOLIBRI_SLO_DEFAULT_MS; the other variables named in the struct tags
// are not read, and a value that does not parse is ignored.
func New(opts ...Option) *Config {
	c := &Config{
		JournalPath:      "",
		GraphSnapshotDir: ".",
		Sandbox: SandboxConfig{
			DefaultTimeLimit: 5 * time.Second,
			DefaultRAMMB:     256,
			AuditRingSize:    512,
		},
		Cache: CacheConfig{
			OfflineTTL: time.Hour,
			RAGTTL:     30 * time.Minute,
		},
		Alerts: AlertConfig{
			MinHitRate:      0.2,
			MaxMissRate:     0.95,
			MaxSize:         1024,
			MinObservations: 10,
		},
		SLO: SLOConfig{
			DefaultThresholdMS: 750,
			WindowSize:         512,
			StageThresholdsMS:  map[string]float64{},
		},
		Learner: LearnerConfig{
			MinWeight:      0.05,
			DriftAlpha:     0.2,
			DriftThreshold: 0.6,
			HistorySize:    128,
			DPNoiseSigma:   0,
		},
	}

	if v := os.Getenv("KOLIBRI_JOURNAL_PATH"); v != "" {
		c.JournalPath = v
	}
	if v := os.Getenv("KOLIBRI_GRAPH_DIR"); v != "" {
		c.GraphSnapshotDir = v
	}
	if v := os.Getenv("KOLIBRI_LEARNER_PATH"); v != "" {
		c.LearnerStatePath = v
	}
	if v := os.Getenv("KOLIBRI_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v, ok := durEnv("KOLIBRI_SANDBOX_TIME_LIMIT"); ok {
		c.Sandbox.DefaultTimeLimit = v
	}
	if v, ok := intEnv("KOLIBRI_SANDBOX_RAM_MB"); ok {
		c.Sandbox.DefaultRAMMB = v
	}
	if v, ok := floatEnv("KOLIBRI_ALERT_MIN_HIT_RATE"); ok {
		c.Alerts.MinHitRate = v
	}
	if v, ok := floatEnv("KOLIBRI_ALERT_MAX_MISS_RATE"); ok {
		c.Alerts.MaxMissRate = v
	}
	if v, ok := floatEnv("KOLIBRI_SLO_DEFAULT_MS"); ok {
		c.SLO.DefaultThresholdMS = v
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func durEnv(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}

func intEnv(key string) (int64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func floatEnv(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
