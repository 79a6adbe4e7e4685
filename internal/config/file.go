package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverrides is the subset of Config that may be supplied via an
// on-disk YAML file, mirroring the teacher's env/file/options layering.
type fileOverrides struct {
	JournalPath      string  `yaml:"journal_path"`
	GraphSnapshotDir string  `yaml:"graph_snapshot_dir"`
	LearnerStatePath string  `yaml:"learner_state_path"`
	RedisAddr        string  `yaml:"redis_addr"`
	SandboxRAMMB     int64   `yaml:"sandbox_ram_mb"`
	SLODefaultMS     float64 `yaml:"slo_default_ms"`
}

// LoadFile reads a YAML config file and returns an Option applying any
// fields it sets, so callers can compose it with New(LoadFile(path), ...).
func LoadFile(path string) (Option, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ov fileOverrides
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return nil, err
	}
	return func(c *Config) {
		if ov.JournalPath != "" {
			c.JournalPath = ov.JournalPath
		}
		if ov.GraphSnapshotDir != "" {
			c.GraphSnapshotDir = ov.GraphSnapshotDir
		}
		if ov.LearnerStatePath != "" {
			c.LearnerStatePath = ov.LearnerStatePath
		}
		if ov.RedisAddr != "" {
			c.RedisAddr = ov.RedisAddr
		}
		if ov.SandboxRAMMB != 0 {
			c.Sandbox.DefaultRAMMB = ov.SandboxRAMMB
		}
		if ov.SLODefaultMS != 0 {
			c.SLO.DefaultThresholdMS = ov.SLODefaultMS
		}
	}, nil
}
