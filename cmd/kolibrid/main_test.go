package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leontov-kolibri/kolibri-x/internal/config"
	"github.com/leontov-kolibri/kolibri-x/pkg/logger"
)

func TestBuildRuntimeDefaultsToInProcessCaches(t *testing.T) {
	rt := buildRuntime(config.New(), logger.NewSimpleLogger())
	assert.NotNil(t, rt.OfflineCache)
	assert.NotNil(t, rt.RAGCache)
}

func TestBuildRuntimeSwitchesToRedisWhenAddrSet(t *testing.T) {
	rt := buildRuntime(config.New(config.WithRedisAddr("localhost:6379")), logger.NewSimpleLogger())
	assert.NotNil(t, rt.OfflineCache)
	assert.NotNil(t, rt.RAGCache)
}

func TestBuildRuntimeAppliesLearnerConfig(t *testing.T) {
	cfg := config.New(config.WithCacheTTLs(2*time.Hour, 45*time.Minute))
	rt := buildRuntime(cfg, logger.NewSimpleLogger())
	assert.NotNil(t, rt.Learner)
	assert.NotNil(t, rt.Drift)
	assert.InDelta(t, cfg.Learner.MinWeight, rt.Learner.MinWeight, 1e-9)
	assert.Equal(t, cfg.Learner.HistorySize, rt.Learner.HistorySize)
	assert.InDelta(t, cfg.Learner.DriftAlpha, rt.Drift.Smoothing, 1e-9)
	assert.InDelta(t, cfg.Learner.DriftThreshold, rt.Drift.Threshold, 1e-9)
}

func TestBuildRuntimeThreadsLoggerIntoRuntime(t *testing.T) {
	log := logger.NewSimpleLogger()
	rt := buildRuntime(config.New(), log)
	assert.Same(t, log, rt.Log)
}
