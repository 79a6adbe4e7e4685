package runtime

import (
	"os"
	"sync"
	"time"

	"github.com/leontov-kolibri/kolibri-x/pkg/encode"
	"github.com/leontov-kolibri/kolibri-x/pkg/graph"
	"github.com/leontov-kolibri/kolibri-x/pkg/iot"
	"github.com/leontov-kolibri/kolibri-x/pkg/journal"
	"github.com/leontov-kolibri/kolibri-x/pkg/learn"
	"github.com/leontov-kolibri/kolibri-x/pkg/logger"
	"github.com/leontov-kolibri/kolibri-x/pkg/personalize"
	"github.com/leontov-kolibri/kolibri-x/pkg/planner"
	"github.com/leontov-kolibri/kolibri-x/pkg/privacy"
	"github.com/leontov-kolibri/kolibri-x/pkg/rag"
	"github.com/leontov-kolibri/kolibri-x/pkg/resilience"
	"github.com/leontov-kolibri/kolibri-x/pkg/skills"
	"github.com/leontov-kolibri/kolibri-x/pkg/slo"
	"github.com/leontov-kolibri/kolibri-x/pkg/workflow"
)

// Config bundles every knob needed to assemble a Runtime. Zero-valued
// fields fall back to the teacher-style defaults each subsystem already
// applies (encoder dim 32, history/sample caps, default SLO threshold).
type Config struct {
	Now            func() time.Time
	PolicyLayers   []privacy.PolicyLayer
	EncoderDim     int
	Consolidation  float64
	NoiseScale     float64
	Clipping       float64
	MinWeight      float64
	HistorySize    int
	SampleLimit    int
	DriftSmoothing float64
	DriftThreshold float64
	SLOWindowSize  int
	SLOThresholds  map[string]float64
	OfflineCacheTTL time.Duration
	RAGCacheTTL     time.Duration
	IoTPolicy       iot.Policy
	MKSI            MKSIExporter
	Log             logger.Logger
}

type clockAdapter struct{ now func() time.Time }

func (c clockAdapter) Now() time.Time { return c.now() }

// journalSink adapts *journal.Journal's Append (which returns the
// appended Entry) to the narrow void-returning Append every other
// package's JournalSink interface expects.
type journalSink struct{ j *journal.Journal }

func (s journalSink) Append(event string, payload map[string]interface{}) {
	s.j.Append(event, payload)
}

// Runtime is the session-scoped orchestrator: every subsystem is an owned
// field, per spec section 9's "global mutable state → session-scoped
// orchestrator" redesign note.
type Runtime struct {
	mu sync.Mutex

	now func() time.Time

	Journal      *journal.Journal
	Privacy      *privacy.Operator
	Skills       *skills.Store
	Sandbox      *skills.Sandbox
	Graph        *graph.Graph
	OfflineCache *rag.OfflineCache
	RAGCache     *rag.RAGCache
	TextEncoder  encode.TextEncoder
	ASREncoder   encode.ASREncoder
	ImageEncoder encode.ImageEncoder
	Fusion       encode.FusionTransformer
	Planner      *planner.Planner
	Profiler     *personalize.Profiler
	Continual    *learn.ContinualLearner
	Learner      *learn.Learner
	Drift        *learn.DriftTracker
	Workflows    *workflow.Manager
	IoT          *iot.Bridge
	SLO          *slo.Tracker
	MKSI         MKSIExporter
	Log          logger.Logger

	breakersMu sync.Mutex
	breakers   map[string]*resilience.Breaker[map[string]interface{}]

	sessionID string
	graphPath string
}

// NewRuntime assembles a Runtime from cfg, wiring C1-C13 together.
func NewRuntime(cfg Config) *Runtime {
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	dim := cfg.EncoderDim
	if dim <= 0 {
		dim = 32
	}

	j := journal.New(now)
	sink := journalSink{j: j}
	continual := learn.NewContinualLearner(cfg.Consolidation)

	log := cfg.Log
	if log == nil {
		log = logger.NewSimpleLogger()
	}

	return &Runtime{
		now:          now,
		Log:          log,
		Journal:      j,
		Privacy:      privacy.New(cfg.PolicyLayers, now),
		Skills:       skills.NewStore(256, sink),
		Sandbox:      skills.NewSandbox(sink),
		Graph:        graph.New(),
		OfflineCache: rag.NewOfflineCache(nil, cfg.OfflineCacheTTL),
		RAGCache:     rag.NewRAGCache(nil, cfg.RAGCacheTTL),
		TextEncoder:  encode.NewTextEncoder(dim),
		ASREncoder:   encode.ASREncoder{},
		ImageEncoder: encode.NewImageEncoder(dim),
		Fusion:       encode.NewFusionTransformer(dim),
		Planner:      planner.New(nil),
		Profiler:     personalize.NewProfiler(0.3),
		Continual:    continual,
		Learner:      learn.NewLearner(continual, cfg.NoiseScale, cfg.Clipping, cfg.MinWeight, cfg.HistorySize, cfg.SampleLimit),
		Drift:        learn.NewDriftTracker(cfg.DriftSmoothing, cfg.DriftThreshold),
		Workflows:    workflow.NewManager(clockAdapter{now}),
		IoT:          iot.NewBridge(cfg.IoTPolicy, sink, nil),
		SLO:          slo.NewTracker(cfg.SLOWindowSize, cfg.SLOThresholds),
		MKSI:         cfg.MKSI,
		breakers:     map[string]*resilience.Breaker[map[string]interface{}]{},
	}
}

// RegisterSkill registers a manifest with the skill store, its executor
// with the sandbox, and a matching candidate with the planner, so a single
// call keeps all three in sync.
func (rt *Runtime) RegisterSkill(m skills.Manifest, executor skills.Executor) error {
	if err := rt.Skills.Register(m); err != nil {
		return err
	}
	rt.Sandbox.Register(m.Name, executor)
	rt.Planner.RegisterSkills([]planner.Skill{{Name: m.Name, Inputs: m.Inputs, Permissions: m.Permissions}})
	return nil
}

func (rt *Runtime) breakerFor(skill string) *resilience.Breaker[map[string]interface{}] {
	rt.breakersMu.Lock()
	defer rt.breakersMu.Unlock()
	b, ok := rt.breakers[skill]
	if !ok {
		b = resilience.NewBreaker[map[string]interface{}](resilience.BreakerConfig{Name: "sandbox:" + skill})
		rt.breakers[skill] = b
	}
	return b
}

// StartSession loads the knowledge graph from graphPath (default
// "{id}.kg.jsonl") if it exists, and journals session_started.
func (rt *Runtime) StartSession(id, graphPath string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if graphPath == "" {
		graphPath = id + ".kg.jsonl"
	}
	if _, err := os.Stat(graphPath); err == nil {
		if err := rt.Graph.Load(graphPath); err != nil {
			return err
		}
	}
	rt.sessionID = id
	rt.graphPath = graphPath
	rt.Journal.Append("session_started", map[string]interface{}{"session_id": id, "graph_path": graphPath})
	rt.Log.With(logger.SessionField(id), logger.EventField("session_started")).Info("session started")
	return nil
}

// EndSession persists the knowledge graph, resets the session's IoT
// dispatch counters, and journals session_finished.
func (rt *Runtime) EndSession() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.Graph.Save(rt.graphPath); err != nil {
		return err
	}
	rt.IoT.ResetSession(rt.sessionID)
	rt.Journal.Append("session_finished", map[string]interface{}{"session_id": rt.sessionID})
	rt.Log.With(logger.SessionField(rt.sessionID), logger.EventField("session_finished")).Info("session finished")
	return nil
}
