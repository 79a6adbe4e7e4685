// Command kolibrid is the Kolibri runtime process entrypoint. It wires the
// fourteen components together behind a session-scoped runtime.Runtime and
// exposes the collaborator-facing CLI contract (chat/ingest/verify) as
// stubs — the real chat shell, ingestion heuristics, and verification UX
// are external collaborators per spec section 5's Non-goals; this binary
// only owns the surface they'd call into.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/leontov-kolibri/kolibri-x/internal/config"
	"github.com/leontov-kolibri/kolibri-x/pkg/logger"
	"github.com/leontov-kolibri/kolibri-x/pkg/rag"
	"github.com/leontov-kolibri/kolibri-x/pkg/runtime"
	"github.com/leontov-kolibri/kolibri-x/pkg/telemetry"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log, err := logger.NewZapLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}

	cfg := config.New()
	if path := os.Getenv("KOLIBRI_CONFIG_FILE"); path != "" {
		opt, err := config.LoadFile(path)
		if err != nil {
			log.Error("config file load failed", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = config.New(opt)
	}

	rt := buildRuntime(cfg, log)

	provider, err := telemetry.NewProvider("kolibrid")
	if err != nil {
		log.Warn("telemetry disabled", "error", err)
	} else {
		defer provider.Shutdown(context.Background())
	}

	switch os.Args[1] {
	case "chat":
		runChat(rt, log, os.Args[2:])
	case "ingest":
		runIngest(rt, log, os.Args[2:])
	case "verify":
		runVerify(rt, log, os.Args[2:])
	case "serve":
		runServe(rt, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kolibrid <chat|ingest|verify|serve> [flags]")
}

// runServe is the stub for the HTTP/SSE frontend collaborator named in
// spec section 5's Non-goals: only the /v1/chat request/response contract
// and a /metrics scrape endpoint live here, instrumented with otelhttp so
// request spans carry the same trace context the pipeline stages use.
// Streaming, auth, and the real frontend stay external collaborators.
func runServe(rt *runtime.Runtime, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", ":8080", "listen address")
	fs.Parse(args)

	registry := prometheus.NewRegistry()
	if err := registry.Register(telemetry.NewSLOCollector(rt.SLO)); err != nil {
		log.Error("metrics registration failed", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := rt.Process(r.Context(), runtime.Request{
			UserID:     req.UserID,
			Goal:       req.Goal,
			Modalities: req.Modalities,
			DataTags:   req.DataTags,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := otelhttp.NewHandler(mux, "kolibrid")
	log.Info("serving", "addr", *addr)
	if err := http.ListenAndServe(*addr, handler); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// buildRuntime assembles a Runtime from cfg, threading log through as the
// runtime's own structured logger so every pipeline stage and session
// boundary logs through the same zap sink the CLI uses. When cfg.RedisAddr
// is set, the offline and RAG caches are rebuilt on top of a shared
// go-redis/v8 client instead of the in-process default, so a kolibrid fleet
// can share cache state across processes.
func buildRuntime(cfg *config.Config, log logger.Logger) *runtime.Runtime {
	rt := runtime.NewRuntime(runtime.Config{
		EncoderDim:      32,
		Consolidation:   0.3,
		NoiseScale:      cfg.Learner.DPNoiseSigma,
		Clipping:        1.0,
		MinWeight:       cfg.Learner.MinWeight,
		HistorySize:     cfg.Learner.HistorySize,
		SampleLimit:     256,
		DriftSmoothing:  cfg.Learner.DriftAlpha,
		DriftThreshold:  cfg.Learner.DriftThreshold,
		SLOWindowSize:   cfg.SLO.WindowSize,
		SLOThresholds:   cfg.SLO.StageThresholdsMS,
		OfflineCacheTTL: cfg.Cache.OfflineTTL,
		RAGCacheTTL:     cfg.Cache.RAGTTL,
		Log:             log,
	})

	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		rt.OfflineCache = rag.NewOfflineCache(rag.NewRedisCache(client, "offline"), cfg.Cache.OfflineTTL)
		rt.RAGCache = rag.NewRAGCache(rag.NewRedisCache(client, "rag"), cfg.Cache.RAGTTL)
	}
	return rt
}

// chatRequest is the JSON shape the (external) chat shell collaborator
// sends: runChat reads one such object from stdin, and serve reads one per
// /v1/chat request body.
type chatRequest struct {
	UserID     string                 `json:"user_id"`
	Goal       string                 `json:"goal"`
	Modalities map[string]interface{} `json:"modalities"`
	DataTags   []string               `json:"data_tags"`
}

// runChat is the stub for the CLI chat surface named in spec section 6: it
// starts a session, decodes one JSON request from stdin, runs it through
// the pipeline, and prints the response. A real interactive shell with
// readline/history support is an external collaborator's job.
func runChat(rt *runtime.Runtime, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	sessionID := fs.String("session", "default", "session id")
	graphPath := fs.String("graph", "", "knowledge graph snapshot path")
	fs.Parse(args)

	if err := rt.StartSession(*sessionID, *graphPath); err != nil {
		log.Error("session start failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.EndSession(); err != nil {
			log.Error("session end failed", "error", err)
		}
	}()

	var req chatRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		log.Error("request decode failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := rt.Process(ctx, runtime.Request{
		UserID:     req.UserID,
		Goal:       req.Goal,
		Modalities: req.Modalities,
		DataTags:   req.DataTags,
	})
	if err != nil {
		log.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

// runIngest is the stub for the knowledge-graph ingestion collaborator:
// ingestion heuristics (document chunking, entity extraction) live outside
// this module per the Non-goals; this only wires a session and reports the
// resulting graph size so a real ingestion pipeline has something to call.
func runIngest(rt *runtime.Runtime, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	sessionID := fs.String("session", "default", "session id")
	graphPath := fs.String("graph", "", "knowledge graph snapshot path")
	fs.Parse(args)

	if err := rt.StartSession(*sessionID, *graphPath); err != nil {
		log.Error("session start failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.EndSession(); err != nil {
			log.Error("session end failed", "error", err)
		}
	}()

	log.Info("graph loaded", "nodes", len(rt.Graph.Nodes()))
	conflicts := rt.Graph.GenerateClarificationRequests()
	for _, c := range conflicts {
		fmt.Println(c)
	}
}

// runVerify is the stub for the verification/eval collaborator: it prints
// the current SLO report so an external harness can assert against it
// rather than this binary owning assertion/report formatting.
func runVerify(rt *runtime.Runtime, log logger.Logger, args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.Parse(args)

	report := rt.SLO.BuildReport()
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Error("report encode failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
