package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
	"github.com/leontov-kolibri/kolibri-x/pkg/logger"
	"github.com/leontov-kolibri/kolibri-x/pkg/personalize"
	"github.com/leontov-kolibri/kolibri-x/pkg/planner"
	"github.com/leontov-kolibri/kolibri-x/pkg/rag"
)

const journalTailSize = 20

// Process drives one request through the twelve-stage pipeline from spec
// section 4.14, timing each stage via the SLO tracker and recording a
// reasoning step per stage.
func (rt *Runtime) Process(ctx context.Context, req Request) (Response, error) {
	log := &reasoningLog{}

	// 1. privacy_enforce
	var allowedTags []string
	rt.timed("privacy_enforce", func() {
		allowedTags = rt.Privacy.Enforce(req.UserID, req.DataTags)
		rt.Privacy.RecordAccess("runtime", req.UserID, req.DataTags)
		rt.Journal.Append("privacy", map[string]interface{}{
			"user": req.UserID, "requested": req.DataTags, "allowed": allowedTags,
		})
	})
	log.add("privacy_enforce", "filtered data tags by consent", allowedTags, 1.0)

	allowedSet := make(map[string]bool, len(allowedTags))
	for _, t := range allowedTags {
		allowedSet[t] = true
	}
	requestedSet := make(map[string]bool, len(req.DataTags))
	for _, t := range req.DataTags {
		requestedSet[t] = true
	}
	filteredModalities := make(map[string]interface{}, len(req.Modalities))
	for k, v := range req.Modalities {
		if requestedSet[k] && !allowedSet[k] {
			continue
		}
		filteredModalities[k] = v
	}

	// 2. compose_transcript
	var transcript []string
	rt.timed("compose_transcript", func() {
		if text, ok := filteredModalities["text"].(string); ok && strings.TrimSpace(text) != "" {
			transcript = append(transcript, text)
		}
		if audio, ok := filteredModalities["audio"]; ok {
			if t := rt.ASREncoder.Transcribe(audio); strings.TrimSpace(t) != "" {
				transcript = append(transcript, t)
			}
		}
	})
	log.add("compose_transcript", "composed transcript from text and transcribed audio", nil, 1.0)

	// 3. encode_modalities
	embeddings := map[string][]float64{}
	rt.timed("encode_modalities", func() {
		if text := strings.Join(transcript, " "); text != "" {
			embeddings["text"] = rt.TextEncoder.Encode(text)
		}
		if img, ok := filteredModalities["image"].([]byte); ok {
			embeddings["image"] = rt.ImageEncoder.Encode(img)
		}
		if sensors, ok := filteredModalities["sensors"].(map[string]interface{}); ok && len(sensors) > 0 {
			rt.Journal.Append("sensor_ingest", map[string]interface{}{"sensors": sensors})
		}
	})
	log.add("encode_modalities", "encoded present modalities into vectors", modalityNames(embeddings), 0.8)

	// 4. fusion
	fused := rt.Fusion.Fuse(embeddings)
	rt.timed("fusion", func() {
		rt.Journal.Append("fusion", map[string]interface{}{"weights": fused.ModalityWeights})
	})
	log.add("fusion", "fused modality embeddings", modalityNames(embeddings), 0.8)

	// 5. offline_cache_lookup
	offlineKey := rt.OfflineCache.Key(req.UserID, req.Goal, req.Modalities, transcript, req.DataTags)
	var hit bool
	var cached cachedPayload
	rt.timed("offline_cache_lookup", func() {
		raw, ok, _ := rt.OfflineCache.Get(ctx, offlineKey)
		if ok {
			if err := json.Unmarshal(raw, &cached); err == nil {
				hit = true
			}
		}
	})
	if hit {
		log.add("cache", "served from offline cache", []string{offlineKey}, 1.0)
		rt.journalSLOSnapshot()
		return Response{
			Plan:        cached.Plan,
			Answer:      cached.Answer,
			Adjustments: cached.Adjustments,
			Executions:  cached.Executions,
			Reasoning:   log.steps,
			JournalTail: rt.journalTailView(),
			Cached:      true,
			Metrics:     rt.SLO.Report(),
		}, nil
	}
	log.add("offline_cache_lookup", "no offline cache entry", []string{offlineKey}, 1.0)

	// 6. planning
	plan := rt.Planner.Plan(req.Goal, req.Hints)
	rt.timed("planning", func() {
		rt.Journal.Append("plan", map[string]interface{}{"goal": req.Goal, "steps": len(plan.Steps)})
	})
	log.add("planning", "decomposed goal into steps", stepSkills(plan), 0.8)

	// 7. rag_cache_lookup / rag_answer
	modalityKeys := modalityNames(req.Modalities)
	ragKey := rt.RAGCache.Key(req.UserID, req.Goal, req.DataTags, modalityKeys, req.TopK)
	var answer rag.Answer
	rt.timed("rag_cache_lookup", func() {
		if raw, ok, _ := rt.RAGCache.Get(ctx, ragKey); ok {
			if err := json.Unmarshal(raw, &answer); err == nil {
				return
			}
		}
		answer = rag.Retrieve(req.Goal, rt.Graph.Nodes(), rt.TextEncoder.Encode, req.TopK)
		if raw, err := json.Marshal(answer); err == nil {
			rt.RAGCache.Set(ctx, ragKey, raw)
		}
		stats, _ := rt.RAGCache.Stats(ctx)
		rt.Journal.Append("rag_cache_stats", map[string]interface{}{
			"hits": stats.Hits, "misses": stats.Misses, "requests": stats.Requests,
			"hit_rate": stats.HitRate, "miss_rate": stats.MissRate,
		})
		rag.EvaluateAlerts(stats, rag.DefaultThresholds(), journalSink{j: rt.Journal})
	})
	log.add("rag_answer", "retrieved supporting facts", factIDs(answer), answer.Verification.Confidence)

	// 8. execute_plan
	var executions []Execution
	rt.timed("execute_plan", func() {
		executions = rt.executePlan(ctx, req, plan, log)
	})

	// 9. profile_signals + empathy_modulation
	var adjustments personalize.Modulation
	rt.timed("profile_empathy", func() {
		profile := rt.Profiler.BulkRecord(req.UserID, req.Signals)
		adjustments = personalize.Modulate(*profile, req.Empathy)
		rt.Journal.Append("empathy_modulation", map[string]interface{}{
			"tone": adjustments.Tone, "tempo": adjustments.Tempo,
		})
	})
	log.add("profile_empathy", "folded signals and modulated tone/tempo", nil, 0.7)

	// 10. self-learning
	rt.timed("self_learning", func() {
		updated := false
		for _, ex := range executions {
			gradients := map[string]float64{"reward": gradientForStatus(ex.Status)}
			rt.Learner.Enqueue(ex.StepID, gradients, confidenceForStatus(ex.Status), map[string]string{"status": ex.Status}, req.UserID)
			rt.Drift.Observe(ex.StepID, map[string]string{"status": ex.Status})
			updated = true
		}
		if updated {
			results := rt.Learner.Step()
			if len(results) > 0 {
				rt.Journal.Append("self_learning", map[string]interface{}{"tasks": len(results)})
			}
		}
	})
	log.add("self_learning", "enqueued weak labels from execution outcomes", nil, 0.6)

	// 11. offline cache store
	rt.timed("offline_cache_store", func() {
		payload, err := json.Marshal(cachedPayload{Plan: plan, Answer: answer, Executions: executions, Adjustments: adjustments})
		if err == nil {
			rt.OfflineCache.Put(ctx, offlineKey, payload)
		}
	})

	// 12. slo_snapshot
	rt.journalSLOSnapshot()

	return Response{
		Plan:        plan,
		Answer:      answer,
		Adjustments: adjustments,
		Executions:  executions,
		Reasoning:   log.steps,
		JournalTail: rt.journalTailView(),
		Cached:      false,
		Metrics:     rt.SLO.Report(),
	}, nil
}

func (rt *Runtime) executePlan(ctx context.Context, req Request, plan planner.Plan, log *reasoningLog) []Execution {
	executions := make([]Execution, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		ex := Execution{StepID: step.ID, Skill: step.Skill}

		switch {
		case step.Skill == "":
			ex.Status = StatusSkipped
			ex.Reason = "no skill assigned to step"
		default:
			if _, ok := rt.Skills.Get(step.Skill); !ok {
				ex.Status = StatusMissing
				ex.Reason = "unknown skill: " + step.Skill
			} else if scopes, err := rt.Skills.AuthorizeExecution(step.Skill, req.SkillScopes, req.UserID); err != nil {
				ex.Status = StatusError
				ex.Reason = err.Error()
			} else if err := rt.Skills.EnforcePolicy(step.Skill, req.DataTags, req.UserID); err != nil {
				var pv *kerrors.PolicyViolation
				if errors.As(err, &pv) {
					ex.Policy = pv.Policy
				}
				ex.Status = StatusPolicyBlocked
				ex.Reason = err.Error()
			} else {
				quota := rt.Skills.Quota(step.Skill)
				payload := map[string]interface{}{"goal": req.Goal, "step": step.Description, "scopes": scopes}
				breaker := rt.breakerFor(step.Skill)
				result, execErr := breaker.Execute(func() (map[string]interface{}, error) {
					return rt.Sandbox.Execute(ctx, step.Skill, payload, quota)
				})
				if execErr != nil {
					if kerrors.Is(execErr, kerrors.KindQuotaExceeded) {
						ex.Status = StatusQuotaBlocked
					} else {
						ex.Status = StatusError
					}
					ex.Reason = execErr.Error()
				} else {
					ex.Status = StatusOK
					ex.Output = result
				}
			}
		}

		executions = append(executions, ex)
		rt.Journal.Append("execute_step", map[string]interface{}{
			"step": step.ID, "skill": step.Skill, "status": ex.Status,
		})
		stepLog := rt.Log.With(logger.SkillField(step.Skill), logger.StatusField(ex.Status))
		if ex.Status == StatusOK {
			stepLog.Debug("plan step executed")
		} else {
			stepLog.Warn("plan step did not complete")
		}
		log.add("execute:"+step.ID, "executed plan step", []string{step.Skill}, confidenceForStatus(ex.Status))
	}
	return executions
}

func (rt *Runtime) journalSLOSnapshot() {
	built := rt.SLO.BuildReport()
	rt.Journal.Append("slo_snapshot", map[string]interface{}{
		"breaches": len(built.Breaches), "stages": len(built.Stages),
	})
}

func (rt *Runtime) journalTailView() []journalEntryView {
	entries := rt.Journal.Tail(journalTailSize)
	out := make([]journalEntryView, len(entries))
	for i, e := range entries {
		out[i] = journalEntryView{Index: e.Index, Event: e.Event, Payload: e.Payload}
	}
	return out
}

func (rt *Runtime) timed(stage string, fn func()) {
	start := time.Now()
	fn()
	elapsed := float64(time.Since(start).Milliseconds())
	rt.SLO.Observe(stage, elapsed)
	rt.Log.With(logger.StageField(stage), logger.DurationMsField(elapsed)).Debug("pipeline stage completed")
}

func confidenceForStatus(status string) float64 {
	switch status {
	case StatusOK:
		return 0.9
	case StatusSkipped:
		return 0.5
	default:
		return 0.3
	}
}

func gradientForStatus(status string) float64 {
	switch status {
	case StatusOK:
		return 1.0
	case StatusSkipped:
		return 0.0
	default:
		return -1.0
	}
}

func modalityNames(m map[string]interface{}) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	return names
}

func stepSkills(plan planner.Plan) []string {
	out := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		if s.Skill != "" {
			out = append(out, s.Skill)
		}
	}
	return out
}

func factIDs(a rag.Answer) []string {
	out := make([]string, 0, len(a.Support))
	for _, f := range a.Support {
		out = append(out, f.ID)
	}
	return out
}
