package runtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/loqalabs/loqa-listen/internal/config"
)

func (r *Runtime) routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.HandleFunc("GET /v1/stats", r.handleStats)
	mux.HandleFunc("GET /v1/results", r.handleResults)
	mux.HandleFunc("DELETE /v1/results", r.handleClearResults)
	mux.HandleFunc("POST /v1/session/start", r.handleSessionStart)
	mux.HandleFunc("POST /v1/session/pause", r.handleSessionPause)
	mux.HandleFunc("POST /v1/session/resume", r.handleSessionResume)
	mux.HandleFunc("POST /v1/session/stop", r.handleSessionStop)
	mux.HandleFunc("PUT /v1/windowing", r.handleWindowing)
	return mux
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.engines.Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := r.pipe.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":       r.sess.ID(),
		"session_state":    r.sess.State().String(),
		"engine_mode":      r.engines.Mode(),
		"pipeline":         stats,
		"frame_drops":      r.sess.QueueDrops(),
		"buffered_samples": r.sess.BufferedSamples(),
	})
}

func (r *Runtime) handleResults(w http.ResponseWriter, req *http.Request) {
	limit := 10
	if v := req.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	records, err := r.store.Recent(req.Context(), limit)
	if err != nil {
		r.logger.Error("failed to read history", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": records})
}

func (r *Runtime) handleClearResults(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Clear(req.Context()); err != nil {
		r.logger.Error("failed to clear history", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	r.pipe.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionStart runs capture under the runtime context, not the request
// context, so the session outlives the request.
func (r *Runtime) handleSessionStart(w http.ResponseWriter, _ *http.Request) {
	if err := r.sess.Start(r.baseCtx); err != nil {
		r.logger.Error("failed to start session", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	r.writeSessionState(w)
}

func (r *Runtime) handleSessionPause(w http.ResponseWriter, _ *http.Request) {
	r.sess.Pause()
	r.writeSessionState(w)
}

func (r *Runtime) handleSessionResume(w http.ResponseWriter, _ *http.Request) {
	r.sess.Resume()
	r.writeSessionState(w)
}

func (r *Runtime) handleSessionStop(w http.ResponseWriter, _ *http.Request) {
	if err := r.sess.Stop(); err != nil {
		r.logger.Error("failed to stop session", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	r.writeSessionState(w)
}

type windowingRequest struct {
	WindowDuration float64 `json:"window_duration_s"`
	OverlapRatio   float64 `json:"overlap_ratio"`
}

// handleWindowing recomputes the window sizes from a new duration and overlap
// ratio against the configured sample rate and applies them to the live
// accumulator. An invalid combination leaves the previous parameters intact.
func (r *Runtime) handleWindowing(w http.ResponseWriter, req *http.Request) {
	var body windowingRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	next := r.cfg.Audio
	next.WindowDuration = body.WindowDuration
	next.OverlapRatio = body.OverlapRatio
	if err := config.ValidateAudio(next); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := r.sess.SetWindowing(next.WindowSize(), next.OverlapSize()); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window_size":  next.WindowSize(),
		"overlap_size": next.OverlapSize(),
	})
}

func (r *Runtime) writeSessionState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": r.sess.ID(),
		"state":      r.sess.State().String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
