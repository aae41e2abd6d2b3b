package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/keepsake-dev/keepsake/internal/memory"
)

// handleContext runs the session-start cycle and returns the injection
// block. The hook embeds the block verbatim into its own envelope.
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	hint := r.URL.Query().Get("context")

	block, scored, err := s.engine.SessionStart(hint, time.Now())
	if err != nil {
		s.log.Error("session start failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"context":  block,
		"selected": len(scored),
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	minConfidence := 0.0
	if raw := q.Get("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_confidence")
			return
		}
		minConfidence = v
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	atoms, err := s.engine.List(memory.Tier(q.Get("tier")), memory.Type(q.Get("type")), minConfidence, limit, time.Now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memories": atoms,
		"count":    len(atoms),
	})
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type            string   `json:"type"`
		Content         string   `json:"content"`
		Confidence      float64  `json:"confidence"`
		SourceSessionID string   `json:"source_session_id"`
		Tags            []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a := memory.New(memory.Type(req.Type), req.Content, req.Confidence, req.SourceSessionID)
	a.Tags = req.Tags

	reinforced, err := s.engine.Remember(a, time.Now())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"memory":     a,
		"reinforced": reinforced,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "atomID")

	a, err := s.engine.Get(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := map[string]any{"memory": a}
	if when, ok, err := s.engine.EstimateRemoval(id); err == nil && ok {
		resp["estimated_removal"] = when
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "atomID")

	removed, err := s.engine.Forget(id)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleMaintenance runs the periodic tier sweep and returns the ordered
// transition log.
func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	transitions, err := s.engine.Maintain(time.Now())
	if err != nil {
		s.log.Error("maintenance failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if transitions == nil {
		transitions = []memory.TierTransition{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": transitions,
		"count":       len(transitions),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tiers": status})
}

// writeEngineError maps engine error kinds onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var verr *memory.ValidationError
	switch {
	case memory.IsNotFound(err):
		writeError(w, http.StatusNotFound, "memory not found")
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	default:
		s.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
