package api

import (
	"net/http"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

type StartRequest struct {
	Models         []string `json:"models"`
	System         string   `json:"system"`
	User           string   `json:"user"`
	ProjectContext string   `json:"projectContext,omitempty"`
}

type PivotRequest struct {
	Pivot string `json:"pivot"`
}

type WinnerRequest struct {
	ResponseID string `json:"responseId"`
}

type LockRequest struct {
	ModelID string `json:"modelId"`
}

type ReplaceRequest struct {
	ResponseID string `json:"responseId"`
	ModelID    string `json:"modelId"`
}

type FeedbackRequest struct {
	ResponseID string `json:"responseId"`
	Relevance  int    `json:"relevance"`
	Tone       int    `json:"tone"`
}

type DecideRequest struct {
	Action      string `json:"action"`
	WinnerID    string `json:"winnerId"`
	LoserID     string `json:"loserId,omitempty"`
	Replacement string `json:"replacement,omitempty"`
}

type SynthesizeRequest struct {
	Template string `json:"template"`
	Model    string `json:"model"`
}

type ModelResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Provider      string  `json:"provider"`
	InputPerMTok  float64 `json:"inputPerMTok,omitempty"`
	OutputPerMTok float64 `json:"outputPerMTok,omitempty"`
}

// WorkshopHandler adapts engine commands to HTTP. Every mutating route
// answers with the committed session snapshot.
type WorkshopHandler struct {
	engine         *workshop.Engine
	synth          *workshop.Synthesizer
	registry       *models.ModelRegistry
	synthesisModel string
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Models handles GET /models
func (h *WorkshopHandler) Models(w http.ResponseWriter, _ *http.Request) {
	out := []ModelResponse{}
	for _, id := range h.registry.List() {
		info, _ := h.registry.Get(id)
		out = append(out, ModelResponse{
			ID:            info.ID,
			Name:          info.Name(),
			Provider:      info.Provider.String(),
			InputPerMTok:  info.InputPerMTok,
			OutputPerMTok: info.OutputPerMTok,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSession handles GET /session
func (h *WorkshopHandler) GetSession(w http.ResponseWriter, _ *http.Request) {
	s := h.engine.Snapshot()
	if s == nil {
		writeEngineError(w, workshop.ErrNoSession)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Start handles POST /session
func (h *WorkshopHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.engine.StartWorkshop(r.Context(), workshop.StartRequest{
		Models:         req.Models,
		System:         req.System,
		User:           req.User,
		ProjectContext: req.ProjectContext,
	})
	h.respond(w, http.StatusCreated, s, err)
}

// Reset handles DELETE /session
func (h *WorkshopHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Reset(r.Context()); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Round handles POST /rounds
func (h *WorkshopHandler) Round(w http.ResponseWriter, r *http.Request) {
	var req PivotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.engine.ExecuteRound(r.Context(), req.Pivot)
	h.respond(w, http.StatusOK, s, err)
}

// Winner handles POST /winner
func (h *WorkshopHandler) Winner(w http.ResponseWriter, r *http.Request) {
	var req WinnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.resolve(req.ResponseID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s, err := h.engine.SelectWinner(r.Context(), id)
	h.respond(w, http.StatusOK, s, err)
}

// Lock handles POST /lock
func (h *WorkshopHandler) Lock(w http.ResponseWriter, r *http.Request) {
	var req LockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.engine.LockIn(r.Context(), req.ModelID)
	h.respond(w, http.StatusOK, s, err)
}

// Checkpoint handles POST /checkpoint
func (h *WorkshopHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	var req PivotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.engine.MarkCheckpoint(r.Context(), req.Pivot)
	h.respond(w, http.StatusOK, s, err)
}

// Replace handles POST /replace
func (h *WorkshopHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req ReplaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.resolve(req.ResponseID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s, err := h.engine.ReplaceModel(r.Context(), id, req.ModelID)
	h.respond(w, http.StatusOK, s, err)
}

// Feedback handles POST /feedback
func (h *WorkshopHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.resolve(req.ResponseID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s, err := h.engine.RecordFeedback(r.Context(), id, req.Relevance, req.Tone)
	h.respond(w, http.StatusOK, s, err)
}

// Decide handles POST /decide
func (h *WorkshopHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req DecideRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	winner, err := h.resolve(req.WinnerID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	loser := req.LoserID
	if loser != "" {
		if loser, err = h.resolve(loser); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	s, err := h.engine.ApplyWinnerAction(r.Context(), workshop.WinnerAction(req.Action), winner, loser, req.Replacement)
	h.respond(w, http.StatusOK, s, err)
}

// Synthesize handles POST /synthesize. Provider failures surface as 502.
func (h *WorkshopHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req SynthesizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Template == "" {
		req.Template = "consensus"
	}
	if req.Model == "" {
		req.Model = h.synthesisModel
	}

	report, err := h.synth.Synthesize(r.Context(), h.engine.Snapshot(), req.Template, req.Model)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /export
func (h *WorkshopHandler) Export(w http.ResponseWriter, _ *http.Request) {
	s := h.engine.Snapshot()
	if s == nil {
		writeEngineError(w, workshop.ErrNoSession)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(workshop.ExportMarkdown(s)))
}

func (h *WorkshopHandler) resolve(ref string) (string, error) {
	return workshop.ResolveResponseID(h.engine.Snapshot(), ref)
}

func (h *WorkshopHandler) respond(w http.ResponseWriter, status int, s *session.Session, err error) {
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, status, s)
}
