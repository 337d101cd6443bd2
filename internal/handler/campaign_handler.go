// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/broadcast"
	"github.com/sasaflow/wabroadcast/internal/segment"
)

// CampaignHandler exposes the broadcast operations over HTTP. The surface is
// deliberately thin: lifecycle controls, a stats snapshot, a segment
// estimate, and the provider status webhook. Authentication and the wider
// admin API live elsewhere.
type CampaignHandler struct {
	Broadcasts *broadcast.Service
	Segments   *segment.Service
}

func (h *CampaignHandler) Routes(r chi.Router) {
	r.Post("/campaigns/{id}/enqueue", h.EnqueueCampaign)
	r.Post("/campaigns/{id}/pause", h.PauseCampaign)
	r.Post("/campaigns/{id}/resume", h.ResumeCampaign)
	r.Get("/campaigns/{id}/stats", h.GetCampaignStats)
	r.Get("/segments/{id}/estimate", h.EstimateSegment)
	r.Post("/webhooks/status", h.StatusCallback)
}

func campaignID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil
}

func writeLaunchError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var notApproved *appErrors.ErrTemplateNotApproved
	var noSegment *appErrors.ErrSegmentNotFound
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &notApproved), errors.As(err, &noSegment):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *CampaignHandler) EnqueueCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := h.Broadcasts.Enqueue(id); err != nil {
		writeLaunchError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"campaign_id": id, "status": "scheduled"})
}

func (h *CampaignHandler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := h.Broadcasts.Pause(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := h.Broadcasts.Resume(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(r)
	if !ok {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	stats, err := h.Broadcasts.GetStats(id)
	if err != nil {
		writeLaunchError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *CampaignHandler) EstimateSegment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid segment id", http.StatusBadRequest)
		return
	}
	count, err := h.Segments.Estimate(id)
	if err != nil {
		var notFound *appErrors.ErrSegmentNotFound
		if errors.As(err, &notFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"segment_id": id, "estimated_count": count})
}

// StatusCallback is the entry point the inbound webhook collaborator calls
// for provider delivery receipts.
func (h *CampaignHandler) StatusCallback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProviderMessageID string     `json:"provider_message_id"`
		Status            string     `json:"status"`
		Timestamp         *time.Time `json:"timestamp,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if payload.ProviderMessageID == "" || payload.Status == "" {
		http.Error(w, "provider_message_id and status are required", http.StatusBadRequest)
		return
	}

	at := time.Now()
	if payload.Timestamp != nil {
		at = *payload.Timestamp
	}
	if err := h.Broadcasts.HandleStatusCallback(payload.ProviderMessageID, payload.Status, at); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
