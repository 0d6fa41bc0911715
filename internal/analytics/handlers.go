// internal/analytics/handlers.go

package analytics

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/calmoraapp/calmora-backend/internal/common/utils"
	"github.com/calmoraapp/calmora-backend/internal/delivery"
)

type Handler struct {
	service   Service
	deliverer delivery.Scheduler
}

func NewHandler(service Service, deliverer delivery.Scheduler) *Handler {
	return &Handler{service: service, deliverer: deliverer}
}

// TrackSent records a sent lifecycle event
func (h *Handler) TrackSent(w http.ResponseWriter, r *http.Request) {
	var req TrackSentRequest
	if !decodeTrackRequest(w, r, &req) {
		return
	}

	h.service.TrackSent(r.Context(), req.NotificationID, req.Category, req.TemplateType, req.IsPersonalized)
	respondRecorded(w)
}

// TrackDelivered records a delivered lifecycle event
func (h *Handler) TrackDelivered(w http.ResponseWriter, r *http.Request) {
	var req TrackDeliveredRequest
	if !decodeTrackRequest(w, r, &req) {
		return
	}

	h.service.TrackDelivered(r.Context(), req.NotificationID, req.LatencySeconds)
	respondRecorded(w)
}

// TrackOpened records an opened engagement event
func (h *Handler) TrackOpened(w http.ResponseWriter, r *http.Request) {
	var req TrackOpenedRequest
	if !decodeTrackRequest(w, r, &req) {
		return
	}

	h.service.TrackOpened(r.Context(), req.NotificationID, req.TimeToOpenSeconds)
	respondRecorded(w)
}

// TrackDismissed records a dismissed engagement event
func (h *Handler) TrackDismissed(w http.ResponseWriter, r *http.Request) {
	var req TrackDismissedRequest
	if !decodeTrackRequest(w, r, &req) {
		return
	}

	h.service.TrackDismissed(r.Context(), req.NotificationID, req.TimeToDismissSeconds)
	respondRecorded(w)
}

// TrackAction records an action-taken engagement event
func (h *Handler) TrackAction(w http.ResponseWriter, r *http.Request) {
	var req TrackActionRequest
	if !decodeTrackRequest(w, r, &req) {
		return
	}

	h.service.TrackActionTaken(r.Context(), req.NotificationID, req.ActionID, req.ActionType)
	respondRecorded(w)
}

// TrackFailed records a failed lifecycle event
func (h *Handler) TrackFailed(w http.ResponseWriter, r *http.Request) {
	var req TrackFailedRequest
	if !decodeTrackRequest(w, r, &req) {
		return
	}

	h.service.TrackFailed(r.Context(), req.NotificationID, req.Error)
	respondRecorded(w)
}

// ListEvents returns the tail of the event log, newest last
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	events := h.service.RecentEvents(r.Context(), limit)
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}

// GetAnalytics returns the latest computed report
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, h.service.LatestReport(r.Context()))
}

// RecomputeAnalytics forces a fresh recompute and returns the result
func (h *Handler) RecomputeAnalytics(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, h.service.Recompute(r.Context()))
}

// ExportAnalytics returns the full raw-data snapshot
func (h *Handler) ExportAnalytics(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, h.service.ExportData(r.Context()))
}

// ListPending lists notifications the delivery subsystem still holds
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.deliverer.ListPending(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list pending notifications")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"pending": pending,
		"total":   len(pending),
	})
}

// ListDelivered lists notifications the delivery subsystem has delivered
func (h *Handler) ListDelivered(w http.ResponseWriter, r *http.Request) {
	delivered, err := h.deliverer.ListDelivered(r.Context())
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list delivered notifications")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"delivered": delivered,
		"total":     len(delivered),
	})
}

func decodeTrackRequest(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := utils.ValidateStruct(dest); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func respondRecorded(w http.ResponseWriter) {
	utils.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}
