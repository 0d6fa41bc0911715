// internal/campaign/handlers.go

package campaign

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/calmoraapp/calmora-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateCampaign creates and activates a campaign from a definition
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]ScheduleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ScheduleItem{
			TemplateID:      item.TemplateID,
			OffsetDays:      item.OffsetDays,
			PreferredTime:   item.PreferredTime,
			Personalization: item.Personalization,
		})
	}

	c := &Campaign{
		Name:           req.Name,
		Description:    req.Description,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Items:          items,
		TargetAudience: req.TargetAudience,
	}

	if !h.service.CreateCampaign(r.Context(), c) {
		utils.RespondWithError(w, http.StatusBadRequest, "Campaign validation failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, c)
}

// ListCampaigns returns all campaigns
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns := h.service.ListCampaigns(r.Context())
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"total":     len(campaigns),
	})
}

// GetCampaign returns one campaign
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	c, ok := h.service.GetCampaign(r.Context(), id)
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, c)
}

// CancelCampaign cancels a campaign and its scheduled notifications
func (h *Handler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.service.CancelCampaign(r.Context(), id) {
		utils.RespondWithError(w, http.StatusNotFound, "Campaign not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Campaign cancelled",
	})
}

// PauseCampaign parks an active campaign
func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.service.PauseCampaign(r.Context(), id) {
		utils.RespondWithError(w, http.StatusConflict, "Campaign cannot be paused")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Campaign paused",
	})
}

// ResumeCampaign reactivates a paused campaign
func (h *Handler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !h.service.ResumeCampaign(r.Context(), id) {
		utils.RespondWithError(w, http.StatusConflict, "Campaign cannot be resumed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Campaign resumed",
	})
}

// CreateWelcomeCampaign starts the fixed onboarding sequence
func (h *Handler) CreateWelcomeCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := h.service.CreateWelcomeCampaign(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create welcome campaign")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, c)
}

// CreateDailyReminderCampaign starts a reminder-per-day campaign
func (h *Handler) CreateDailyReminderCampaign(w http.ResponseWriter, r *http.Request) {
	var req DailyReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, ok := h.service.CreateDailyReminderCampaign(r.Context(), req.Days)
	if !ok {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create reminder campaign")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, c)
}

// ListTemplates returns the template catalog
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates := h.service.ListTemplates(r.Context())
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     len(templates),
	})
}

// GetTemplate returns one catalog entry
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tpl, ok := h.service.GetTemplate(r.Context(), id)
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Template not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, tpl)
}

// SearchTemplates returns catalog entries matching a tag
func (h *Handler) SearchTemplates(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing tag parameter")
		return
	}

	templates := h.service.SearchTemplates(r.Context(), tag)
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     len(templates),
	})
}

// PreviewNotification renders a template ad hoc without touching any
// campaign state
func (h *Handler) PreviewNotification(w http.ResponseWriter, r *http.Request) {
	var req PreviewNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	n := h.service.GeneratePersonalizedNotification(r.Context(), req.TemplateID, req.Data)
	if n == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Template not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, n)
}
