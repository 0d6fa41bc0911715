// internal/campaign/routes.go

package campaign

import (
	"github.com/gorilla/mux"

	"github.com/calmoraapp/calmora-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	// Protected routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Campaigns
	api.HandleFunc("/campaigns", handler.CreateCampaign).Methods("POST")
	api.HandleFunc("/campaigns", handler.ListCampaigns).Methods("GET")
	api.HandleFunc("/campaigns/welcome", handler.CreateWelcomeCampaign).Methods("POST")
	api.HandleFunc("/campaigns/daily-reminder", handler.CreateDailyReminderCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}", handler.GetCampaign).Methods("GET")
	api.HandleFunc("/campaigns/{id}/cancel", handler.CancelCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}/pause", handler.PauseCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}/resume", handler.ResumeCampaign).Methods("POST")

	// Template catalog
	api.HandleFunc("/templates", handler.ListTemplates).Methods("GET")
	api.HandleFunc("/templates/search", handler.SearchTemplates).Methods("GET")
	api.HandleFunc("/templates/{id}", handler.GetTemplate).Methods("GET")

	// Ad-hoc rendering
	api.HandleFunc("/notifications/preview", handler.PreviewNotification).Methods("POST")
}
