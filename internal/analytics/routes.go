// internal/analytics/routes.go

package analytics

import (
	"github.com/gorilla/mux"

	"github.com/calmoraapp/calmora-backend/internal/auth"
)

// RegisterRoutes registers all analytics routes
func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Event ingestion
	api.HandleFunc("/events/sent", handler.TrackSent).Methods("POST")
	api.HandleFunc("/events/delivered", handler.TrackDelivered).Methods("POST")
	api.HandleFunc("/events/opened", handler.TrackOpened).Methods("POST")
	api.HandleFunc("/events/dismissed", handler.TrackDismissed).Methods("POST")
	api.HandleFunc("/events/action", handler.TrackAction).Methods("POST")
	api.HandleFunc("/events/failed", handler.TrackFailed).Methods("POST")
	api.HandleFunc("/events", handler.ListEvents).Methods("GET")

	// Derived statistics
	api.HandleFunc("/analytics", handler.GetAnalytics).Methods("GET")
	api.HandleFunc("/analytics/export", handler.ExportAnalytics).Methods("GET")
	api.HandleFunc("/analytics/recompute", handler.RecomputeAnalytics).Methods("POST")

	// Delivery subsystem views
	api.HandleFunc("/delivery/pending", handler.ListPending).Methods("GET")
	api.HandleFunc("/delivery/delivered", handler.ListDelivered).Methods("GET")
}
