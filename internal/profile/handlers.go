// internal/profile/handlers.go

package profile

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/calmoraapp/calmora-backend/internal/common/utils"
)

// Handler handles profile-related HTTP requests
type Handler struct {
	service   Service
	validator *validator.Validate
}

// NewHandler creates a new profile handler
func NewHandler(service Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// GetProfile handles getting the personalization profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p := h.service.Current(r.Context())
	if p == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Profile not set")
		return
	}

	utils.RespondWithData(w, http.StatusOK, p)
}

// UpdateProfile handles replacing the personalization profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validator.Struct(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := h.service.Update(r.Context(), &req)
	utils.RespondWithData(w, http.StatusOK, p)
}
