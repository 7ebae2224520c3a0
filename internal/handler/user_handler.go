package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"littlejoys/internal/domain"
	"littlejoys/internal/middleware"
	"littlejoys/internal/service"
)

// UserHandler handles profile and notification endpoints
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// UpdateProfileRequest carries the editable profile fields
type UpdateProfileRequest struct {
	Nickname  string `json:"nickname"`
	Bio       string `json:"bio"`
	AvatarURL string `json:"avatar_url"`
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.userService.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}

	writeSuccess(w, http.StatusOK, toUserResponse(user), "")
}

// UpdateProfile edits the authenticated user's profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, &domain.ProfileUpdate{
		Nickname:  req.Nickname,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	writeSuccess(w, http.StatusOK, toUserResponse(user), "Profile updated")
}

// GetStats returns aggregate interaction counts for the user's posts
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	stats, err := h.userService.GetStats(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	writeSuccess(w, http.StatusOK, stats, "")
}

// ListNotifications returns the user's recent notifications
func (h *UserHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	notifications, err := h.userService.ListNotifications(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load notifications")
		return
	}

	writeSuccess(w, http.StatusOK, notifications, "")
}

// MarkNotificationRead marks one of the user's notifications as read
func (h *UserHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.userService.MarkNotificationRead(r.Context(), id, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}

	writeSuccess(w, http.StatusOK, nil, "")
}
