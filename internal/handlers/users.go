package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/carelink/internal/auth"
	"github.com/BradenHooton/carelink/internal/models"
	pkghttp "github.com/BradenHooton/carelink/pkg/http"
	"github.com/go-chi/chi/v5"
)

// UserService defines the account administration the user handler exposes.
type UserService interface {
	UpdateStatus(ctx context.Context, actor *models.RequestUser, targetID string, status models.UserStatus) (*models.User, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// UpdateStatusRequest represents the request body for changing an account status
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE BLOCKED DELETED"`
}

// UserStatusResponse is the account view returned after a status change.
type UserStatusResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      models.Role       `json:"role"`
	Status    models.UserStatus `json:"status"`
	IsDeleted bool              `json:"isDeleted"`
	DeletedAt *time.Time        `json:"deletedAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// RegisterRoutes registers the admin user routes behind guard.
func (h *UserHandler) RegisterRoutes(router chi.Router, guard func(http.Handler) http.Handler) {
	router.Route("/users", func(r chi.Router) {
		r.Use(guard)
		r.Patch("/{id}/status", h.UpdateStatus) // PATCH /users/{id}/status
	})
}

// UpdateStatus blocks, deletes or reactivates an account
//
// @Param id path string true "User ID"
// @Router /users/{id}/status [patch]
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "You are not logged in")
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.UpdateStatus(r.Context(), actor, chi.URLParam(r, "id"), models.UserStatus(req.Status))
	if err != nil {
		pkghttp.WriteAppError(w, h.logger, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "User status updated successfully", UserStatusResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Status:    user.Status,
		IsDeleted: user.IsDeleted,
		DeletedAt: user.DeletedAt,
		UpdatedAt: user.UpdatedAt,
	})
}
