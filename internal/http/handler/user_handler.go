package handler

import (
	"errors"
	"net/http"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/middleware"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/http/response"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

type UserHandler struct {
	userSvc service.UserServiceInterface
}

func NewUserHandler(userSvc service.UserServiceInterface) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// Me returns the session's identity as currently stored, so a deleted
// account loses its session immediately.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	u, err := h.userSvc.GetByID(r.Context(), claims.Subject)
	if errors.Is(err, service.ErrUserNotFound) {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "Internal server error", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user": identityView{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role)},
		"expires_at": claims.ExpiresAt.Time,
	})
}
