package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ford-at-home/ecko/internal/api/v1/dto"
	"github.com/ford-at-home/ecko/internal/middleware"
	"github.com/ford-at-home/ecko/internal/service"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	userService service.UserService
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.With().Str("handler", "UserHandler").Logger(),
	}
}

func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.handleMe)))
}

func (h *UserHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getMe(w, r)
	case http.MethodDelete:
		h.deleteMe(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	user, err := h.userService.EnsureUser(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewUserResponse(user))
}

// deleteMe removes the account and every echo it owns: blobs best effort,
// echo rows, then the user row.
func (h *UserHandler) deleteMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), identity.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
