package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ford-at-home/ecko/internal/api/v1/dto"
	"github.com/ford-at-home/ecko/internal/middleware"
	"github.com/ford-at-home/ecko/internal/model"
	"github.com/ford-at-home/ecko/internal/service"
)

// EchoHandler serves the echo lifecycle endpoints.
type EchoHandler struct {
	echoService service.EchoService
	userService service.UserService
	validate    *validator.Validate
	logger      zerolog.Logger
}

func NewEchoHandler(
	echoService service.EchoService,
	userService service.UserService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *EchoHandler {
	return &EchoHandler{
		echoService: echoService,
		userService: userService,
		validate:    validate,
		logger:      logger.With().Str("handler", "EchoHandler").Logger(),
	}
}

// RegisterRoutes mounts echo routes under /echoes.
func (h *EchoHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/echoes", authMw(http.HandlerFunc(h.handleCollection)))
	mux.Handle("/echoes/", authMw(http.HandlerFunc(h.handleItem)))
}

func (h *EchoHandler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listEchoes(w, r)
	case http.MethodPost:
		h.commitEcho(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *EchoHandler) handleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/echoes/")
	switch {
	case rest == "init-upload":
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h.initUpload(w, r)
	case rest == "random":
		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h.getRandomEcho(w, r)
	case rest == "" || strings.Contains(rest, "/"):
		http.NotFound(w, r)
	default:
		switch r.Method {
		case http.MethodGet:
			h.getEcho(w, r, rest)
		case http.MethodDelete:
			h.deleteEcho(w, r, rest)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	}
}

// initUpload issues a presigned upload URL and a fresh echo id. No metadata
// row exists until the matching commit.
func (h *EchoHandler) initUpload(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	var req dto.InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidation(w, "file_extension is required")
		return
	}

	if _, err := h.userService.EnsureUser(r.Context(), identity); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.echoService.InitiateUpload(r.Context(), identity.UserID, req.FileExtension)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InitUploadResponse{
		UploadURL: result.UploadURL,
		EchoID:    result.EchoID,
		S3Key:     result.S3Key,
		ExpiresIn: result.ExpiresIn,
	})
}

// commitEcho persists the metadata for a previously initiated upload.
func (h *EchoHandler) commitEcho(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	var req dto.CommitEchoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "invalid JSON payload: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidation(w, "invalid echo payload: "+err.Error())
		return
	}

	if _, err := h.userService.EnsureUser(r.Context(), identity); err != nil {
		writeError(w, err)
		return
	}

	params := service.CommitEchoParams{
		Emotion:         model.Emotion(req.Emotion),
		Caption:         req.Caption,
		DurationSeconds: req.DurationSeconds,
		FileSizeBytes:   req.FileSizeBytes,
		Transcript:      req.Transcript,
		Tags:            req.Tags,
	}
	if req.Location != nil {
		params.Location = &model.Location{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Address:   req.Location.Address,
		}
	}

	echo, err := h.echoService.CommitEcho(r.Context(), identity.UserID, req.EchoID, params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewEchoResponse(echo))
}

// listEchoes returns one page of the caller's echoes, newest first.
func (h *EchoHandler) listEchoes(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	q := r.URL.Query()
	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeValidation(w, "page_size must be a positive integer")
			return
		}
		pageSize = n
	}
	var emotion *model.Emotion
	if raw := q.Get("emotion"); raw != "" {
		e := model.Emotion(raw)
		emotion = &e
	}

	page, err := h.echoService.ListEchoes(r.Context(), identity.UserID, q.Get("cursor"), pageSize, emotion)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := dto.EchoListResponse{
		Items:      make([]dto.EchoResponse, 0, len(page.Items)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Items {
		resp.Items = append(resp.Items, dto.NewEchoResponse(&page.Items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// getRandomEcho picks one of the caller's echoes with the requested emotion.
func (h *EchoHandler) getRandomEcho(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	raw := r.URL.Query().Get("emotion")
	if raw == "" {
		writeValidation(w, "emotion is required")
		return
	}

	echo, err := h.echoService.GetRandomEcho(r.Context(), identity.UserID, model.Emotion(raw))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewEchoResponse(echo))
}

func (h *EchoHandler) getEcho(w http.ResponseWriter, r *http.Request, echoID string) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	echo, err := h.echoService.GetEcho(r.Context(), identity.UserID, echoID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewEchoResponse(echo))
}

func (h *EchoHandler) deleteEcho(w http.ResponseWriter, r *http.Request, echoID string) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		writeAuthRequired(w)
		return
	}

	if err := h.echoService.DeleteEcho(r.Context(), identity.UserID, echoID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
