package api

import (
	"net/http"
	"strings"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/directory"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.auth.Register(req.Email, req.Password, req.Name)
	if err != nil {
		observability.RecordSecurityAudit(r.Context(), "register", req.Email, observability.StatusFailure, nil)
		h.writeError(w, r, err)
		return
	}
	observability.RecordSecurityAudit(r.Context(), "register", user.ID.String(), observability.StatusSuccess, nil)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    user.Profile(),
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		observability.RecordSecurityAudit(r.Context(), "login", req.Email, observability.StatusFailure, nil)
		h.writeError(w, r, err)
		return
	}
	observability.RecordSecurityAudit(r.Context(), "login", req.Email, observability.StatusSuccess, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
	})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.ByID(caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.users.Rename(caller(r), strings.TrimSpace(req.Name))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Name updated",
		"name":    user.Name,
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	others := h.users.Others(caller(r))

	profiles := make([]directory.Profile, 0, len(others))
	for _, u := range others {
		profiles = append(profiles, u.Profile())
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": profiles})
}
