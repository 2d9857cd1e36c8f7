package httpapi

import (
	"net/http"
	"strings"

	"pts.app/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	auth.TokenPair
	UserID   string `json:"user_id"`
	PersonID string `json:"person_id"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	pair, user, err := a.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	a.audit(r.Context(), "auth.signin", "user", user.ID, map[string]string{
		"email": strings.TrimSpace(strings.ToLower(req.Email)),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		TokenPair: pair,
		UserID:    user.ID,
		PersonID:  user.PersonID,
	})
}

func (a *API) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, user, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		TokenPair: pair,
		UserID:    user.ID,
		PersonID:  user.PersonID,
	})
}

func (a *API) handleAuthSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := a.auth.SignOut(r.Context(), actor.UserID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	a.audit(r.Context(), "auth.signout", "user", actor.UserID, nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}
