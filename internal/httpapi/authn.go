package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pts.app/internal/auth"
	"pts.app/internal/directory"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil || !a.auth.SupportsTokens() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		user, claims, err := a.auth.AuthenticateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthorized):
				writeError(w, r, http.StatusUnauthorized, "invalid token")
			default:
				writeError(w, r, http.StatusInternalServerError, "authentication error")
			}
			return
		}

		ctx := auth.ContextWithActor(r.Context(), auth.Actor{
			UserID:   user.ID,
			PersonID: claims.PersonID,
		})
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole checks that the caller holds at least min on some active
// assignment. Directory mutations are gated this way; unknown or missing
// roles always deny.
func (a *API) requireRole(ctx context.Context, min directory.Role) error {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok || actor.PersonID == "" {
		return auth.ErrUnauthorized
	}
	assigns, err := a.directory.ListActiveAssignments(ctx, actor.PersonID)
	if err != nil {
		return auth.ErrUnauthorized
	}
	for _, as := range assigns {
		if as.Role.AtLeast(min) {
			return nil
		}
	}
	return auth.ErrUnauthorized
}

func (a *API) ensureRole(w http.ResponseWriter, r *http.Request, min directory.Role) bool {
	if err := a.requireRole(r.Context(), min); err != nil {
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
