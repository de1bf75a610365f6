// Package api implements the Cardboard HTTP surface using chi.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cardboard/internal/apperr"
	"github.com/starford/cardboard/internal/session"
)

// TokenCookie carries the access token for browser requests.
const TokenCookie = "cardboard_token"

// AuthMiddleware returns middleware that validates an access token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry "Authorization: Bearer <token>",
// the token cookie, or a "token" query parameter. A valid query parameter
// sets the cookie so the page's own API calls are authorised.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") && equal(strings.TrimPrefix(auth, "Bearer "), token) {
				next.ServeHTTP(w, r)
				return
			}
			if c, err := r.Cookie(TokenCookie); err == nil && equal(c.Value, token) {
				next.ServeHTTP(w, r)
				return
			}
			if q := r.URL.Query().Get("token"); q != "" && equal(q, token) {
				http.SetCookie(w, &http.Cookie{
					Name:     TokenCookie,
					Value:    q,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteStrictMode,
				})
				next.ServeHTTP(w, r)
				return
			}
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type sessionKey struct{}

// SessionMiddleware resolves the {sid} URL parameter to a live session.
func SessionMiddleware(reg *session.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := reg.Get(chi.URLParam(r, "sid"))
			if err != nil {
				if errors.Is(err, apperr.ErrSessionNotFound) {
					writeJSON(w, http.StatusNotFound, errorBody("session not found"))
					return
				}
				writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, s)))
		})
	}
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return s
}
