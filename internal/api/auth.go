package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"foodcart/internal/auth"
)

type ctxKey int

const principalKey ctxKey = iota

// requireManager rejects requests without a valid manager token when auth
// is enabled.
func (s *Server) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		tok := auth.BearerToken(r.Header.Get("Authorization"))
		if tok == "" {
			// browsers cannot set headers on EventSource/WebSocket
			tok = r.URL.Query().Get("access_token")
		}
		if tok == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required", r.URL.Path)
			return
		}
		p, err := s.Auth.Verify(tok)
		if err != nil {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
			return
		}
		if p.Role != auth.RoleManager {
			writeProblem(w, http.StatusForbidden, "Forbidden", "manager role required", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// principal returns the caller set by requireManager, or an anonymous one.
func principal(r *http.Request) auth.Principal {
	if p, ok := r.Context().Value(principalKey).(auth.Principal); ok {
		return p
	}
	return auth.Principal{Subject: "anonymous"}
}

// TokenHandler handles POST /v1/auth/token
func (s *Server) TokenHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if !s.Auth.Enabled() {
		writeProblem(w, http.StatusNotFound, "Auth disabled", "AUTH_MODE is off", r.URL.Path)
		return
	}
	tok, exp, err := s.Auth.Login(body.Username, body.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.Log.Warn("manager login failed", "username", body.Username)
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", err.Error(), r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Login failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": tok,
		"tokenType":   "Bearer",
		"expiresAt":   exp.UTC().Format(time.RFC3339),
	})
}
