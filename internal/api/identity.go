package api

import (
	"context"
	"net/http"
	"strings"
)

// RoleAdmin grants access to the /admin routes.
const RoleAdmin = "admin"

// Identity is the caller as asserted by the auth gateway.
type Identity struct {
	Email string
	Role  string
}

type identityKey struct{}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// authenticate reads the identity headers. ok is false when the email
// header is missing or blank.
func (s *Server) authenticate(r *http.Request) (Identity, bool) {
	email := strings.TrimSpace(r.Header.Get(s.identityHeader))
	if email == "" {
		return Identity{}, false
	}
	return Identity{
		Email: strings.ToLower(email),
		Role:  strings.ToLower(strings.TrimSpace(r.Header.Get(s.roleHeader))),
	}, true
}

// user wraps h so it only runs for identified callers.
func (s *Server) user(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing identity")
			return
		}
		h(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// admin wraps h so it only runs for callers with [RoleAdmin].
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.user(func(w http.ResponseWriter, r *http.Request) {
		if id, _ := IdentityFrom(r.Context()); id.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		h(w, r)
	})
}
