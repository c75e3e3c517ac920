package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated is returned when a request carries no usable identity
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the identity of the caller
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// HeaderAuthenticator trusts an identity header set by a fronting proxy
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	identity := strings.TrimSpace(r.Header.Get(a.Header))
	if identity == "" {
		return "", ErrUnauthenticated
	}
	return identity, nil
}

// PasswordAuthenticator checks HTTP basic credentials against bcrypt hashes
type PasswordAuthenticator struct {
	hashes map[string][]byte
}

// NewPasswordAuthenticator builds an authenticator from user name → bcrypt hash
func NewPasswordAuthenticator(users map[string]string) *PasswordAuthenticator {
	hashes := make(map[string][]byte, len(users))
	for name, hash := range users {
		hashes[name] = []byte(hash)
	}
	return &PasswordAuthenticator{hashes: hashes}
}

func (a *PasswordAuthenticator) Authenticate(r *http.Request) (string, error) {
	name, password, ok := r.BasicAuth()
	if !ok {
		return "", ErrUnauthenticated
	}
	hash, known := a.hashes[name]
	if !known {
		return "", ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", ErrUnauthenticated
	}
	return name, nil
}

type identityKey struct{}

// IdentityFrom returns the identity stored by the auth middleware
func IdentityFrom(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey{}).(string)
	return identity, ok && identity != ""
}

func withIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// requireIdentity rejects requests the authenticator cannot identify
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := s.auth.Authenticate(r)
		if err != nil {
			if _, basic := s.auth.(*PasswordAuthenticator); basic {
				w.Header().Set("WWW-Authenticate", `Basic realm="sheetedit", charset="UTF-8"`)
			}
			s.sendError(w, r, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}
