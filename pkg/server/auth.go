package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/frankenergie/frankenergie/pkg/log"
)

// tokenVerifier validates a raw ID token and returns the email it was issued
// to.
type tokenVerifier func(ctx context.Context, rawIDToken string) (string, error)

func oidcVerifier(v *oidc.IDTokenVerifier) tokenVerifier {
	return func(ctx context.Context, rawIDToken string) (string, error) {
		idToken, err := v.Verify(ctx, rawIDToken)
		if err != nil {
			return "", err
		}
		var claims struct {
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return "", fmt.Errorf("failed to decode claims: %w", err)
		}
		if claims.Email == "" || !claims.EmailVerified {
			return "", errors.New("id token has no verified email")
		}
		return claims.Email, nil
	}
}

// bearerToken returns the token of the Authorization header. Browsers cannot
// set headers on websocket requests so those may pass it as the token query
// parameter instead.
func bearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		return token, ok && token != ""
	}
	if r.URL.Path == "/api/ws" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		if s.bypassAuth {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			log.Ctx(ctx).WarnContext(ctx, "missing bearer token")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if s.verifier == nil {
			log.Ctx(ctx).ErrorContext(ctx, "no token verifier configured")
			writeJSONError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		email, err := s.verifier(ctx, token)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if !s.isAdmin(email) {
			log.Ctx(ctx).WarnContext(ctx, "email not allowed", slog.String("email", email))
			writeJSONError(w, "forbidden", http.StatusForbidden)
			return
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("authEmail", email)))
		ctx = context.WithValue(ctx, emailContextKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isAdmin returns true if email is in the adminEmails list.
func (s *Server) isAdmin(email string) bool {
	for _, admin := range s.adminEmails {
		if subtle.ConstantTimeCompare([]byte(email), []byte(admin)) == 1 {
			return true
		}
	}
	return false
}
