package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/video-translate/backend/internal/auth"
)

type contextKey string

const RunClaimsKey contextKey = "run_claims"

// RunAuth validates the bearer token issued at run creation and checks that
// it is bound to the run addressed by the URL. WebSocket clients cannot set
// headers, so a "token" query parameter is accepted as a fallback.
func RunAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				http.Error(w, `{"error":"missing run token"}`, http.StatusUnauthorized)
				return
			}

			claims, err := jwtService.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			if runID := chi.URLParam(r, "id"); runID != "" && runID != claims.RunID {
				http.Error(w, `{"error":"token not valid for this run"}`, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), RunClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
