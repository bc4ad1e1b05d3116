package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type identityContextKey struct{}

// IdentityMiddleware records who the caller claims to be. Verification is
// out of scope here; an absent identity becomes "unknown".
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if identity == "" {
			identity = bearerToken(r.Header.Get("Authorization"))
		}
		if identity == "" {
			identity = "unknown"
		}
		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerIdentity(r *http.Request) string {
	value := r.Context().Value(identityContextKey{})
	identity, ok := value.(string)
	if !ok || identity == "" {
		return "unknown"
	}
	return identity
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
