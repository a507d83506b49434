package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ExtractBearerToken pulls the token out of an Authorization header.
// Returns the token and an error message (empty if successful).
func ExtractBearerToken(header string) (string, string) {
	if header == "" {
		return "", "No token, authorization denied"
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", "Invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", "No token, authorization denied"
	}
	return token, ""
}

// Middleware rejects requests without a valid bearer token and stores the
// verified identity in the request context.
func Middleware(verifier TokenVerifier, onFailure func(r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, msg := ExtractBearerToken(r.Header.Get("Authorization"))
			if msg != "" {
				if onFailure != nil {
					onFailure(r, ErrInvalidToken)
				}
				writeUnauthorized(w, msg)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				if onFailure != nil {
					onFailure(r, err)
				}
				writeUnauthorized(w, "Token is not valid")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Subject)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
