package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Validator resolves an access token to the account email. *authcore.Engine
// satisfies it.
type Validator interface {
	GetEmailFromToken(ctx context.Context, accessToken string) (string, error)
}

type emailContextKey struct{}

// EmailFromContext returns the email stored by [Guard].
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailContextKey{}).(string)
	return email, ok && email != ""
}

// Guard wraps next so that it only runs for requests carrying a valid,
// unrevoked bearer token. Every rejection is a bare 401.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			email, err := v.GetEmailFromToken(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), emailContextKey{}, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
