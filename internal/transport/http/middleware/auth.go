package middleware

import (
	"context"
	"net/http"
	"strings"

	"peopleops/internal/domain/auth"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// SessionChecker answers whether the session a token was issued against is
// still live. The auth store satisfies it.
type SessionChecker interface {
	SessionActive(ctx context.Context, userID, tokenHash string) (bool, error)
}

// Auth parses a bearer token into the request context and, when a session
// checker is supplied, drops tokens whose session has been revoked or has
// expired. Requests without a valid token stay anonymous; guards downstream
// turn that into a 401.
func Auth(secret string, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if sessions != nil {
				active, err := sessions.SessionActive(r.Context(), claims.UserID, auth.HashToken(claims.SessionID))
				if err != nil || !active {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, auth.UserContext{
				UserID:    claims.UserID,
				Email:     claims.Email,
				RoleName:  claims.RoleName,
				SessionID: claims.SessionID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser is a test helper for seeding a principal on a context.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}
