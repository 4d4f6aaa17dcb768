package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const ClientContextKey contextKey = "client"

// ClientContext carries the authenticated client's identity.
type ClientContext struct {
	ClientID   string
	ClientName string
}

// Middleware validates bearer tokens and attaches the client identity to
// the request context.
func Middleware(authService *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"code":"UNAUTHORIZED","message":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				http.Error(w, `{"code":"UNAUTHORIZED","message":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			claims, err := authService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == ErrTokenExpired {
					http.Error(w, `{"code":"TOKEN_EXPIRED","message":"access token has expired"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"code":"UNAUTHORIZED","message":"invalid access token"}`, http.StatusUnauthorized)
				return
			}

			clientCtx := &ClientContext{
				ClientID:   claims.ClientID,
				ClientName: claims.ClientName,
			}

			ctx := context.WithValue(r.Context(), ClientContextKey, clientCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientFromContext returns the authenticated client, or nil.
func GetClientFromContext(ctx context.Context) *ClientContext {
	client, ok := ctx.Value(ClientContextKey).(*ClientContext)
	if !ok {
		return nil
	}
	return client
}
