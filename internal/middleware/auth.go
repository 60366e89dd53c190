package middleware

import (
	"context"
	"net/http"

	"github.com/vancomm/classic-minesweeper/internal/config"
)

type CtxKey int

const (
	CtxSessionClaims CtxKey = iota
	CtxRequestId
)

// Auth puts valid session claims into the request context. Requests without
// them pass through untouched; handlers decide what needs a token.
func Auth(cookies *config.Cookies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := cookies.ParseSessionClaims(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), CtxSessionClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetSessionClaims(ctx context.Context) (*config.SessionClaims, bool) {
	claims, ok := ctx.Value(CtxSessionClaims).(*config.SessionClaims)
	return claims, ok
}
