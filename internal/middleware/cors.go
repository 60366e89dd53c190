package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// Cors allows the listed origins with credentials, so the session cookie
// reaches the game routes. With no origins listed every origin is allowed,
// but only without credentials; such clients authenticate with a bearer
// token.
func Cors(origins ...string) Middleware {
	options := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIdHeader},
		ExposedHeaders:   []string{RequestIdHeader},
		AllowCredentials: len(origins) > 0,
	}
	if len(origins) == 0 {
		options.AllowedOrigins = []string{"*"}
	}
	return cors.New(options).Handler
}
