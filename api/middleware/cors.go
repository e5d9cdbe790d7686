package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// expo dev server and expo web
var devOrigins = []string{"http://localhost:8081", "http://localhost:19006"}

// CORS applies the allowed origin policy. No origins means the local
// development origins.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = devOrigins
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, FormIDHeader, RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, AccessTokenHeader, ReplayedHeader, "Retry-After"},
		MaxAge:         300,
	})
}
