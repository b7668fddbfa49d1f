package util

import (
	"net/http"

	"github.com/rs/cors"
)

// DefaultCORSOrigin is used when no origins are configured.
const DefaultCORSOrigin = "http://localhost:3000"

// WithCORS allows browser calls from the configured frontend origins.
func WithCORS(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{DefaultCORSOrigin}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler(next)
}
