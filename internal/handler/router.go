package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	validationHandler *ValidationHandler,
	secretMiddleware func(http.Handler) http.Handler,
	requestMiddleware func(http.Handler) http.Handler,
	allowedOrigins []string,
) http.Handler {
	router := mux.NewRouter()
	router.Use(requestMiddleware)

	// Health check endpoint (no secret required)
	router.HandleFunc("/health", validationHandler.Health).Methods("GET")

	protected := router.PathPrefix("").Subrouter()
	protected.Use(secretMiddleware)

	protected.HandleFunc("/validate", validationHandler.Validate).Methods("POST")
	protected.HandleFunc("/validate/batch", validationHandler.ValidateBatch).Methods("POST")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			SecretHeader,
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		MaxAge: 300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
