package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/onliner/medibill/internal/http/auth"
	invoiceHandler "github.com/onliner/medibill/internal/http/invoice"
	signingHandler "github.com/onliner/medibill/internal/http/signing"
)

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
}

func New(
	invoicesV1 *invoiceHandler.Handler,
	signingV1 *signingHandler.Handler,
	opts Options,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/invoices", func(r chi.Router) {
			invoicesV1.Routes(r)

			// Hospital-side actions carry the signer identity.
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireSigner(opts.JWTSecret))
				signingV1.Routes(r)
			})
		})
	})

	return router
}
