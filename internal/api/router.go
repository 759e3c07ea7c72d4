package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/erazemk/gimmie/internal/exchange"
	"github.com/erazemk/gimmie/internal/list"
	"github.com/erazemk/gimmie/internal/metrics"
	"github.com/erazemk/gimmie/internal/store"
)

// Options are the dependencies of the HTTP API.
type Options struct {
	Store       *store.Store
	List        *list.Service
	Transformer *exchange.Transformer
	Metrics     *metrics.Metrics // optional; /metrics is not served when nil
	JWTSecret   string
	CORSOrigins []string
}

// NewRouter creates the API router with all endpoints registered and the
// common middleware applied.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Store: opts.Store, JWTSecret: opts.JWTSecret}
	itemsHandler := &ItemsHandler{Service: opts.List}
	archiveHandler := &ArchiveHandler{Service: opts.List}
	exchangeHandler := &ExchangeHandler{Transformer: opts.Transformer}

	authMW := AuthMiddleware(opts.JWTSecret, opts.Store)

	// Public.
	mux.HandleFunc("GET /healthz", health)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	// Session.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Items. ?health=1 answers without a session.
	listItems := authMW(http.HandlerFunc(itemsHandler.List))
	mux.HandleFunc("GET /api/items", func(w http.ResponseWriter, r *http.Request) {
		if queryFlag(r, "health") {
			health(w, r)
			return
		}
		listItems.ServeHTTP(w, r)
	})
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("POST /api/items/{id}/complete", authMW(http.HandlerFunc(itemsHandler.Complete)))
	mux.Handle("POST /api/items/{id}/move", authMW(http.HandlerFunc(itemsHandler.Move)))

	// Archive.
	mux.Handle("GET /api/archive", authMW(http.HandlerFunc(archiveHandler.List)))
	mux.Handle("POST /api/archive/{id}/restore", authMW(http.HandlerFunc(archiveHandler.Restore)))

	// Import/export.
	mux.Handle("GET /api/export", authMW(http.HandlerFunc(exchangeHandler.Export)))
	mux.Handle("POST /api/import", authMW(http.HandlerFunc(exchangeHandler.Import)))

	chain := chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		LoggingMiddleware,
		middleware.Recoverer,
	)
	if len(opts.CORSOrigins) > 0 {
		chain = append(chain, cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	return chain.Handler(mux)
}

func health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
