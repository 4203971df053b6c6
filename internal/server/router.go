// Package server assembles the HTTP router.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/radif/envelope/docs/swagger"
	"github.com/radif/envelope/internal/config"
	appMiddleware "github.com/radif/envelope/internal/middleware"
	"github.com/radif/envelope/internal/proxy"
	"github.com/radif/envelope/internal/response"
	"github.com/radif/envelope/internal/sample"
)

const upstreamPrefix = "/api/v1/upstream"

// DefaultItems is the sample catalog served under /api/v1/sample.
var DefaultItems = []sample.Item{
	{ID: "1", Name: "Notebook", Price: 4.5},
	{ID: "2", Name: "Fountain pen", Price: 32},
	{ID: "3", Name: "Ink cartridge", Price: 2.25},
}

// NewRouter builds the API router. Every response leaves through the
// envelope middleware; errors raised by handlers go through the translator.
func NewRouter(cfg *config.Config, logger *slog.Logger) (http.Handler, error) {
	opts := appMiddleware.Options{
		DiagnosticsVisible: cfg.DiagnosticsVisible(),
		DocsPrefix:         cfg.DocsPrefix,
		DocsMarkers:        cfg.DocsMarkers,
		Logger:             logger,
	}
	translator := appMiddleware.NewTranslator(opts)
	rewriter := appMiddleware.NewRewriter(opts)

	var upstream http.Handler
	if cfg.UpstreamURL != "" {
		u, err := url.Parse(cfg.UpstreamURL)
		if err != nil {
			return nil, fmt.Errorf("parse upstream url: %w", err)
		}
		upstream = proxy.New(u, upstreamPrefix, logger)
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(translator.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(rewriter.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteProblem(w, http.StatusNotFound, "no route for "+r.URL.Path, r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.WriteProblem(w, http.StatusMethodNotAllowed, r.Method+" is not supported for "+r.URL.Path, r.URL.Path)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	// Swagger UI, e.g. http://localhost:8080/swagger/index.html
	r.Get(cfg.DocsPrefix+"/*", httpSwagger.Handler(
		httpSwagger.URL(cfg.DocsPrefix+"/doc.json"),
	))

	auth := appMiddleware.RequireAuth(cfg.JWTSecret, translator)
	samples := sample.NewHandler(DefaultItems)
	openAPIDoc := []byte(swagger.SwaggerInfo.ReadDoc())

	r.Route("/api/v1", func(r chi.Router) {
		// Same document as the UI serves, outside the docs prefix.
		r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", response.ContentTypeJSON)
			_, _ = w.Write(openAPIDoc)
		})

		r.Mount("/sample", samples.Routes(translator, auth))

		if upstream != nil {
			r.Handle("/upstream/*", upstream)
		}
	})

	return r, nil
}
