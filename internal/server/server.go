package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"thriftscan/valuator/internal/server/api"
)

// Pinger reports database liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators behind the HTTP surface.
type Deps struct {
	DB          Pinger
	Store       api.Store
	Communities CommunityLister
	Processor   api.PostProcessor
	Automation  api.Automation
	APIKey      string
	PublicURL   string
	// DefaultInterval is used by automation/start when the body names none.
	DefaultInterval time.Duration
}

// apiKeyMiddleware checks for the X-API-Key header and validates it against the provided key.
// If key is empty, it allows all requests.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqAPIKey := r.Header.Get("X-API-Key")
			if reqAPIKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}

			if reqAPIKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the routing tree and the request logging chain.
func NewRouter(deps Deps, logger zerolog.Logger) http.Handler {
	valuations := api.NewValuationsHandler(deps.Store, deps.Processor, deps.PublicURL)
	automation := api.NewAutomationHandler(deps.Automation, deps.Store, deps.DefaultInterval)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheckHandler(deps.DB))
	r.Get("/value/{slug}", valuations.Page)

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", valuations.Categories)
		r.Get("/valuations", valuations.List)
		r.Get("/valuations/{slug}", valuations.Get)
		r.Post("/valuations/{slug}/events", valuations.RecordEvent)

		r.Group(func(r chi.Router) {
			r.Use(apiKeyMiddleware(deps.APIKey))
			r.Post("/admin/valuations", valuations.Create)
			r.Post("/admin/valuations/{slug}/remove", valuations.Remove)

			r.Route("/automation", func(r chi.Router) {
				r.Get("/status", automation.Status)
				r.Post("/start", automation.Start)
				r.Post("/stop", automation.Stop)
				r.Post("/run", automation.Run)
			})
		})
	})

	r.With(apiKeyMiddleware(deps.APIKey)).Get("/v1/communities", exportCommunitiesHandler(deps.Communities))

	if deps.APIKey != "" {
		logger.Info().Msg("API key authentication enabled for admin routes")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}

	// Set up middleware chain for logging and request tracking
	h := hlog.NewHandler(logger)(r)
	h = hlog.MethodHandler("method")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(h)
	return h
}

// RunServer starts the HTTP server with graceful shutdown support.
// It returns once a shutdown signal was handled or ctx ends.
func RunServer(ctx context.Context, handler http.Handler, listenAddr string, logger zerolog.Logger) error {
	logger = logger.With().Str("service", "valuation-api").Logger()

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Admin processing waits on the completion API.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case <-ctx.Done():
		logger.Info().Msg("Context done, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
		if err := httpServer.Close(); err != nil {
			logger.Error().Err(err).Msg("HTTP server force close error")
		}
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
	if err := <-serverErr; err != nil {
		logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
	}

	logger.Info().Msg("Server exiting.")
	return nil
}
