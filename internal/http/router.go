package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ulule/limiter/v3"
	limiterhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/MrJamesThe3rd/pocketmoney/internal/http/account"
	"github.com/MrJamesThe3rd/pocketmoney/internal/http/importcsv"
	"github.com/MrJamesThe3rd/pocketmoney/internal/http/statement"
)

type Options struct {
	// RateLimit throttles transaction posting per client IP, in limiter's
	// "<limit>-<period>" format such as "60-M". Empty disables it.
	RateLimit      string
	AllowedOrigins []string
}

func New(
	opts Options,
	accountsV1 *account.Handler,
	importV1 *importcsv.Handler,
	statementV1 *statement.Handler,
) (http.Handler, error) {
	limit, err := rateLimit(opts.RateLimit)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			accountsV1.Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(limit)
				accountsV1.TransactionRoutes(r)
				r.Route("/{id}/import", importV1.Routes)
			})

			r.Route("/{id}/statement", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				statementV1.Routes(r)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Route("/services", accountsV1.ServiceRoutes)
		})
	})

	return router, nil
}

func rateLimit(format string) (func(http.Handler) http.Handler, error) {
	if format == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	rate, err := limiter.NewRateFromFormatted(format)
	if err != nil {
		return nil, fmt.Errorf("parsing rate limit %q: %w", format, err)
	}

	return limiterhttp.NewMiddleware(limiter.New(memory.NewStore(), rate)).Handler, nil
}
