package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"budmart/docs" //this is required to generate swagger docs
	"budmart/internal/auth"
	"budmart/internal/domain/storage"
	"budmart/internal/imagestore"
	"budmart/internal/importer"
	"budmart/internal/mailer"
	"budmart/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// imageCleaner queues image store deletions without blocking the request.
type imageCleaner interface {
	Enqueue(publicIDs ...string) int
}

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	images        imagestore.Uploader
	cleanup       imageCleaner
	mailer        mailer.Client
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	importer      *importer.Importer
	wg            sync.WaitGroup
}

// requestTimeout bounds every route except the product imports.
const requestTimeout = 60 * time.Second

type config struct {
	addr            string
	db              dbConfig
	env             string
	apiURL          string
	mail            mailConfig
	frontendURL     string
	auth            authConfig
	admin           auth.AdminCredentials
	images          imageConfig
	orderNumberSalt string
	rateLimiter     ratelimiter.Config
	turnstile       turnstileConfig
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	exp    time.Duration
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type mailConfig struct {
	host         string
	port         int
	username     string
	password     string
	fromEmail    string
	managerEmail string
}

type imageConfig struct {
	cloudinaryURL string
	folder        string
	workers       int
	retries       int
}

type dbConfig struct {
	addr        string
	maxConns    int
	maxIdleTime string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Admin-Password", turnstileHeader},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			//Set a timeout value on the request context (ctx), that will signal through ctx.Done() that the request has timed out and further processing should be stopped
			r.Use(middleware.Timeout(requestTimeout))

			r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
			docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.addr)
			r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))

			r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(NoStore)

			r.Route("/products", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(requestTimeout))

					r.Get("/", app.listProductsHandler)
					r.Get("/counts", app.productCountsHandler)

					r.Group(func(r chi.Router) {
						r.Use(app.AdminTokenMiddleware)
						r.Post("/", app.createProductHandler)
						r.Delete("/", app.deleteAllProductsHandler)
						r.Get("/import/template", app.importTemplateHandler)
						r.Get("/export/all", app.exportCSVHandler)
						r.Get("/export/xlsx", app.exportXLSXHandler)
					})

					r.Route("/{productID}", func(r chi.Router) {
						r.Get("/", app.getProductHandler)
						r.With(app.AdminTokenMiddleware).Put("/", app.updateProductHandler)
						r.With(app.AdminTokenMiddleware).Delete("/", app.deleteProductHandler)
					})
				})

				// imports outlive requestTimeout and the server write timeout
				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(importTimeout))
					r.Use(ExtendDeadlines(importTimeout + time.Minute))
					r.Use(app.AdminTokenMiddleware)
					r.Post("/bulk", app.bulkProductsHandler)
					r.Post("/import/xlsx", app.importXLSXHandler)
					r.Post("/import/csv", app.importCSVHandler)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(requestTimeout))

				r.Route("/auth", func(r chi.Router) {
					r.With(app.RateLimiterMiddleware).Post("/login", app.loginHandler)
					r.With(app.AdminTokenMiddleware).Get("/me", app.meHandler)
				})

				r.Route("/categories", func(r chi.Router) {
					r.Get("/", app.listCategoriesHandler)
					r.Get("/tree", app.categoryTreeHandler)
					r.With(app.AdminTokenMiddleware).Post("/", app.createCategoryHandler)
					r.With(app.AdminTokenMiddleware).Post("/reassign", app.reassignCategoryHandler)

					r.Route("/{categoryID}", func(r chi.Router) {
						r.Get("/", app.getCategoryHandler)
						r.With(app.AdminTokenMiddleware).Put("/", app.updateCategoryHandler)
						r.With(app.AdminTokenMiddleware).Delete("/", app.deleteCategoryHandler)
					})
				})

				r.Route("/orders", func(r chi.Router) {
					r.With(app.RateLimiterMiddleware, app.TurnstileMiddleware).Post("/", app.createOrderHandler)

					r.Group(func(r chi.Router) {
						r.Use(app.AdminTokenMiddleware)
						r.Get("/", app.listOrdersHandler)
						r.Get("/{orderID}", app.getOrderHandler)
						r.Put("/{orderID}", app.updateOrderHandler)
						r.Delete("/{orderID}", app.deleteOrderHandler)
					})
				})

				r.Route("/leads", func(r chi.Router) {
					r.With(app.RateLimiterMiddleware, app.TurnstileMiddleware).Post("/", app.createLeadHandler)

					r.Group(func(r chi.Router) {
						r.Use(app.AdminTokenMiddleware)
						r.Get("/", app.listLeadsHandler)
						r.Put("/{leadID}", app.updateLeadHandler)
						r.Delete("/{leadID}", app.deleteLeadHandler)
					})
				})

				r.Get("/banner", app.getBannerHandler)
				r.With(app.AdminTokenMiddleware).Put("/banner", app.saveBannerHandler)

				r.With(app.AdminTokenMiddleware).Post("/uploads/image", app.uploadImageHandler)
			})
		})
	})
	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/v1"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Second * 30,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		err := srv.Shutdown(ctx)
		if err == nil {
			app.logger.Info("waiting for background tasks")
			app.wg.Wait()
		}
		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
