// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	applicationsfeature "github.com/sanghsetu/sanghsetu/internal/app/features/applications"
	healthfeature "github.com/sanghsetu/sanghsetu/internal/app/features/health"
	unitsfeature "github.com/sanghsetu/sanghsetu/internal/app/features/units"
	"github.com/sanghsetu/sanghsetu/internal/app/registry"
	"github.com/sanghsetu/sanghsetu/internal/app/review"
	"github.com/sanghsetu/sanghsetu/internal/app/roster"
	"github.com/sanghsetu/sanghsetu/internal/app/routing"
	applicationstore "github.com/sanghsetu/sanghsetu/internal/app/store/applications"
	identitystore "github.com/sanghsetu/sanghsetu/internal/app/store/identities"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/ratelimit"
	"github.com/sanghsetu/sanghsetu/internal/app/terms"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and Startup have completed. It wires the stores and services once and
// mounts the feature routers: health, units, and applications.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	units := unitstore.New(deps.MongoDatabase)
	apps := applicationstore.New(deps.MongoDatabase)
	identities := identitystore.New(deps.MongoDatabase)
	docs, notify := collaborators(logger)

	registrySvc := registry.New(units, identities, logger)
	rosterSvc := roster.New(units, identities, docs, logger)
	termsSvc := terms.New(units, identities, logger)
	router := routing.New(units, logger)
	reviewSvc := review.New(apps, router, identities, notify, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	unitsHandler := unitsfeature.NewHandler(registrySvc, rosterSvc, termsSvc, logger)
	r.Mount("/units", unitsfeature.Routes(unitsHandler))

	appsHandler := applicationsfeature.NewHandler(reviewSvc, apps, logger)
	r.Route("/applications", func(r chi.Router) {
		// Submissions are cheap to create and expensive to review; keep
		// individual clients from flooding the queue.
		r.Use(ratelimit.Middleware(30, time.Minute))
		r.Mount("/", applicationsfeature.Routes(appsHandler))
	})

	return r, nil
}
