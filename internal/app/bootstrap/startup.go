// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/collab"
	identitystore "github.com/sanghsetu/sanghsetu/internal/app/store/identities"
	unitstore "github.com/sanghsetu/sanghsetu/internal/app/store/units"
	"github.com/sanghsetu/sanghsetu/internal/app/system/workers"
	"github.com/sanghsetu/sanghsetu/internal/app/terms"
)

// termSweep is started here and stopped in Shutdown.
var termSweep *workers.TermSweep

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
// The lapsed-term sweep starts here so terms expire on schedule even
// when no requests arrive.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	units := unitstore.New(deps.MongoDatabase)
	identities := identitystore.New(deps.MongoDatabase)
	termSvc := terms.New(units, identities, logger)

	termSweep = workers.NewTermSweep(termSvc, logger, appCfg.TermSweepInterval)
	termSweep.Start()
	return nil
}

// collaborators builds the external-collaborator implementations shared
// by the services.
func collaborators(logger *zap.Logger) (collab.DocumentStore, collab.NotificationSink) {
	return collab.LogDocumentStore{Log: logger}, collab.LogNotifier{Log: logger}
}
