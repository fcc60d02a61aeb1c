// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	"github.com/sanghsetu/sanghsetu/internal/app/system/indexes"
)

// EnsureSchema sets up the collection indexes, including the partial
// unique indexes backing unit-location and verification-number
// uniqueness.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	return indexes.EnsureAll(ctx, deps.MongoDatabase)
}
