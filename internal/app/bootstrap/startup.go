// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"

	accountstore "github.com/mlanders/datahub/internal/app/store/accounts"
	"github.com/mlanders/datahub/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// DataHub uses it to promote the configured bootstrap identity to admin, so
// the first operator can reach the admin-only surfaces (data connections,
// account flags) without hand-editing the database.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.BootstrapAdminIdentity == "" {
		return nil
	}

	store := accountstore.New(deps.MongoDatabase)
	a, err := store.GetByIdentity(ctx, appCfg.BootstrapAdminIdentity)
	if err != nil {
		if errors.Is(err, accountstore.ErrNotFound) {
			// The identity has not created an account yet. Not an error:
			// promotion happens on a later restart once the account exists.
			logger.Info("bootstrap admin identity has no account yet",
				zap.String("identity_id", appCfg.BootstrapAdminIdentity))
			return nil
		}
		return err
	}

	if a.HasFlag(models.FlagAdmin) {
		return nil
	}

	if err := store.SetFlags(ctx, a.AccountID, append(a.Flags, models.FlagAdmin)); err != nil {
		logger.Error("bootstrap admin promotion failed",
			zap.String("account_id", a.AccountID), zap.Error(err))
		return err
	}

	logger.Info("promoted bootstrap admin",
		zap.String("account_id", a.AccountID),
		zap.String("identity_id", appCfg.BootstrapAdminIdentity))
	return nil
}
