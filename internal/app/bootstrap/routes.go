// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	accountsfeature "github.com/mlanders/datahub/internal/app/features/accounts"
	apikeysfeature "github.com/mlanders/datahub/internal/app/features/apikeys"
	dataconnectionsfeature "github.com/mlanders/datahub/internal/app/features/dataconnections"
	errorsfeature "github.com/mlanders/datahub/internal/app/features/errors"
	healthfeature "github.com/mlanders/datahub/internal/app/features/health"
	loginfeature "github.com/mlanders/datahub/internal/app/features/login"
	membershipsfeature "github.com/mlanders/datahub/internal/app/features/memberships"
	productsfeature "github.com/mlanders/datahub/internal/app/features/products"
	accountstore "github.com/mlanders/datahub/internal/app/store/accounts"
	"github.com/mlanders/datahub/internal/app/system/auth"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// DataHub applies the session middleware globally (it resolves both cookie
// sessions and API-key basic auth into the request principal) and mounts
// feature routers for the JSON API: accounts, repositories, memberships,
// data connections, API keys, login, and health.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// The fetcher rebuilds the principal (account + memberships) on every
	// request, so flag changes, disables, and revocations apply immediately.
	sessionMgr.SetSessionFetcher(accountstore.NewFetcher(deps.MongoDatabase))

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	db := deps.MongoDatabase

	r := chi.NewRouter()

	// Global auth middleware: resolves the caller into a Session in context.
	// API-key basic auth takes precedence over the session cookie; failures
	// degrade to anonymous rather than erroring.
	r.Use(sessionMgr.LoadSession)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(db, sessionMgr, appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))
	r.Post("/logout", loginHandler.ServeLogout)

	// Accounts own the repository and key-minting subtrees, so the three
	// routers are composed into one mount to keep chi's wildcard happy.
	productsHandler := productsfeature.NewHandler(db, errLog, logger)
	apikeysHandler := apikeysfeature.NewHandler(db, errLog, logger)
	accountsHandler := accountsfeature.NewHandler(db, errLog, logger)
	r.Mount("/accounts", accountsfeature.Routes(accountsHandler, productsfeature.Routes(productsHandler), apikeysHandler.Create))

	// Public repository catalog (featured and public listings)
	r.Mount("/repositories", productsfeature.CatalogRoutes(productsHandler))

	// Membership lifecycle
	membershipsHandler := membershipsfeature.NewHandler(db, errLog, logger)
	r.Mount("/memberships", membershipsfeature.Routes(membershipsHandler))

	// API keys (get/revoke; minting lives under the owning account/repository)
	r.Mount("/api-keys", apikeysfeature.Routes(apikeysHandler))

	// Data connections (admin-managed storage backends)
	dataconnectionsHandler := dataconnectionsfeature.NewHandler(db, errLog, logger)
	r.Mount("/data-connections", dataconnectionsfeature.Routes(dataconnectionsHandler))

	return r, nil
}
