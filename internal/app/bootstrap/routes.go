// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	healthfeature "github.com/dalemusser/taskgroups/internal/app/features/health"
	sharedgroupsfeature "github.com/dalemusser/taskgroups/internal/app/features/sharedgroups"
	"github.com/dalemusser/taskgroups/internal/app/system/auth"
	"github.com/dalemusser/taskgroups/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// joinLimiter throttles join and role-upgrade filings. Shutdown stops it.
var joinLimiter *ratelimit.Limiter

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. The router loads the signed-in user on
// every request and mounts the groups API, the notifications inbox and the
// health check.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := buildService(appCfg, deps, logger)

	if appCfg.JoinRateLimit > 0 {
		joinLimiter = ratelimit.New(appCfg.JoinRateLimit, time.Minute)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)

	// Global auth middleware: loads SessionUser into context if signed in
	// by cookie or bearer token.
	r.Use(auth.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	groupsHandler := sharedgroupsfeature.NewHandler(svc, logger)
	r.Mount("/groups", sharedgroupsfeature.Routes(groupsHandler, joinLimiter))
	r.Mount("/notifications", sharedgroupsfeature.NotificationRoutes(groupsHandler))

	return r, nil
}
