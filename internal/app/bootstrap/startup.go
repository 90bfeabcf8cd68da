// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/taskgroups/internal/app/system/auth"
	"github.com/dalemusser/taskgroups/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time initialization after the backends are connected and
// the schema is in place: handler timeouts and the actor identity sources.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
		Lock:   appCfg.TimeoutLock,
	})
	cur := timeouts.Current()
	logger.Info("handler timeouts",
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium),
		zap.Duration("long", cur.Long),
		zap.Duration("lock", cur.Lock))

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	if err := auth.InitSessionStore(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger); err != nil {
		logger.Error("session store init failed", zap.Error(err))
		return err
	}

	auth.ConfigureBearer(appCfg.JWTSecret)
	if appCfg.JWTSecret == "" {
		logger.Info("bearer tokens disabled (jwt_secret not set)")
	}
	return nil
}
