// internal/app/bootstrap/services.go
package bootstrap

import (
	"github.com/dalemusser/taskgroups/internal/app/collab"
	auditstore "github.com/dalemusser/taskgroups/internal/app/store/audit"
	sharedgroupstore "github.com/dalemusser/taskgroups/internal/app/store/sharedgroups"
	"github.com/dalemusser/taskgroups/internal/app/system/auditlog"
	"github.com/dalemusser/taskgroups/internal/app/system/events"
	"github.com/dalemusser/taskgroups/internal/app/system/grouplock"
	"github.com/dalemusser/taskgroups/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// buildService assembles the collaboration engine from the configured
// backends.
func buildService(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *collab.Service {
	var (
		repo   collab.Repository
		audits *auditstore.Store
	)
	if deps.MongoDatabase != nil {
		repo = sharedgroupstore.New(deps.MongoDatabase, logger)
		audits = auditstore.New(deps.MongoDatabase)
	} else {
		repo = sharedgroupstore.NewMemory()
	}

	var locker grouplock.Locker = grouplock.NewLocal()
	if appCfg.LockBackend == "redis" && deps.Redis != nil {
		locker = grouplock.NewRedis(deps.Redis, appCfg.LockTTL, logger)
	}

	var publisher events.Publisher = events.Nop{}
	if appCfg.EventsBackend == "redis" && deps.Redis != nil {
		publisher = events.NewRedis(deps.Redis, appCfg.RedisChannel)
	}

	logger.Info("collaboration engine configured",
		zap.String("store", appCfg.StoreBackend),
		zap.String("lock", appCfg.LockBackend),
		zap.String("events", appCfg.EventsBackend),
		zap.Duration("role_upgrade_cooldown", appCfg.RoleUpgradeCooldown))

	return collab.New(repo, logger, collab.Options{
		Locker: locker,
		Events: publisher,
		Audit: auditlog.New(audits, logger, auditlog.Config{
			Group:    appCfg.AuditGroup,
			Security: appCfg.AuditSecurity,
		}),
		Cooldown:    appCfg.RoleUpgradeCooldown,
		SearchLimit: int64(appCfg.SearchLimit),
		LockWait:    timeouts.Lock(),
	})
}
