// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for TaskGroups.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, store_backend, etc.
//   - Environment variables: TASKGROUPS_MONGO_URI, TASKGROUPS_STORE_BACKEND, etc.
//   - Command-line flags: --mongo_uri, --store_backend, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: "mongo", Desc: "Group store: 'mongo' or 'memory'"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskgroups", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "taskgroups-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "jwt_secret", Default: "", Desc: "HS256 secret for Authorization: Bearer tokens (blank disables)"},

	// Per-group lock and change events
	{Name: "lock_backend", Default: "local", Desc: "Group write lock: 'local' (single instance) or 'redis'"},
	{Name: "lock_ttl", Default: "15s", Desc: "Redis lock lease (e.g., 15s)"},
	{Name: "events_backend", Default: "off", Desc: "Group change events: 'off' or 'redis'"},
	{Name: "redis_addr", Default: "", Desc: "Redis address host:port (required for redis backends)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "redis_channel", Default: "taskgroups:events", Desc: "Redis pub/sub channel for group change events"},

	// Audit logging settings
	{Name: "audit_group", Default: "all", Desc: "Group change logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_security", Default: "all", Desc: "Permission denial logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Engine settings
	{Name: "role_upgrade_cooldown", Default: "168h", Desc: "How long a pending role request blocks a new one"},
	{Name: "search_limit", Default: 50, Desc: "Maximum public search results"},
	{Name: "join_rate_limit", Default: 10, Desc: "Join and role-upgrade requests per user per minute (0 disables)"},

	// Handler timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-group reads"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for lists and mutations"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for multi-group operations"},
	{Name: "timeout_lock", Default: "5s", Desc: "How long a mutation waits for the group lock"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config.yaml/json/toml,
// WAFFLE_* and TASKGROUPS_* environment variables and flags, merged with
// precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKGROUPS", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:     strings.ToLower(appValues.String("store_backend")),
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		JWTSecret:     appValues.String("jwt_secret"),

		LockBackend:   strings.ToLower(appValues.String("lock_backend")),
		LockTTL:       appValues.Duration("lock_ttl", 15*time.Second),
		EventsBackend: strings.ToLower(appValues.String("events_backend")),
		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),
		RedisChannel:  appValues.String("redis_channel"),

		AuditGroup:    strings.ToLower(appValues.String("audit_group")),
		AuditSecurity: strings.ToLower(appValues.String("audit_security")),

		RoleUpgradeCooldown: appValues.Duration("role_upgrade_cooldown", collab.DefaultRoleUpgradeCooldown),
		SearchLimit:         appValues.Int("search_limit"),
		JoinRateLimit:       appValues.Int("join_rate_limit"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
		TimeoutLock:   appValues.Duration("timeout_lock", 0),
	}

	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Backend names are checked here so a typo fails fast instead of silently
// falling back to a default.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.StoreBackend {
	case "mongo":
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return fmt.Errorf("mongo_database is required when store_backend is mongo")
		}
	case "memory":
		logger.Warn("using in-memory group store; data is lost on restart")
	default:
		return fmt.Errorf("store_backend must be 'mongo' or 'memory', got %q", appCfg.StoreBackend)
	}

	if appCfg.LockBackend != "local" && appCfg.LockBackend != "redis" {
		return fmt.Errorf("lock_backend must be 'local' or 'redis', got %q", appCfg.LockBackend)
	}
	if appCfg.EventsBackend != "off" && appCfg.EventsBackend != "redis" {
		return fmt.Errorf("events_backend must be 'off' or 'redis', got %q", appCfg.EventsBackend)
	}
	if appCfg.needsRedis() && appCfg.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required when lock_backend or events_backend is redis")
	}
	if appCfg.LockBackend == "redis" && appCfg.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive")
	}

	if !auditModes[appCfg.AuditGroup] {
		return fmt.Errorf("audit_group must be one of all, db, log, off; got %q", appCfg.AuditGroup)
	}
	if !auditModes[appCfg.AuditSecurity] {
		return fmt.Errorf("audit_security must be one of all, db, log, off; got %q", appCfg.AuditSecurity)
	}

	if appCfg.RoleUpgradeCooldown <= 0 {
		return fmt.Errorf("role_upgrade_cooldown must be positive")
	}
	if appCfg.SearchLimit < 0 || appCfg.JoinRateLimit < 0 {
		return fmt.Errorf("search_limit and join_rate_limit must not be negative")
	}
	return nil
}
