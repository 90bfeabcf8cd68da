// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig covers ports, TLS, logging, CORS and body limits.
// Everything here is specific to the shared-group service and is loaded in
// LoadConfig from flags, TASKGROUPS_* environment variables, config files
// and the defaults in appConfigKeys.
type AppConfig struct {
	// Storage
	StoreBackend     string // "mongo" or "memory"
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Actor identity
	SessionKey    string // signs session cookies; must be strong in production
	SessionName   string
	SessionDomain string // blank means current host
	JWTSecret     string // HS256 secret for bearer tokens; blank disables them

	// Coordination
	LockBackend   string // "local" or "redis"
	LockTTL       time.Duration
	EventsBackend string // "off" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	// Audit logging: "all", "db", "log" or "off"
	AuditGroup    string
	AuditSecurity string

	// Engine
	RoleUpgradeCooldown time.Duration
	SearchLimit         int
	JoinRateLimit       int // join and role-upgrade filings per user per minute; 0 disables

	// Handler timeouts
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
	TimeoutLock   time.Duration
}

// needsRedis reports whether any backend is configured to use Redis.
func (c AppConfig) needsRedis() bool {
	return c.LockBackend == "redis" || c.EventsBackend == "redis"
}
