// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/system/indexes"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// ConnectDB opens the backends named in the config and verifies them with a
// ping. On failure anything already opened is closed again.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	var deps DBDeps

	if appCfg.StoreBackend == "mongo" {
		client, err := connectMongo(ctx, appCfg, logger)
		if err != nil {
			return DBDeps{}, err
		}
		deps.MongoClient = client
		deps.MongoDatabase = client.Database(appCfg.MongoDatabase)
	}

	if appCfg.needsRedis() {
		rdb, err := connectRedis(ctx, appCfg, logger)
		if err != nil {
			if deps.MongoClient != nil {
				_ = deps.MongoClient.Disconnect(context.Background())
			}
			return DBDeps{}, err
		}
		deps.Redis = rdb
	}

	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("MongoDB connect failed", zap.Error(err))
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("MongoDB ping failed", zap.Error(err))
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))
	return client, nil
}

func connectRedis(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        appCfg.RedisAddr,
		Password:    appCfg.RedisPassword,
		DB:          appCfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		logger.Error("Redis ping failed", zap.String("addr", appCfg.RedisAddr), zap.Error(err))
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("connected to Redis",
		zap.String("addr", appCfg.RedisAddr),
		zap.String("lock_backend", appCfg.LockBackend),
		zap.String("events_backend", appCfg.EventsBackend))
	return rdb, nil
}

// EnsureSchema reconciles the Mongo indexes. Nothing to do for the memory store.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes failed", zap.Error(err))
		return err
	}
	return nil
}
