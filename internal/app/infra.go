package app

import (
	"context"
	"fmt"

	"session-service/internal/config"
	"session-service/internal/db"
	"session-service/internal/logger"
	"session-service/internal/redis"
	"session-service/internal/session"
)

type Infra struct {
	DB    *db.DB
	Redis *redis.Client
	Store session.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	switch cfg.SessionStore {
	case "sql":
		database, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}

		if err := db.Migrate(ctx, database, cfg.DatabaseDriver, cfg.SessionTableName); err != nil {
			database.Close()
			return nil, err
		}

		store, err := session.NewSQLStore(database, session.SQLConfig{
			Dialect:                    cfg.DatabaseDriver,
			TableName:                  cfg.SessionTableName,
			DefaultMaxInactiveInterval: cfg.DefaultMaxInactive,
		})
		if err != nil {
			database.Close()
			return nil, err
		}

		logger.Info("database ready", map[string]any{"driver": cfg.DatabaseDriver})

		return &Infra{DB: database, Store: store}, nil

	case "redis":
		redisClient, err := redis.New(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}

		store, err := session.NewRedisStore(redisClient.Client, cfg.DefaultMaxInactive)
		if err != nil {
			return nil, err
		}

		logger.Info("redis ready", nil)

		return &Infra{Redis: redisClient, Store: store}, nil

	default:
		return nil, fmt.Errorf("app: unknown session store %q", cfg.SessionStore)
	}
}

func (i *Infra) Close() error {
	if i.DB != nil {
		return i.DB.Close()
	}
	if i.Redis != nil {
		return i.Redis.Close()
	}
	return nil
}
