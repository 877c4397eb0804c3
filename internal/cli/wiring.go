package cli

import (
	"context"
	"database/sql"
	"time"

	"movie-club-service/internal/app"
	"movie-club-service/internal/config"
	"movie-club-service/internal/infra/csvfile"
	"movie-club-service/internal/infra/memory"
	pgcatalog "movie-club-service/internal/infra/postgres"
	redisinfra "movie-club-service/internal/infra/redis"
	"movie-club-service/internal/predict"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// backends holds the connections opened from config; nil members are not configured.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = newRedisClient(cfg)
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.pool = pool
	}
	return b, nil
}

func (b *backends) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func openBunDB(cfg config.Config) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// catalogLoader reads from Postgres when configured, otherwise from the CSV exports.
func (b *backends) catalogLoader(cfg config.Config) memory.CatalogLoader {
	if b.pool != nil {
		log.Info().Msg("catalog source: postgres")
		return pgcatalog.NewCatalogLoader(b.pool)
	}
	log.Info().Str("ratings", cfg.Data.Ratings).Str("metadata", cfg.Data.Metadata).Msg("catalog source: csv")
	return csvfile.NewLoader(cfg.Data.Ratings, cfg.Data.Metadata)
}

func (b *backends) catalogRepository(cfg config.Config) app.CatalogRepository {
	loader := b.catalogLoader(cfg)
	ttl := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	if b.redis != nil {
		return redisinfra.NewCatalogRepository(b.redis, loader, ttl)
	}
	return memory.NewCatalogRepository(loader, ttl)
}

func (b *backends) sessionStore(cfg config.Config) app.SessionRepository {
	if b.redis != nil {
		return redisinfra.NewSessionStore(b.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewSessionStore()
}

func peerOptions(cfg config.Config) predict.PeerOptions {
	return predict.PeerOptions{Limit: cfg.Peers.Limit, MinShared: cfg.Peers.MinShared}
}
