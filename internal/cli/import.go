package cli

import (
	"context"
	"fmt"
	"time"

	"movie-club-service/internal/config"
	"movie-club-service/internal/domain"
	"movie-club-service/internal/infra/csvfile"
	"movie-club-service/internal/infra/memory"
	pgcatalog "movie-club-service/internal/infra/postgres"
	redisinfra "movie-club-service/internal/infra/redis"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewImportCmd loads the CSV exports into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	var ratings, metadata string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import ratings and metadata CSV exports into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if ratings != "" {
				cfg.Data.Ratings = ratings
			}
			if metadata != "" {
				cfg.Data.Metadata = metadata
			}
			return runImport(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&ratings, "ratings", "", "ratings CSV (overrides config)")
	cmd.Flags().StringVar(&metadata, "metadata", "", "metadata CSV (overrides config)")
	return cmd
}

func runImport(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	catalog, err := csvfile.NewLoader(cfg.Data.Ratings, cfg.Data.Metadata).LoadCatalog(ctx)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	db := openBunDB(cfg)
	defer db.Close()
	if err := pgcatalog.NewImporter(db).Import(ctx, catalog); err != nil {
		return err
	}
	log.Info().
		Int("ratings", len(catalog.Ratings)).
		Int("movies", len(catalog.Movies)).
		Msg("catalog imported")

	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		defer client.Close()
		if err := warmSnapshot(ctx, client, catalog, config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)); err != nil {
			log.Warn().Err(err).Msg("catalog snapshot not refreshed")
		}
	}
	return nil
}

// warmSnapshot replaces the shared Redis snapshot with the imported catalog so
// running servers see it without waiting for the old snapshot's TTL.
func warmSnapshot(ctx context.Context, client *redis.Client, catalog domain.Catalog, ttl time.Duration) error {
	repo := redisinfra.NewCatalogRepository(client, memory.NewStaticCatalogLoader(catalog), ttl)
	if err := repo.Invalidate(ctx); err != nil {
		return err
	}
	_, err := repo.GetCatalog(ctx)
	return err
}
