package redis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"movie-club-service/internal/domain"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches ratings and metadata from a backing store (CSV, Postgres).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context) (domain.Catalog, error)
}

// CatalogRepository caches the joined catalog in Redis as a JSON snapshot and
// falls back to the loader on a miss. Stored under: SET catalog:snapshot {json}
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

const snapshotKey = "catalog:snapshot"

func (r *CatalogRepository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	if catalog, ok := r.cached(ctx); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(snapshotKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := r.cached(ctx); ok {
			return catalog, nil
		}

		catalog, err := r.loader.LoadCatalog(ctx)
		if err != nil {
			return domain.Catalog{}, err
		}

		data, err := encodeSnapshot(catalog)
		if err != nil {
			return domain.Catalog{}, err
		}
		if err := r.client.Set(ctx, snapshotKey, data, r.ttlWithJitter()).Err(); err != nil {
			log.Warn().Err(err).Msg("catalog snapshot not cached")
		}
		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

// Invalidate removes the snapshot so the next read goes to the loader.
func (r *CatalogRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, snapshotKey).Err()
}

func (r *CatalogRepository) cached(ctx context.Context) (domain.Catalog, bool) {
	data, err := r.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("catalog snapshot read failed")
		}
		return domain.Catalog{}, false
	}
	catalog, err := decodeSnapshot(data)
	if err != nil {
		log.Warn().Err(err).Msg("catalog snapshot corrupt")
		return domain.Catalog{}, false
	}
	return catalog, true
}

// snapshotRating carries a missing score as null since JSON has no NaN.
type snapshotRating struct {
	MovieID     int      `json:"movieId"`
	Username    string   `json:"username"`
	Score       *float64 `json:"score"`
	Unlocked    bool     `json:"unlocked"`
	WatchedDate string   `json:"watchedDate,omitempty"`
}

type snapshot struct {
	Ratings []snapshotRating     `json:"ratings"`
	Movies  map[int]domain.Movie `json:"movies"`
}

func encodeSnapshot(c domain.Catalog) ([]byte, error) {
	snap := snapshot{
		Ratings: make([]snapshotRating, len(c.Ratings)),
		Movies:  c.Movies,
	}
	for i, rt := range c.Ratings {
		sr := snapshotRating{
			MovieID:     rt.MovieID,
			Username:    rt.Username,
			Unlocked:    rt.Unlocked,
			WatchedDate: rt.WatchedDate,
		}
		if rt.HasScore() {
			score := rt.Score
			sr.Score = &score
		}
		snap.Ratings[i] = sr
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode catalog snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (domain.Catalog, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode catalog snapshot: %w", err)
	}
	catalog := domain.Catalog{
		Ratings: make([]domain.Rating, len(snap.Ratings)),
		Movies:  snap.Movies,
	}
	for i, sr := range snap.Ratings {
		score := math.NaN()
		if sr.Score != nil {
			score = *sr.Score
		}
		catalog.Ratings[i] = domain.Rating{
			MovieID:     sr.MovieID,
			Username:    sr.Username,
			Score:       score,
			Unlocked:    sr.Unlocked,
			WatchedDate: sr.WatchedDate,
		}
	}
	if catalog.Movies == nil {
		catalog.Movies = make(map[int]domain.Movie)
	}
	return catalog, nil
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
