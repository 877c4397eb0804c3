package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"movie-club-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// CatalogLoader loads ratings and movie metadata from Postgres.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	movies, err := l.loadMovies(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	ratings, err := l.loadRatings(ctx)
	if err != nil {
		return domain.Catalog{}, err
	}
	return domain.Catalog{Ratings: ratings, Movies: movies}, nil
}

func (l *CatalogLoader) loadMovies(ctx context.Context) (map[int]domain.Movie, error) {
	rows, err := l.pool.Query(ctx, `SELECT movie_id, official_title, year, director, synopsis, rt_score,
		poster_url, imdb_url, wiki_url, trailer_url, osu_library_link FROM movies`)
	if err != nil {
		return nil, fmt.Errorf("load movies: %w", err)
	}
	defer rows.Close()

	movies := make(map[int]domain.Movie)
	for rows.Next() {
		var m domain.Movie
		if err := rows.Scan(&m.MovieID, &m.Title, &m.Year, &m.Director, &m.Synopsis, &m.CriticScore,
			&m.PosterURL, &m.IMDbURL, &m.WikiURL, &m.TrailerURL, &m.LibraryLink); err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		if math.IsNaN(m.CriticScore) || math.IsInf(m.CriticScore, 0) {
			m.CriticScore = 0
		}
		movies[m.MovieID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load movies: %w", err)
	}
	return movies, nil
}

// loadRatings keeps insertion order, which is the rating order benchmarks tie-break on.
func (l *CatalogLoader) loadRatings(ctx context.Context) ([]domain.Rating, error) {
	rows, err := l.pool.Query(ctx, `SELECT movie_id, username, score, unlock, date_watched FROM ratings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		var (
			r     domain.Rating
			score sql.NullFloat64
		)
		if err := rows.Scan(&r.MovieID, &r.Username, &score, &r.Unlocked, &r.WatchedDate); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.Score = math.NaN()
		if score.Valid {
			r.Score = score.Float64
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	return ratings, nil
}
