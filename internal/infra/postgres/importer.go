package postgres

import (
	"context"
	"fmt"

	"movie-club-service/internal/domain"

	"github.com/uptrace/bun"
)

type movieRow struct {
	bun.BaseModel `bun:"table:movies"`

	MovieID     int     `bun:"movie_id,pk"`
	Title       string  `bun:"official_title"`
	Year        int     `bun:"year"`
	Director    string  `bun:"director"`
	Synopsis    string  `bun:"synopsis"`
	CriticScore float64 `bun:"rt_score"`
	PosterURL   string  `bun:"poster_url"`
	IMDbURL     string  `bun:"imdb_url"`
	WikiURL     string  `bun:"wiki_url"`
	TrailerURL  string  `bun:"trailer_url"`
	LibraryLink string  `bun:"osu_library_link"`
}

type ratingRow struct {
	bun.BaseModel `bun:"table:ratings"`

	ID          int64    `bun:"id,pk,autoincrement"`
	MovieID     int      `bun:"movie_id"`
	Username    string   `bun:"username"`
	Score       *float64 `bun:"score"`
	Unlocked    bool     `bun:"unlock"`
	WatchedDate string   `bun:"date_watched"`
}

// Importer replaces the catalog tables with a new export.
type Importer struct {
	db *bun.DB
}

func NewImporter(db *bun.DB) *Importer {
	return &Importer{db: db}
}

// Import writes the catalog in one transaction. Ratings keep their order.
func (i *Importer) Import(ctx context.Context, catalog domain.Catalog) error {
	movies := make([]movieRow, 0, len(catalog.Movies))
	for _, m := range catalog.Movies {
		movies = append(movies, movieRow{
			MovieID:     m.MovieID,
			Title:       m.Title,
			Year:        m.Year,
			Director:    m.Director,
			Synopsis:    m.Synopsis,
			CriticScore: m.CriticScore,
			PosterURL:   m.PosterURL,
			IMDbURL:     m.IMDbURL,
			WikiURL:     m.WikiURL,
			TrailerURL:  m.TrailerURL,
			LibraryLink: m.LibraryLink,
		})
	}
	ratings := make([]ratingRow, 0, len(catalog.Ratings))
	for _, r := range catalog.Ratings {
		row := ratingRow{
			MovieID:     r.MovieID,
			Username:    r.Username,
			Unlocked:    r.Unlocked,
			WatchedDate: r.WatchedDate,
		}
		if r.HasScore() {
			score := r.Score
			row.Score = &score
		}
		ratings = append(ratings, row)
	}

	return i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewTruncateTable().Model((*ratingRow)(nil)).Exec(ctx); err != nil {
			return fmt.Errorf("truncate ratings: %w", err)
		}
		if _, err := tx.NewTruncateTable().Model((*movieRow)(nil)).Exec(ctx); err != nil {
			return fmt.Errorf("truncate movies: %w", err)
		}
		if len(movies) > 0 {
			if _, err := tx.NewInsert().Model(&movies).Exec(ctx); err != nil {
				return fmt.Errorf("insert movies: %w", err)
			}
		}
		if len(ratings) > 0 {
			if _, err := tx.NewInsert().Model(&ratings).Exec(ctx); err != nil {
				return fmt.Errorf("insert ratings: %w", err)
			}
		}
		return nil
	})
}
