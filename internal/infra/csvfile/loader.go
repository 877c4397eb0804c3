package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"movie-club-service/internal/domain"
)

// Loader reads the ratings and metadata exports from disk.
type Loader struct {
	ratingsPath  string
	metadataPath string
}

func NewLoader(ratingsPath, metadataPath string) *Loader {
	return &Loader{ratingsPath: ratingsPath, metadataPath: metadataPath}
}

// LoadCatalog parses both files. Missing scores become NaN so they are never counted as zero.
func (l *Loader) LoadCatalog(ctx context.Context) (domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	rf, err := os.Open(l.ratingsPath)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("open ratings: %w", err)
	}
	defer rf.Close()
	ratings, err := ParseRatings(rf)
	if err != nil {
		return domain.Catalog{}, err
	}

	mf, err := os.Open(l.metadataPath)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("open metadata: %w", err)
	}
	defer mf.Close()
	movies, err := ParseMetadata(mf)
	if err != nil {
		return domain.Catalog{}, err
	}

	return domain.Catalog{Ratings: ratings, Movies: movies}, nil
}

// ParseRatings reads rows of movie_id, username, score, unlock and the optional date_watched.
func ParseRatings(r io.Reader) ([]domain.Rating, error) {
	rows, cols, err := readTable(r, "movie_id", "username", "score")
	if err != nil {
		return nil, fmt.Errorf("ratings: %w", err)
	}

	ratings := make([]domain.Rating, 0, len(rows))
	for i, row := range rows {
		id, err := strconv.Atoi(cols.get(row, "movie_id"))
		if err != nil {
			return nil, fmt.Errorf("ratings line %d: bad movie_id: %w", i+2, err)
		}
		ratings = append(ratings, domain.Rating{
			MovieID:     id,
			Username:    cols.get(row, "username"),
			Score:       parseScore(cols.get(row, "score")),
			Unlocked:    cols.get(row, "unlock") == "1",
			WatchedDate: cols.get(row, "date_watched"),
		})
	}
	return ratings, nil
}

// ParseMetadata reads the movie table keyed by movie_id.
func ParseMetadata(r io.Reader) (map[int]domain.Movie, error) {
	rows, cols, err := readTable(r, "movie_id", "official_title")
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	movies := make(map[int]domain.Movie, len(rows))
	for i, row := range rows {
		id, err := strconv.Atoi(cols.get(row, "movie_id"))
		if err != nil {
			return nil, fmt.Errorf("metadata line %d: bad movie_id: %w", i+2, err)
		}
		if _, dup := movies[id]; dup {
			return nil, fmt.Errorf("metadata line %d: duplicate movie_id %d", i+2, id)
		}
		year, _ := strconv.Atoi(cols.get(row, "year"))
		critic := parseScore(strings.TrimSuffix(cols.get(row, "rt_score"), "%"))
		if math.IsNaN(critic) {
			critic = 0
		}
		movies[id] = domain.Movie{
			MovieID:     id,
			Title:       cols.get(row, "official_title"),
			Year:        year,
			Director:    cols.get(row, "director"),
			Synopsis:    cols.get(row, "synopsis"),
			CriticScore: critic,
			PosterURL:   cols.get(row, "poster_url"),
			IMDbURL:     cols.get(row, "imdb_url"),
			WikiURL:     cols.get(row, "wiki_url"),
			TrailerURL:  cols.get(row, "trailer_url"),
			LibraryLink: cols.get(row, "osu_library_link"),
		}
	}
	return movies, nil
}

type columns map[string]int

func (c columns) get(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readTable(r io.Reader, required ...string) ([][]string, columns, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, errors.New("empty file")
	}
	if err != nil {
		return nil, nil, err
	}
	cols := make(columns, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", name)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

// parseScore returns NaN for empty, malformed or non-finite input.
func parseScore(raw string) float64 {
	if raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
