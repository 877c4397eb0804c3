package integration

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"movie-club-service/internal/app"
	"movie-club-service/internal/domain"
	pgcatalog "movie-club-service/internal/infra/postgres"
	pgmigrations "movie-club-service/internal/infra/postgres/migrations"
	infraredis "movie-club-service/internal/infra/redis"
	"movie-club-service/internal/predict"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestPredictionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedCatalog(t, ctx, pgURL, sampleCatalog())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgcatalog.NewCatalogLoader(pool)
	loaded, err := loader.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(loaded.Ratings) != len(sampleCatalog().Ratings) || len(loaded.Movies) != 6 {
		t.Fatalf("expected imported catalog back, got %d ratings %d movies", len(loaded.Ratings), len(loaded.Movies))
	}
	if last := loaded.Ratings[len(loaded.Ratings)-1]; last.Username != "dan" || !math.IsNaN(last.Score) {
		t.Fatalf("expected dan's missing score to load as NaN, got %+v", last)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	catalogs := infraredis.NewCatalogRepository(redisClient, loader, 5*time.Minute)
	sessionStore := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewPredictionService(sessionStore, catalogs, predict.PeerOptions{})

	view, err := service.SelectUser(ctx, "s1", "ana")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if view.Next == nil || view.Next.Movie.Title == "" {
		t.Fatalf("expected enriched first question, got %+v", view.Next)
	}
	for _, q := range []string{"q1", "q2", "q3"} {
		if view, err = service.Answer(ctx, "s1", q, domain.Yes); err != nil {
			t.Fatalf("answer %s: %v", q, err)
		}
	}
	if view.Stage != domain.AwaitingRung || view.Next == nil || view.Next.MovieID != 5 {
		t.Fatalf("expected ladder question on movie 5, got %+v", view)
	}
	if view, err = service.Answer(ctx, "s1", view.Next.ID, domain.No); err != nil {
		t.Fatalf("answer rung: %v", err)
	}
	if view.Summary != "between 8.5 and 9.0" {
		t.Fatalf("expected refined range, got %q", view.Summary)
	}

	if n, err := sessionStore.ActiveSessions(ctx); err != nil || n != 1 {
		t.Fatalf("expected one live session, got %d (%v)", n, err)
	}
	if exists, err := redisClient.Exists(ctx, "catalog:snapshot").Result(); err != nil || exists != 1 {
		t.Fatalf("expected catalog snapshot cached, got %d (%v)", exists, err)
	}

	peers, err := service.Peers(ctx, "ana")
	if err != nil {
		t.Fatalf("peers: %v", err)
	}
	if len(peers) != 1 || peers[0].Username != "ben" {
		t.Fatalf("expected ben as only peer, got %+v", peers)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "club", "POSTGRES_PASSWORD": "clubpass", "POSTGRES_DB": "movieclub"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://club:clubpass@%s:%s/movieclub?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedCatalog(t *testing.T, ctx context.Context, dsn string, catalog domain.Catalog) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := pgcatalog.NewImporter(db).Import(ctx, catalog); err != nil {
		t.Fatalf("import catalog: %v", err)
	}
}

// sampleCatalog gives ana quartiles 5.25 and 8.5 with movie 5 as the first rung.
func sampleCatalog() domain.Catalog {
	movies := map[int]domain.Movie{}
	for id, title := range map[int]string{1: "Alien", 2: "Brazil", 3: "Clue", 4: "Dune", 5: "Eraserhead", 6: "Fargo"} {
		movies[id] = domain.Movie{MovieID: id, Title: title, Year: 1980 + id}
	}
	rating := func(movieID int, user string, score float64, unlocked bool) domain.Rating {
		return domain.Rating{MovieID: movieID, Username: user, Score: score, Unlocked: unlocked, WatchedDate: fmt.Sprintf("2024-02-0%d", movieID)}
	}
	return domain.Catalog{
		Movies: movies,
		Ratings: []domain.Rating{
			rating(1, "ana", 6, true),
			rating(2, "ana", 3, true),
			rating(3, "ana", 7, true),
			rating(4, "ana", 5, true),
			rating(5, "ana", 9, true),
			rating(6, "ana", 9.5, true),
			rating(1, "ben", 5, true),
			rating(2, "ben", 2, true),
			rating(3, "ben", 8, true),
			rating(1, "dan", math.NaN(), true),
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
