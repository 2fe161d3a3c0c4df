package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"sciquiz-service/internal/app"
	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/infra/memory"
	pgstore "sciquiz-service/internal/infra/postgres"
	pgmigrations "sciquiz-service/internal/infra/postgres/migrations"
	infraredis "sciquiz-service/internal/infra/redis"
	"sciquiz-service/internal/leaderboard"
	"sciquiz-service/internal/source"
	transport "sciquiz-service/internal/transport/http"
)

var quizCtx = domain.QuizContext{ClassID: "class6", Level: "easy", TopicID: 1, Language: "en"}

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	questions := pgstore.NewQuestionRepository(pool)
	board := pgstore.NewLeaderboardRepository(pool)
	for i := 0; i < 10; i++ {
		record := map[string]any{
			"question":    fmt.Sprintf("Question %d", i),
			"options":     []string{"right", "wrong", "wrong", "wrong"},
			"answer":      0,
			"explanation": "because",
		}
		if _, err := questions.Add(ctx, quizCtx, record); err != nil {
			t.Fatalf("seed question %d: %v", i, err)
		}
	}

	// the REST API this service exposes is also what its source adapter
	// and leaderboard client consume
	mux := http.NewServeMux()
	transport.NewAPIHandler(questions, board).Register(mux)
	apiServer := httptest.NewServer(mux)
	defer apiServer.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	store := infraredis.NewProgressStore(redisClient, time.Hour)

	newService := func() *app.SessionService {
		return app.NewSessionService(
			memory.NewSessionStore(),
			source.New(source.NewBankClient(apiServer.URL, 5*time.Second), nil, store),
			store,
			leaderboard.NewClient(apiServer.URL, 5*time.Second, store),
			app.Config{PoolSize: 10},
		)
	}

	svc := newService()
	defer svc.Shutdown()

	view, err := svc.Enter(ctx, quizCtx, "Asha")
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	if view.Source != domain.SourceDatabase {
		t.Fatalf("expected questions from the bank, got %s", view.Source)
	}
	if len(view.Questions) != 10 {
		t.Fatalf("expected pool of 10, got %d", len(view.Questions))
	}

	// answer the first 7 correctly, then abandon mid-quiz
	for i := 0; i < 7; i++ {
		if _, err := svc.Answer(ctx, quizCtx, view.Questions[i].CorrectIndex); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if view, err = svc.Advance(ctx, quizCtx); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	// a fresh process resumes from the Redis snapshot
	resumed := newService()
	defer resumed.Shutdown()
	view, err = resumed.Enter(ctx, quizCtx, "Asha")
	if err != nil {
		t.Fatalf("re-enter: %v", err)
	}
	if view.Source != domain.SourceSaved {
		t.Fatalf("expected resume from saved progress, got %s", view.Source)
	}
	if view.CorrectCount != 7 || view.CurrentIndex != 7 {
		t.Fatalf("resume landed at correct=%d index=%d", view.CorrectCount, view.CurrentIndex)
	}

	// walk off the end without answering the rest
	for view.Status != app.StatusCompleted {
		if view, err = resumed.Advance(ctx, quizCtx); err != nil {
			t.Fatalf("final advance: %v", err)
		}
	}
	if view.FinalScore != 7 {
		t.Fatalf("expected final score 7, got %d", view.FinalScore)
	}

	entries, err := board.List(ctx, leaderboard.Filters{ClassID: quizCtx.ClassID})
	if err != nil {
		t.Fatalf("leaderboard list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one leaderboard row, got %d", len(entries))
	}
	if entries[0].Name != "Asha" || entries[0].Score != 7 || entries[0].Total != 10 {
		t.Fatalf("unexpected leaderboard row: %+v", entries[0])
	}

	// sortBy=date&order=asc must surface the oldest attempt first even when
	// a later attempt scored higher
	if _, err := board.Add(ctx, domain.LeaderboardEntry{Name: "Ravi", Score: 9, Total: 10, ClassID: quizCtx.ClassID}); err != nil {
		t.Fatalf("seed second attempt: %v", err)
	}
	byDate, err := board.List(ctx, leaderboard.Filters{ClassID: quizCtx.ClassID, SortBy: "date", Order: "asc"})
	if err != nil {
		t.Fatalf("leaderboard list by date: %v", err)
	}
	if len(byDate) != 2 || byDate[0].Name != "Asha" || byDate[1].Name != "Ravi" {
		t.Fatalf("expected oldest-first ordering, got %+v", byDate)
	}

	if err := resumed.Reset(ctx, quizCtx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := resumed.State(quizCtx); err != domain.ErrSessionNotFound {
		t.Fatalf("expected session gone after reset, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
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
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
