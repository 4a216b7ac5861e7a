package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
	pgstore "gamification-service/internal/infra/postgres"
	pgmigrations "gamification-service/internal/infra/postgres/migrations"
	infraredis "gamification-service/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestLiveQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()
	seedEvent(t, ctx, db, sampleEvent(time.Now().Add(-time.Second)))

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	events := infraredis.NewEventRepository(redisClient, pgstore.NewEventLoader(pool), 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)
	service := app.NewLiveQuizService(sessions, events)

	if _, err := service.Join(ctx, "event-1", "u1", "Alice"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Join(ctx, "event-1", "u2", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	res, err := service.SubmitAnswer(ctx, "event-1", "u2", "q1", 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Points < 10 || res.Position != 1 {
		t.Fatalf("expected a correct first-place answer, got %+v", res)
	}
	if _, err := service.SubmitAnswer(ctx, "event-1", "u2", "q1", 1); err != domain.ErrAlreadyAnswered {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	lb, err := service.Leaderboard(ctx, "event-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].UserID != "u2" {
		t.Fatalf("expected bob leading, got %+v", lb.Entries)
	}
}

func TestLedgerOnPostgres(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	accounts := pgstore.NewAccountStore(db)
	actions, err := app.NewActionCatalog(app.DefaultRewardActions())
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	board := infraredis.NewLeaderboardStore(redisClient, "community")
	achievements := app.NewAchievementEngine(app.DefaultAchievements())

	// Two ledgers over one table behave like two service instances.
	first := app.NewPointsLedger(accounts, actions, achievements, app.WithAwardListeners(board))
	second := app.NewPointsLedger(accounts, actions, achievements, app.WithAwardListeners(board))

	if _, err := first.Initialize(ctx, "u1", "Alice"); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := second.Award(ctx, "u1", "onboarding_completed", ""); err != nil {
		t.Fatalf("award: %v", err)
	}
	if _, err := first.Award(ctx, "u1", "event_hosted", "meetup"); err != nil {
		t.Fatalf("award: %v", err)
	}
	if _, err := second.Award(ctx, "u1", "onboarding_completed", ""); err != domain.ErrMaxOccurrencesReached {
		t.Fatalf("expected max occurrences across instances, got %v", err)
	}
	if _, err := first.Award(ctx, "u2", "event_attended", ""); err != nil {
		t.Fatalf("award: %v", err)
	}

	account, err := accounts.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if account.Name != "Alice" || account.LifetimePoints != 250 || account.Level != 2 || account.Version != 3 {
		t.Fatalf("unexpected account: %+v", account)
	}
	if len(account.UnlockedAchievements) != 1 || account.ActionStats["onboarding_completed"].Count != 1 {
		t.Fatalf("snapshot not persisted: %+v", account)
	}

	stale := account
	stale.CurrentPoints = 0
	if err := accounts.Save(ctx, stale, account.Version-1); err != domain.ErrVersionConflict {
		t.Fatalf("expected version conflict, got %v", err)
	}

	top, err := board.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top.Entries) != 2 || top.Entries[0].UserID != "u1" || top.Entries[0].Score != 250 {
		t.Fatalf("unexpected community board: %+v", top.Entries)
	}

	list, err := accounts.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	community, err := app.NewLeaderboardService(accounts, nil).Community(ctx, 10)
	if err != nil {
		t.Fatalf("community: %v", err)
	}
	if len(list) != 2 || community.Entries[0].UserID != top.Entries[0].UserID {
		t.Fatalf("redis and postgres boards disagree: %+v vs %+v", community.Entries, top.Entries)
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

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedEvent(t *testing.T, ctx context.Context, db *bun.DB, event domain.LiveQuizEvent) {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO live_quiz_events (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, event.ID, string(data)); err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func sampleEvent(start time.Time) domain.LiveQuizEvent {
	return domain.LiveQuizEvent{
		ID:       "event-1",
		Title:    "Integration trivia",
		StartsAt: start,
		Duration: 10 * time.Minute,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 60},
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
