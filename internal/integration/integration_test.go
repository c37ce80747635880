package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
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

	"quizrush-game-service/internal/app"
	"quizrush-game-service/internal/domain"
	"quizrush-game-service/internal/infra/memory"
	pgledger "quizrush-game-service/internal/infra/postgres"
	pgmigrations "quizrush-game-service/internal/infra/postgres/migrations"
	infraredis "quizrush-game-service/internal/infra/redis"
)

func TestGameCreditsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	rules := app.DefaultRules()
	rules.QuestionTimer = 0
	rules.StartReward = 0

	seedQuestions(t, ctx, pgURL, sampleQuestionSet(rules))

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	ledger := pgledger.NewWalletLedger(pool)
	source := infraredis.NewQuestionCache(redisClient, pgledger.NewQuestionLoader(pool), 5*time.Minute)
	games := infraredis.NewGameStore(redisClient, 5*time.Minute)
	videos := app.NewVideoSessionRegistry(memory.NewVideoQueue(), ledger, 1)
	service := app.NewGameService(rules, games, source, ledger, memory.NewHelpUsageLog(), videos)

	if _, err := service.StartGame(ctx, "u1", "game-1", "en"); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap, err := service.SelectAnswer(ctx, "u1", domain.AnswerB)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if snap.Phase != domain.PhaseRevealing || snap.CoinsEarned != rules.CoinsPerCorrect {
		t.Fatalf("unexpected reveal: phase=%s coins=%d", snap.Phase, snap.CoinsEarned)
	}
	if !service.WaitSettled("u1", 5*time.Second) {
		t.Fatalf("credit tail did not settle")
	}

	wallet, err := ledger.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if wallet.Coins != rules.CoinsPerCorrect {
		t.Fatalf("expected %d coins, got %d", rules.CoinsPerCorrect, wallet.Coins)
	}

	// Replaying the same logical event must not move the balance.
	for i := 0; i < 3; i++ {
		applied, w, err := ledger.Credit(ctx, domain.LedgerEntry{
			IdempotencyKey: "game-1-q0",
			UserID:         "u1",
			DeltaCoins:     rules.CoinsPerCorrect,
			Source:         "correct_answer",
			CreatedAt:      time.Now(),
		})
		if err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
		if applied || w.Coins != rules.CoinsPerCorrect {
			t.Fatalf("replay %d re-applied: applied=%v coins=%d", i, applied, w.Coins)
		}
	}

	// The same key from another user is a distinct event.
	applied, w2, err := ledger.Credit(ctx, domain.LedgerEntry{
		IdempotencyKey: "game-1-q0",
		UserID:         "u2",
		DeltaCoins:     rules.CoinsPerCorrect,
		Source:         "correct_answer",
		CreatedAt:      time.Now(),
	})
	if err != nil || !applied {
		t.Fatalf("second user credit: applied=%v err=%v", applied, err)
	}
	if w2.Coins != rules.CoinsPerCorrect {
		t.Fatalf("second user balance: %d", w2.Coins)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "game", "POSTGRES_PASSWORD": "gamepass", "POSTGRES_DB": "gamedb"},
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
	dsn := fmt.Sprintf("postgres://game:gamepass@%s:%s/gamedb?sslmode=disable", host, port.Port())
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

func seedQuestions(t *testing.T, ctx context.Context, dsn string, set domain.QuestionSet) {
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

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal set: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (lang, data) VALUES (?, ?::jsonb) ON CONFLICT (lang) DO UPDATE SET data=EXCLUDED.data`, "en", string(data)); err != nil {
		t.Fatalf("insert question set: %v", err)
	}
}

func sampleQuestionSet(rules app.Rules) domain.QuestionSet {
	set := domain.QuestionSet{}
	for i := 0; i < rules.QuestionCount; i++ {
		set.Questions = append(set.Questions, domain.Question{
			ID:   fmt.Sprintf("q%d", i),
			Text: "What is 2 + 2?",
			Answers: []domain.Answer{
				{Key: domain.AnswerA, Text: "3"},
				{Key: domain.AnswerB, Text: "4", Correct: true},
				{Key: domain.AnswerC, Text: "5"},
			},
		})
	}
	return set
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
