package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizrush-game-service/internal/app"
	"quizrush-game-service/internal/config"
	"quizrush-game-service/internal/domain"
	"quizrush-game-service/internal/infra/memory"
	pgledger "quizrush-game-service/internal/infra/postgres"
	redisledger "quizrush-game-service/internal/infra/redis"
	transport "quizrush-game-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	rules := app.RulesFromConfig(cfg.Game)

	var source app.QuestionSource = memory.NewStaticQuestionSource(sampleQuestionSets(rules))
	if pool != nil {
		source = pgledger.NewQuestionLoader(pool)
	}
	if redisClient != nil {
		questionTTL := config.TTLDuration(cfg.Game.QuestionSetTTL, 10*time.Minute)
		source = redisledger.NewQuestionCache(redisClient, source, questionTTL)
	}

	var ledger app.WalletLedger
	switch {
	case pool != nil:
		ledger = pgledger.NewWalletLedger(pool)
	case redisClient != nil:
		ledger = redisledger.NewWalletLedger(redisClient)
	default:
		ledger = memory.NewWalletLedger()
	}

	var helps app.HelpUsageLog = memory.NewHelpUsageLog()
	if redisClient != nil {
		helps = redisledger.NewHelpUsageLog(redisClient)
	}

	var games app.GameRepository = memory.NewGameStore()
	if redisClient != nil {
		games = redisledger.NewGameStore(redisClient, redisTTL)
	}

	videoQueue := memory.NewVideoQueue(sampleVideos()...)
	videos := app.NewVideoSessionRegistry(videoQueue, ledger, rules.VideosPerSession)

	service := app.NewGameService(rules, games, source, ledger, helps, videos)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting game service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestionSets provides minimal demo content; production wires the
// Postgres loader behind the Redis cache instead.
func sampleQuestionSets(rules app.Rules) map[string]domain.QuestionSet {
	questions := make([]domain.Question, 0, rules.QuestionCount)
	for i := 0; i < rules.QuestionCount; i++ {
		questions = append(questions, demoQuestion(i))
	}
	spares := make([]domain.Question, 0, rules.SpareCount)
	for i := 0; i < rules.SpareCount; i++ {
		spares = append(spares, demoQuestion(rules.QuestionCount+i))
	}
	return map[string]domain.QuestionSet{
		"en": {Questions: questions, Spares: spares},
	}
}

func demoQuestion(i int) domain.Question {
	return domain.Question{
		ID:   "demo-" + string(rune('a'+i%26)),
		Text: "Which answer is marked correct?",
		Answers: []domain.Answer{
			{Key: domain.AnswerA, Text: "This one", Correct: true},
			{Key: domain.AnswerB, Text: "Not this"},
			{Key: domain.AnswerC, Text: "Nor this"},
		},
	}
}

func sampleVideos() []domain.RewardVideo {
	return []domain.RewardVideo{
		{ID: "v1", URL: "https://cdn.example.com/sponsor-1.mp4"},
		{ID: "v2", URL: "https://cdn.example.com/sponsor-2.mp4"},
		{ID: "v3", URL: "https://cdn.example.com/sponsor-3.mp4"},
	}
}
