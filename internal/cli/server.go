package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/config"
	"gamification-service/internal/domain"
	"gamification-service/internal/infra/community"
	"gamification-service/internal/infra/memory"
	pgstore "gamification-service/internal/infra/postgres"
	"gamification-service/internal/infra/queue"
	redisstore "gamification-service/internal/infra/redis"
	"gamification-service/internal/logger"
	transport "gamification-service/internal/transport/http"
	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const pruneInterval = time.Minute

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gamification API and live quiz server",
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
	log, err := logger.New(cfg.App.Env, serviceName(cfg))
	if err != nil {
		return err
	}
	defer log.Sync()

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
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	var accounts app.AccountRepository = memory.NewAccountStore()
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		db := openDB(cfg.Postgres.URL)
		defer db.Close()
		accounts = pgstore.NewAccountStore(db)
	} else {
		log.Warn("postgres not configured, points accounts are kept in memory")
	}

	var loader memory.EventLoader = memory.NewStaticEventLoader(sampleEvents(time.Now()))
	if pool != nil {
		loader = pgstore.NewEventLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var events app.EventRepository
	var sessions app.SessionRepository
	if redisClient != nil {
		events = redisstore.NewEventRepository(redisClient, loader, quizTTL)
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		events = memory.NewEventRepository(loader, quizTTL)
		sessions = memory.NewSessionStore()
	}

	rewards, err := cfg.RewardActions()
	if err != nil {
		return err
	}
	if rewards == nil {
		rewards = app.DefaultRewardActions()
	}
	actions, err := app.NewActionCatalog(rewards)
	if err != nil {
		return err
	}

	var listeners []app.AwardListener
	var communityBoard transport.TopReader
	if redisClient != nil {
		board := redisstore.NewLeaderboardStore(redisClient, "community")
		all, err := accounts.List(ctx)
		if err != nil {
			return err
		}
		if err := board.Rebuild(ctx, all); err != nil {
			return err
		}
		listeners = append(listeners, board)
		communityBoard = board
	}
	if cfg.Queue.RedisAddr != "" {
		queueClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddr, Password: cfg.Redis.Password})
		defer queueClient.Close()
		listeners = append(listeners, queue.NewSyncEnqueuer(queueClient, cfg.Queue.MaxRetry))
	}

	ledger := app.NewPointsLedger(accounts, actions, app.NewAchievementEngine(app.DefaultAchievements()),
		app.WithAwardListeners(listeners...),
		app.WithHistoryLimit(cfg.Ledger.HistoryLimit),
	)
	catalog, err := app.NewQuizCatalog(app.DefaultWeeklyQuizzes(), app.DefaultBrainTeasers())
	if err != nil {
		return err
	}
	live := app.NewLiveQuizService(sessions, events, app.WithPodiumLedger(ledger))

	api := &transport.API{
		Ledger:         ledger,
		Actions:        actions,
		Leaderboards:   app.NewLeaderboardService(accounts, nil),
		Challenges:     app.NewChallengeService(catalog, ledger, nil),
		Catalog:        catalog,
		Live:           live,
		CommunityBoard: communityBoard,
	}
	if cfg.Community.BaseURL != "" {
		api.Community = community.NewClient(cfg.Community.BaseURL, cfg.Community.APIKey, config.TTLDuration(cfg.Community.Timeout, 5*time.Second))
	}
	wsHandler := transport.NewWSHandler(live)

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws", wsHandler.ServeWS)
	api.Register(router)

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler(router)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	pruneDone := make(chan struct{})
	stopPrune := make(chan struct{})
	go func() {
		defer close(pruneDone)
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := live.PruneEnded(ctx); n > 0 {
					log.Info("pruned ended live quiz sessions", zap.Int("count", n))
				}
			case <-stopPrune:
				return
			}
		}
	}()

	go func() {
		log.Info("starting gamification service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	close(stopPrune)
	<-pruneDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleEvents seeds a demo event when no database is configured.
func sampleEvents(now time.Time) map[string]domain.LiveQuizEvent {
	return map[string]domain.LiveQuizEvent{
		"demo-live": {
			ID:       "demo-live",
			Title:    "Community trivia night",
			StartsAt: now.Add(time.Minute).Truncate(time.Minute),
			Duration: 15 * time.Minute,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 30},
				{ID: "q2", Prompt: "Which planet is known as the red planet?", Options: []string{"Venus", "Mars", "Jupiter"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 30},
				{ID: "q3", Prompt: "How many sides does a hexagon have?", Options: []string{"5", "6", "8"}, CorrectAnswerIndex: 1, BasePoints: 15, TimeLimitSeconds: 20},
			},
		},
	}
}
