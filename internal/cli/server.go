package cli

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"sciquiz-service/internal/app"
	"sciquiz-service/internal/config"
	"sciquiz-service/internal/infra/memory"
	pgstore "sciquiz-service/internal/infra/postgres"
	redisstore "sciquiz-service/internal/infra/redis"
	"sciquiz-service/internal/leaderboard"
	"sciquiz-service/internal/progress"
	"sciquiz-service/internal/source"
	transport "sciquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	var store progress.Store = memory.NewProgressStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = redisstore.NewProgressStore(client, config.TTLDuration(cfg.Redis.TTL, 0))
	}

	var bank *source.BankClient
	if cfg.QuestionBank.URL != "" {
		bank = source.NewBankClient(cfg.QuestionBank.URL, config.TTLDuration(cfg.QuestionBank.Timeout, 10*time.Second))
	}

	var gen source.Generator
	if cfg.Gemini.APIKey != "" {
		gemini, err := source.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return err
		}
		gen = gemini
	}

	boardURL := cfg.Leaderboard.URL
	if boardURL == "" {
		boardURL = "http://127.0.0.1:" + finalPort
	}
	board := leaderboard.NewClient(boardURL, 10*time.Second, store)

	service := app.NewSessionService(
		memory.NewSessionStore(),
		source.New(bank, gen, store),
		store,
		board,
		app.Config{
			PoolSize: cfg.Quiz.PoolSize,
			Duration: config.TTLDuration(cfg.Quiz.Duration, 15*time.Minute),
		},
	)
	defer service.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service).ServeWS)

	// merged view across the remote board and every local fallback list
	mux.HandleFunc("/api/leaderboard/merged", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		entries, err := board.Merged(r.Context())
		if err != nil {
			http.Error(w, "failed to merge leaderboards", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(entries)
	})

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		api := transport.NewAPIHandler(
			pgstore.NewQuestionRepository(pool),
			pgstore.NewLeaderboardRepository(pool),
		)
		api.Register(mux)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting sciquiz service on :%s", finalPort)
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
