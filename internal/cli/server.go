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
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizcine-server/internal/app"
	"quizcine-server/internal/config"
	"quizcine-server/internal/infra/file"
	"quizcine-server/internal/infra/memory"
	pgloader "quizcine-server/internal/infra/postgres"
	redisinfra "quizcine-server/internal/infra/redis"
	"quizcine-server/internal/transport/httpapi"
	"quizcine-server/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
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

	var loader memory.QuestionLoader
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgloader.NewQuestionLoader(pool)
	} else {
		questionsPath := cfg.Questions.Path
		if questionsPath == "" {
			questionsPath = "public/questions.json"
		}
		loader = file.NewQuestionLoader(questionsPath)
	}

	questionsTTL := config.TTLDuration(cfg.Questions.TTL, 30*time.Second)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, questionsTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, questionsTTL)
	}

	roomTTL := config.TTLDuration(cfg.Rooms.TTL, 0)
	stopReaper := make(chan struct{})
	defer close(stopReaper)

	var rooms app.RoomRepository
	if redisClient != nil {
		store := redisinfra.NewRoomStore(redisClient, roomTTL)
		store.StartReaper(stopReaper)
		rooms = store
	} else {
		store := memory.NewRoomStoreWithTTL(roomTTL, time.Now)
		store.StartReaper(stopReaper)
		rooms = store
	}

	hub := ws.NewHub()
	service := app.NewRoomService(rooms, questions, hub)
	wsHandler := ws.NewHandler(service, hub)

	router := httprouter.New()
	httpapi.NewHandler(questions).Register(router, wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizcine server on :%s", finalPort)
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
