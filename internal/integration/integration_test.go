package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
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

	"quizcine-server/internal/app"
	"quizcine-server/internal/domain"
	pgloader "quizcine-server/internal/infra/postgres"
	pgmigrations "quizcine-server/internal/infra/postgres/migrations"
	infraredis "quizcine-server/internal/infra/redis"
)

func TestRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedQuestions(t, ctx, pgURL, sampleRecords())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgloader.NewQuestionLoader(pool)
	questions := infraredis.NewQuestionRepository(redisClient, loader, 5*time.Minute)
	rooms := infraredis.NewRoomStore(redisClient, 5*time.Minute)

	pub := &recordingPublisher{}
	service := app.NewRoomService(rooms, questions, pub)

	service.Join("ABCD", "a", "", "Alice")
	service.Join("ABCD", "b", "", "Bob")

	service.LoadRound(ctx, "ABCD", "host", "classics")
	if count := pub.lastRoundCount(t); count != 2 {
		t.Fatalf("expected 2 questions in round, got %d", count)
	}

	service.AdvanceQuestion(ctx, "ABCD")
	service.SubmitAnswer("ABCD", "a", "Alpha")
	service.SubmitAnswer("ABCD", "b", "alpha")
	service.Reveal("ABCD")

	scores := pub.lastScores(t)
	if scores["a"].Score != 15 || scores["b"].Score != 10 {
		t.Fatalf("expected A=15 B=10, got %+v", scores)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []struct {
		event   string
		payload any
	}
}

func (p *recordingPublisher) Broadcast(_, event string, payload any) {
	p.record(event, payload)
}

func (p *recordingPublisher) Send(_, event string, payload any) {
	p.record(event, payload)
}

func (p *recordingPublisher) record(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, struct {
		event   string
		payload any
	}{event, payload})
}

func (p *recordingPublisher) lastRoundCount(t *testing.T) int {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].event == app.EventRoundLoaded {
			return p.events[i].payload.(app.RoundLoadedPayload).Count
		}
	}
	t.Fatalf("no round-loaded reply recorded")
	return 0
}

func (p *recordingPublisher) lastScores(t *testing.T) domain.Scores {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].event == app.EventScores {
			return p.events[i].payload.(domain.Scores)
		}
	}
	t.Fatalf("no scores broadcast recorded")
	return nil
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

func seedQuestions(t *testing.T, ctx context.Context, dsn string, records []map[string]any) {
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

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO questions (data) VALUES (?::jsonb)`, string(data)); err != nil {
			t.Fatalf("insert question: %v", err)
		}
	}
}

// sampleRecords deliberately mixes field spellings to exercise the
// normalizer on the Postgres path.
func sampleRecords() []map[string]any {
	return []map[string]any{
		{"round": "Classics", "type": "open", "question": "First?", "answer": "alpha", "points": 10},
		{"category": "Classics", "prompt": "Second?", "options": []string{"beta", "gamma"}, "solution": "beta", "value": 10},
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
