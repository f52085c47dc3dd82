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
	"go.mongodb.org/mongo-driver/mongo"

	"quiz-attempt-engine/internal/app"
	"quiz-attempt-engine/internal/config"
	"quiz-attempt-engine/internal/infra/memory"
	inframongo "quiz-attempt-engine/internal/infra/mongo"
	pgloader "quiz-attempt-engine/internal/infra/postgres"
	"quiz-attempt-engine/internal/infra/rabbitmq"
	infraredis "quiz-attempt-engine/internal/infra/redis"
	transport "quiz-attempt-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the connections opened for one server run.
type backends struct {
	redis     *redis.Client
	pool      *pgxpool.Pool
	mongo     *mongo.Client
	mongoDB   *mongo.Database
	publisher *rabbitmq.Publisher
}

func (b *backends) close() {
	if b.publisher != nil {
		_ = b.publisher.Close()
	}
	if b.mongo != nil {
		_ = b.mongo.Disconnect(context.Background())
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
}

func connect(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.pool = pool
	}
	if cfg.Mongo.URI != "" {
		client, err := inframongo.Connect(ctx, cfg.Mongo.URI, 10*time.Second)
		if err != nil {
			b.close()
			return nil, err
		}
		b.mongo = client
		dbName := cfg.Mongo.Database
		if dbName == "" {
			dbName = "quiz_engine"
		}
		b.mongoDB = client.Database(dbName)
	}
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			b.close()
			return nil, err
		}
		b.publisher = pub
	}
	return b, nil
}

// contentLoader picks the authoritative content store: Postgres, then MongoDB,
// then the built-in sample quiz.
func (b *backends) contentLoader() memory.ContentLoader {
	switch {
	case b.pool != nil:
		return pgloader.NewContentLoader(b.pool)
	case b.mongoDB != nil:
		return inframongo.NewContentLoader(b.mongoDB)
	default:
		return memory.NewStaticContentLoader(sampleQuizzes(), sampleQuestions())
	}
}

func (b *backends) contentRepository(ttl time.Duration) app.ContentRepository {
	loader := b.contentLoader()
	if b.redis != nil {
		return infraredis.NewContentRepository(b.redis, loader, ttl)
	}
	return memory.NewContentRepository(loader, ttl)
}

func (b *backends) subjectStore() app.SubjectRepository {
	switch {
	case b.mongoDB != nil:
		return inframongo.NewSubjectStore(b.mongoDB)
	case b.redis != nil:
		return infraredis.NewSubjectStore(b.redis)
	default:
		return memory.NewSubjectStore()
	}
}

// subjectEraser returns the durable subject store, or nil when subjects only
// live in process memory.
func (b *backends) subjectEraser() app.SubjectEraser {
	switch {
	case b.mongoDB != nil:
		return inframongo.NewSubjectStore(b.mongoDB)
	case b.redis != nil:
		return infraredis.NewSubjectStore(b.redis)
	default:
		return nil
	}
}

func (b *backends) eventPublisher() app.EventPublisher {
	if b.publisher != nil {
		return b.publisher
	}
	return memory.NewLoggingPublisher()
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

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	content := app.NewContentService(b.contentRepository(contentTTL))

	opts := []app.Option{
		app.WithPublisher(b.eventPublisher()),
		app.WithSubmitGrace(config.TTLDuration(cfg.Attempts.SubmitGrace, 0)),
	}
	if cfg.Attempts.MaxRetries > 0 {
		opts = append(opts, app.WithMaxRetries(cfg.Attempts.MaxRetries))
	}
	service := app.NewAttemptService(b.subjectStore(), content, opts...)

	handler := transport.NewRouter(transport.NewHandler(service), transport.NewWSHandler(service))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Websocket connections stay open for the whole attempt, so no write timeout.
	}

	go func() {
		log.Printf("starting quiz attempt engine on :%s", finalPort)
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
