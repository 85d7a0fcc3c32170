// Package app wires configuration, storage, clients, and services into a
// running BoardSync instance.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/boardsync/internal/board/cache"
	"github.com/felixgeelhaar/boardsync/internal/board/trello"
	"github.com/felixgeelhaar/boardsync/internal/mirror/application"
	"github.com/felixgeelhaar/boardsync/internal/mirror/application/services"
	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
	"github.com/felixgeelhaar/boardsync/internal/mirror/infrastructure/persistence"
	"github.com/felixgeelhaar/boardsync/internal/notify"
	"github.com/felixgeelhaar/boardsync/internal/notify/activity"
	"github.com/felixgeelhaar/boardsync/internal/notify/mailer"
	"github.com/felixgeelhaar/boardsync/internal/notify/openai"
	"github.com/felixgeelhaar/boardsync/internal/scheduler"
	"github.com/felixgeelhaar/boardsync/internal/shared/infrastructure/database/postgres"
	"github.com/felixgeelhaar/boardsync/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/boardsync/pkg/config"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Storage. Exactly one of SQLiteDB and PgPool is set, depending on
	// DATABASE_URL.
	SQLiteDB *sql.DB
	PgPool   *pgxpool.Pool

	// Redis (optional)
	RedisClient *redis.Client

	// Repositories
	TaskRepo   domain.TaskRepository
	MemberRepo domain.MemberRepository

	// Board access
	BoardClient  *trello.Client
	ProfileCache *cache.MemberCache

	// Services
	ScoreEngine  *services.ScoreEngine
	Directory    *services.MemberDirectory
	Reconciler   *application.Reconciler
	CardEditor   *application.CardEditor
	Dispatcher   *notify.Dispatcher
	DailySummary *notify.DailySummary

	// Background jobs
	Jobs *scheduler.Registry
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	if err := c.initStorage(ctx); err != nil {
		return nil, err
	}
	c.initRedis(ctx)
	c.initBoardClient()
	c.initServices()
	c.initJobs()

	return c, nil
}

func (c *Container) initStorage(ctx context.Context) error {
	if c.Config.UsesPostgres() {
		pool, err := postgres.Connect(ctx, c.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
		c.PgPool = pool
		c.TaskRepo = persistence.NewPostgresTaskRepository(pool)
		c.MemberRepo = persistence.NewPostgresMemberRepository(pool)
		c.Logger.Info("storage initialized", "driver", "postgres")
		return nil
	}

	db, err := sqlite.Open(ctx, c.Config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := sqlite.Migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	c.SQLiteDB = db
	c.TaskRepo = persistence.NewSQLiteTaskRepository(db)
	c.MemberRepo = persistence.NewSQLiteMemberRepository(db)
	c.Logger.Info("storage initialized", "driver", "sqlite", "path", c.Config.DatabaseURL)
	return nil
}

func (c *Container) initRedis(ctx context.Context) {
	if c.Config.RedisURL == "" {
		return
	}
	client, err := cache.Connect(ctx, c.Config.RedisURL)
	if err != nil {
		// The profile cache is an optimization; run without it.
		c.Logger.Warn("redis unavailable, member profile cache disabled", "error", err)
		return
	}
	c.RedisClient = client
	c.ProfileCache = cache.NewMemberCache(client, 0, c.Logger)
}

func (c *Container) initBoardClient() {
	c.BoardClient = trello.NewClient(trello.Config{
		Key:            c.Config.TrelloKey,
		Token:          c.Config.TrelloToken,
		BoardID:        c.Config.TrelloBoardID,
		Timeout:        c.Config.TrelloTimeout,
		BreakerEnabled: true,
	}, c.Logger)
}

func (c *Container) initServices() {
	c.ScoreEngine = services.NewScoreEngine(c.TaskRepo, c.MemberRepo, services.DefaultScoreEngineConfig(), c.Logger)
	c.Directory = services.NewMemberDirectory(c.MemberRepo, c.Logger)

	var profiles application.ProfileCache
	if c.ProfileCache != nil {
		profiles = c.ProfileCache
	}
	c.Reconciler = application.NewReconciler(c.BoardClient, c.TaskRepo, c.ScoreEngine, profiles, application.ReconcilerConfig{
		DoneListName: c.Config.DoneListName,
	}, c.Logger)

	c.CardEditor = application.NewCardEditor(c.BoardClient, c.Reconciler, application.CardEditorConfig{
		OpenListID: c.Config.TrelloOpenListID,
		DoneListID: c.Config.TrelloDoneListID,
	}, c.Logger)

	persona := notify.Persona{
		BotName:        c.Config.BotName,
		SupervisorName: c.Config.SupervisorName,
	}
	composer := c.newComposer()
	sender := c.newSender()

	c.Dispatcher = notify.NewDispatcher(c.TaskRepo, c.MemberRepo, composer, sender, notify.DispatcherConfig{
		Persona:         persona,
		SupervisorEmail: c.Config.SupervisorEmail,
		FromAddress:     c.Config.FromAddress,
		EscalationGrace: c.Config.EscalationGrace,
	}, c.Logger)

	var source notify.ActivitySource
	if c.Config.ActivityServiceURL != "" {
		source = activity.NewClient(c.Config.ActivityServiceURL)
	}
	c.DailySummary = notify.NewDailySummary(source, composer, sender, notify.SummaryConfig{
		Persona:         persona,
		SupervisorEmail: c.Config.SupervisorEmail,
		FromAddress:     c.Config.FromAddress,
	}, c.Logger)
}

func (c *Container) newComposer() notify.Composer {
	client := openai.NewClient(c.Config.OpenAIAPIKey, c.Config.OpenAIModel)
	if c.Config.OpenAIBaseURL != "" {
		client = openai.NewClientWithBaseURL(c.Config.OpenAIAPIKey, c.Config.OpenAIModel, c.Config.OpenAIBaseURL)
	}
	return client
}

func (c *Container) newSender() notify.Sender {
	if c.Config.IsDevelopment() && c.Config.SMTPUsername == "" {
		// Local development without mail credentials logs messages
		// instead of delivering them.
		return mailer.NewLogSender(c.Logger)
	}
	return mailer.NewSMTPSender(mailer.Config{
		Host:     c.Config.SMTPHost,
		Port:     c.Config.SMTPPort,
		Username: c.Config.SMTPUsername,
		Password: c.Config.SMTPPassword,
	}, c.Logger)
}

func (c *Container) initJobs() {
	c.Jobs = scheduler.NewRegistry(c.Config.JobRunTimeout, c.Logger)

	c.Jobs.RegisterInterval("board-sync", c.Config.SyncInterval, func(ctx context.Context) error {
		result, err := c.Reconciler.Run(ctx)
		if err != nil {
			return err
		}
		c.Logger.Debug("sync pass",
			"created", result.Created,
			"updated", result.Updated,
			"deleted", result.Deleted,
			"folded", result.Folded,
		)
		return nil
	})

	c.Jobs.RegisterInterval("notification-scan", c.Config.NotifyInterval, func(ctx context.Context) error {
		return c.Dispatcher.RunAll(ctx)
	})

	c.Jobs.RegisterDaily("daily-summary", scheduler.DailyTime{
		Hour:   c.Config.SummaryHour,
		Minute: c.Config.SummaryMinute,
	}, func(ctx context.Context) error {
		return c.DailySummary.Run(ctx)
	})
}

// EnsureWebhook registers the board webhook callback when a public base
// URL is configured.
func (c *Container) EnsureWebhook(ctx context.Context) error {
	if c.Config.WebhookBaseURL == "" {
		return nil
	}
	callbackURL := c.Config.WebhookBaseURL + "/trello-webhook"
	return c.BoardClient.EnsureWebhook(ctx, callbackURL)
}

// Refresh re-checks the webhook registration, then runs one mirror pass
// followed by the assignment and completion scans. Used by the webhook
// handler.
func (c *Container) Refresh(ctx context.Context) {
	if err := c.EnsureWebhook(ctx); err != nil {
		c.Logger.Warn("webhook refresh: registration check failed", "error", err)
	}
	if _, err := c.Reconciler.Run(ctx); err != nil {
		c.Logger.Error("webhook refresh: sync failed", "error", err)
		return
	}
	if _, err := c.Dispatcher.RunAssignmentScan(ctx); err != nil {
		c.Logger.Error("webhook refresh: assignment scan failed", "error", err)
	}
	if _, err := c.Dispatcher.RunCompletionScan(ctx); err != nil {
		c.Logger.Error("webhook refresh: completion scan failed", "error", err)
	}
}

// Ping verifies database connectivity. Used by the readiness probe.
func (c *Container) Ping(ctx context.Context) error {
	if c.PgPool != nil {
		return c.PgPool.Ping(ctx)
	}
	return c.SQLiteDB.PingContext(ctx)
}

// Close releases all held resources.
func (c *Container) Close() error {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("failed to close redis client", "error", err)
		}
	}
	if c.PgPool != nil {
		c.PgPool.Close()
	}
	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			return fmt.Errorf("close sqlite: %w", err)
		}
	}
	return nil
}

// WaitForShutdown gives in-flight jobs a bounded window to finish.
func (c *Container) WaitForShutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.Jobs.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		c.Logger.Warn("job shutdown timed out")
	}
}
