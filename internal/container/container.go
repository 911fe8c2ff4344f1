package container

import (
	"context"

	"github.com/jonboulle/clockwork"

	"election-core/internal/config"
	"election-core/internal/realtime"
	"election-core/internal/repository"
	"election-core/internal/service"
	"election-core/internal/service/auth"
	"election-core/pkg/database"
	"election-core/pkg/logger"
	"election-core/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	Clock       clockwork.Clock
	DB          *database.PostgresDB
	RedisClient *redis.Client

	Repositories *repository.Repositories

	AuthService      *auth.Service
	Broadcaster      *service.Broadcaster
	LifecycleService *service.LifecycleService
	VotingService    *service.VotingService
	ChatService      *service.ChatService
	Scheduler        *service.Scheduler
	Sweeper          *service.Sweeper
	Hub              *realtime.Hub
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Container, error) {
	clock := clockwork.NewRealClock()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("Database connection established")

	redisClient, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info("Redis client initialized successfully")

	repos := &repository.Repositories{
		Election:  repository.NewElectionStateRepository(db),
		Vote:      repository.NewVoteRepository(db),
		Candidate: repository.NewCandidateRepository(db),
		Voter:     repository.NewVoterRepository(db),
		Chat:      repository.NewChatRepository(db),
	}

	authService := auth.NewService(cfg.AuthJWTSecret, log)
	broadcaster := service.NewBroadcaster(redisClient, log)
	sweeper := service.NewSweeper(repos.Chat, clock, cfg.SweepInterval, cfg.ChatRetention, log)
	lifecycleService := service.NewLifecycleService(repos, broadcaster, sweeper, redisClient, clock, log)
	votingService := service.NewVotingService(repos, redisClient, clock, log)
	chatService := service.NewChatService(repos.Chat, clock, cfg.ChatRetention, log)
	scheduler := service.NewScheduler(lifecycleService, repos.Election, clock, cfg.SchedulerTick, log)
	hub := realtime.NewHub(broadcaster, log)

	return &Container{
		Config:           cfg,
		Logger:           log,
		Clock:            clock,
		DB:               db,
		RedisClient:      redisClient,
		Repositories:     repos,
		AuthService:      authService,
		Broadcaster:      broadcaster,
		LifecycleService: lifecycleService,
		VotingService:    votingService,
		ChatService:      chatService,
		Scheduler:        scheduler,
		Sweeper:          sweeper,
		Hub:              hub,
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.Config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.Logger
}

// GetDB returns the database handle
func (c *Container) GetDB() *database.PostgresDB {
	return c.DB
}

// GetRedisClient returns the Redis client
func (c *Container) GetRedisClient() *redis.Client {
	return c.RedisClient
}

// GetAuthService returns the auth service
func (c *Container) GetAuthService() service.AuthService {
	return c.AuthService
}

// Start launches the background engine loops.
func (c *Container) Start(ctx context.Context) error {
	if err := c.Scheduler.Start(ctx); err != nil {
		return err
	}
	return c.Sweeper.Start(ctx)
}

// Close stops background loops and releases connections in reverse
// dependency order.
func (c *Container) Close(ctx context.Context) {
	if err := c.Scheduler.Stop(ctx); err != nil {
		c.Logger.WithError(err).Warn("Failed to stop scheduler")
	}
	if err := c.Sweeper.Stop(ctx); err != nil {
		c.Logger.WithError(err).Warn("Failed to stop sweeper")
	}
	c.Hub.Close()

	if err := c.RedisClient.Close(); err != nil {
		c.Logger.WithError(err).Warn("Failed to close Redis client")
	}
	c.DB.Close()
}
