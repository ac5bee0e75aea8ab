// Package main provides the Zapflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/redis/go-redis/v9"

	"github.com/zapflow/zapflow/pkg/adapters/handover"
	"github.com/zapflow/zapflow/pkg/adapters/openai"
	"github.com/zapflow/zapflow/pkg/adapters/webhook"
	"github.com/zapflow/zapflow/pkg/adapters/whatsapp"
	"github.com/zapflow/zapflow/pkg/engine"
	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/executors"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/retention"
	"github.com/zapflow/zapflow/pkg/services"
	"github.com/zapflow/zapflow/pkg/web"
)

// APIConfig carries the credentials and endpoints for the production
// adapters.
type APIConfig struct {
	RedisURL            string
	WhatsAppAccessToken string
	WhatsAppVerifyToken string
	OpenAIAPIKey        string
	OpenAIModel         string
	HandoverURL         string
	RetentionSchedule   string
	RetentionMaxAge     time.Duration
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	engine      *engine.Engine
	transcriber protocol.Transcriber
	verifyToken string
	validate    *validator.Validate
	retention   []retention.Option
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	eventBus eventbus.EventBus,
	config APIConfig,
) (*API, error) {
	locker, err := newLocker(config.RedisURL)
	if err != nil {
		return nil, err
	}

	whatsappClient := whatsapp.NewClient(config.WhatsAppAccessToken, logger)
	openaiClient := openai.NewClient(config.OpenAIAPIKey, config.OpenAIModel, whatsappClient)

	adapters := protocol.Adapters{
		Sender:      whatsappClient,
		Completer:   openaiClient,
		Transcriber: openaiClient,
		Webhook:     webhook.NewCaller(logger),
		Transfer:    handover.NewDispatcher(config.HandoverURL, logger),
	}

	eng := engine.NewEngine(
		persist,
		executors.NewRegistry(adapters),
		eventBus,
		locker,
		logger,
		engine.DefaultConfig(),
	)

	return &API{
		logger:      logger,
		persistence: persist,
		eventBus:    eventBus,
		engine:      eng,
		transcriber: openaiClient,
		verifyToken: config.WhatsAppVerifyToken,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		retention:   retentionOptions(config),
	}, nil
}

func retentionOptions(config APIConfig) []retention.Option {
	options := make([]retention.Option, 0, 2)

	if config.RetentionSchedule != "" {
		options = append(options, retention.WithSchedule(config.RetentionSchedule))
	}

	if config.RetentionMaxAge > 0 {
		options = append(options, retention.WithMaxAge(config.RetentionMaxAge))
	}

	return options
}

func newLocker(redisURL string) (engine.ExecutionLocker, error) {
	if redisURL == "" {
		return engine.NewMemoryLocker(), nil
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return engine.NewRedisLocker(redis.NewClient(options)), nil
}

func (a *API) App() *fiber.App {
	flowService := services.NewFlow(a.persistence)
	executionService := services.NewExecution(a.persistence, a.engine)

	handlers := web.NewAPIHandlers(flowService, executionService, a.validate)
	webhooks := web.NewWebhookHandlers(executionService, a.transcriber, a.verifyToken, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Zapflow API")
	})

	handlers.Register(app)
	webhooks.Register(app)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	sweeper := retention.NewSweeper(a.persistence.LogRepository(), a.logger, a.retention...)

	err := sweeper.Start()
	if err != nil {
		return err
	}

	defer sweeper.Stop()

	a.logger.InfoContext(ctx, "Starting API server", "port", port)

	return a.App().Listen(":" + strconv.Itoa(port))
}
