package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"github.com/zapflow/zapflow/pkg/cmd"
	"github.com/zapflow/zapflow/pkg/log"
	"github.com/zapflow/zapflow/pkg/otelhelper"
	"github.com/zapflow/zapflow/pkg/retention"
)

const defaultPort = 9080

func main() {
	_ = godotenv.Load()

	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "zapflow-api",
		Usage:                 "Create and manage chatbot flows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the execution lock (in-memory lock when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-access-token",
				Usage:   "WhatsApp Cloud API access token",
				Sources: cli.EnvVars("WHATSAPP_ACCESS_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "whatsapp-verify-token",
				Usage:   "Token expected in the Cloud API webhook handshake",
				Sources: cli.EnvVars("WHATSAPP_VERIFY_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key for intent classification and transcription",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "OpenAI chat model",
				Sources: cli.EnvVars("OPENAI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "handover-url",
				Usage:   "Base URL of the human handover service",
				Sources: cli.EnvVars("HANDOVER_URL"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for the execution log retention sweep",
				Value:   retention.DefaultSchedule,
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "retention-max-age",
				Usage:   "Execution logs older than this are purged",
				Value:   retention.DefaultMaxAge,
				Sources: cli.EnvVars("RETENTION_MAX_AGE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP (endpoint from OTEL_EXPORTER_OTLP_ENDPOINT)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Zapflow API")

			if command.Bool("tracing") {
				_, err := otelhelper.NewTracer(ctx, "zapflow-api")
				if err != nil {
					return err
				}
			}

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger, "zapflow-api")
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api, err := NewAPI(logger, persist, eventBus, APIConfig{
				RedisURL:            command.String("redis-url"),
				WhatsAppAccessToken: command.String("whatsapp-access-token"),
				WhatsAppVerifyToken: command.String("whatsapp-verify-token"),
				OpenAIAPIKey:        command.String("openai-api-key"),
				OpenAIModel:         command.String("openai-model"),
				HandoverURL:         command.String("handover-url"),
				RetentionSchedule:   command.String("retention-schedule"),
				RetentionMaxAge:     command.Duration("retention-max-age"),
			})
			if err != nil {
				return err
			}

			return api.Start(ctx, command.Int("port"))
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
