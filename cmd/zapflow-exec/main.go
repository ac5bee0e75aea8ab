// zapflow-exec runs a flow as a dry run from the command line, useful for
// validating a flow before activating it.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"github.com/zapflow/zapflow/pkg/adapters/mock"
	"github.com/zapflow/zapflow/pkg/cmd"
	"github.com/zapflow/zapflow/pkg/engine"
	"github.com/zapflow/zapflow/pkg/executors"
	"github.com/zapflow/zapflow/pkg/log"
)

func main() {
	_ = godotenv.Load()

	logger := log.WithModule("exec")

	command := &cli.Command{
		Name:                  "zapflow-exec",
		Usage:                 "Dry-run a flow with mock adapters and print the step log",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "flow-id",
				Usage:    "ID of the flow to run",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "message",
				Usage: "Inbound message content to seed the run with",
				Value: "oi",
			},
			&cli.StringFlag{
				Name:  "contact",
				Usage: "Contact number to run as",
				Value: "5511999999999",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eng := engine.NewEngine(
				persist,
				executors.NewRegistry(mock.NewAdapters()),
				nil,
				engine.NewMemoryLocker(),
				logger,
				engine.DefaultConfig(),
			)

			execution, err := eng.TestExecution(
				ctx,
				command.String("flow-id"),
				command.String("message"),
				command.String("contact"),
				nil,
				mock.NewAdapters(),
			)
			if err != nil {
				return err
			}

			fmt.Printf("execution %s finished with status %s\n\n", execution.ID, execution.Status)

			logs, err := persist.LogRepository().ListByExecution(ctx, execution.ID)
			if err != nil {
				return err
			}

			for i, entry := range logs {
				fmt.Printf("%2d. [%s] %s node=%s (%dms)\n", i+1, entry.Status, entry.Action, entry.NodeID, entry.DurationMS)

				if entry.ErrorMessage != "" {
					fmt.Printf("    error: %s\n", entry.ErrorMessage)
				}
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
