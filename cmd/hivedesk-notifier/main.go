// Package main runs the standalone notification dispatcher. It consumes the
// ticket event topic and turns each event into per-recipient notifications.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/hivedesk/hivedesk/pkg/cmd"
	"github.com/hivedesk/hivedesk/pkg/log"
	"github.com/hivedesk/hivedesk/pkg/notifier"
)

func main() {
	command := &cli.Command{
		Name:                  "hivedesk-notifier",
		EnableShellCompletion: true,
		Usage:                 "Consume ticket events and deliver notifications",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus provider (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS"),
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

			logger := log.WithModule("hivedesk-notifier")
			logger.InfoContext(ctx, "Initializing HiveDesk notifier")

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			dispatcher := notifier.NewDispatcher(eventBus, notifier.NewLogMailer(logger), logger)

			err = dispatcher.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start dispatcher", "error", err)

				return err
			}

			logger.InfoContext(ctx, "Notifier started successfully")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down notifier...")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
