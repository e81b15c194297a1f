// Matchcore CLI — операторская утилита: постановка job, просмотр
// очереди и миграции схемы.
//
// Использование:
//
//	matchcore [--db-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	trigger  Постановка job оценки пар и загрузки профилей
//	job      Просмотр и обслуживание таблицы jobs
//	migrate  Миграции схемы БД
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Matchcore/internal/cli"
	"github.com/shaiso/Matchcore/internal/config"
	"github.com/shaiso/Matchcore/internal/eligibility"
	"github.com/shaiso/Matchcore/internal/mq"
	"github.com/shaiso/Matchcore/internal/queue"
	"github.com/shaiso/Matchcore/internal/repo"
	"github.com/shaiso/Matchcore/internal/telemetry"
	"github.com/shaiso/Matchcore/internal/trigger"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var dbURL string
	var jsonOutput bool
	var noNotify bool

	rootCmd := &cobra.Command{
		Use:           "matchcore",
		Short:         "Matchcore CLI — researcher matching job queue",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "Database URL (overrides DB_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noNotify, "no-notify", false, "Do not publish job.enqueued to RabbitMQ")

	clientFn := func() (*cli.Client, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		if dbURL != "" {
			cfg.DatabaseURL = dbURL
		}
		return openClient(rootCmd.Context(), cfg, !noNotify)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTriggerCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewMigrateCmd(clientFn, outputFn),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openClient подключается к БД (и RabbitMQ, если notify) и собирает Client.
func openClient(ctx context.Context, cfg config.Config, notify bool) (*cli.Client, error) {
	// Логи CLI — только предупреждения, в stderr
	logger := telemetry.NewLogger(os.Stderr, "WARN", "text")

	pool, err := repo.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return nil, err
	}

	closers := []func(){pool.Close}

	var notifier queue.Notifier
	if notify {
		if conn, err := mq.NewConnection(cfg.RabbitMQURL, logger); err != nil {
			logger.Warn("RabbitMQ not available, workers will pick up jobs by polling", "error", err)
		} else {
			closers = append(closers, func() { _ = conn.Close() })
			notifier = mq.NewPublisher(conn, logger)
		}
	}

	jobRepo := repo.NewJobRepo(pool)
	entityRepo := repo.NewEntityRepo(pool)

	q := queue.NewShared(queue.SharedConfig{
		Store:    jobRepo,
		Notifier: notifier,
		Logger:   logger,
	})

	engine := eligibility.New(eligibility.Config{
		Selections:  repo.NewSelectionRepo(pool),
		Entities:    entityRepo,
		Evaluations: repo.NewEvaluationRepo(pool),
		Cap:         cfg.SelectionCap,
		Logger:      logger,
	})

	return &cli.Client{
		Triggers: trigger.New(trigger.Config{
			Queue:       q,
			Pairs:       engine,
			MaxAttempts: cfg.MaxAttempts,
			Logger:      logger,
		}),
		Jobs: jobRepo,
		Migrate: func(ctx context.Context, command string) error {
			return repo.Migrate(ctx, pool, command)
		},
		Close: func() {
			// в обратном порядке открытия
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

