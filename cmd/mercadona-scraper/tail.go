package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/mercadona-scraper/internal/config"
	"github.com/maltedev/mercadona-scraper/internal/events"
	"github.com/maltedev/mercadona-scraper/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow recorded products on the Redis stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			slog.SetDefault(log)

			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()

			ctx := cmd.Context()
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}

			out := cmd.OutOrStdout()
			show := func(_ context.Context, p events.ProductRecordedPayload) error {
				_, err := fmt.Fprintf(out, "%s | %s | %s | %s\n", p.Category, p.Subcategory, p.ProductName, p.Container)
				return err
			}

			consumer := events.NewConsumer(client, show, events.ConsumerConfig{
				Stream: cfg.Redis.Stream,
				Group:  group,
			}, log)

			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "mercadona-tail", "consumer group name")
	return cmd
}
