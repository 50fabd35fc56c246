package main

import (
	"fmt"

	"github.com/spf13/cobra"

	platformkafka "github.com/shestoi/cocktail-delivery/platform/kafka"
	platformlogging "github.com/shestoi/cocktail-delivery/platform/logging"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/event/kafka"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/metrics"
	"github.com/shestoi/cocktail-delivery/services/fulfillment/internal/repository/postgres"
)

func outboxCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Operate the order event outbox",
	}

	var batchSize, maxRetries int
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Publish one batch of pending outbox events to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer platformlogging.Sync(logger)

			kafkaCfg := platformkafka.DefaultConfig()
			if err := platformkafka.LoadEnv(&kafkaCfg); err != nil {
				return err
			}

			pool, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := postgres.NewRepository(pool)
			pending, err := repo.GetPendingOutboxEvents(cmd.Context(), batchSize)
			if err != nil {
				return err
			}

			dispatcher := kafka.NewOutboxDispatcher(logger, repo, platformkafka.NewWriter(kafkaCfg), kafka.DispatcherConfig{
				BatchSize:  batchSize,
				MaxRetries: maxRetries,
			}, metrics.NewNop())
			defer dispatcher.Close()

			if err := dispatcher.ProcessBatch(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d pending events\n", len(pending))
			return nil
		},
	}
	flush.Flags().IntVarP(&batchSize, "batch-size", "n", 100, "maximum events to publish")
	flush.Flags().IntVar(&maxRetries, "max-retries", 3, "publish attempts per event")

	cmd.AddCommand(flush)
	return cmd
}
