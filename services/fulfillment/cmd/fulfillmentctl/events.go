package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	platformkafka "github.com/shestoi/cocktail-delivery/platform/kafka"
	platformlogging "github.com/shestoi/cocktail-delivery/platform/logging"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the order events topic",
	}

	var (
		limit   int
		timeout time.Duration
		group   string
	)
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print order events (order.paid, order.cancelled) from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer platformlogging.Sync(logger)

			cfg := platformkafka.DefaultConfig()
			if err := platformkafka.LoadEnv(&cfg); err != nil {
				return err
			}
			logger.Info("kafka config loaded",
				zap.Strings("brokers", cfg.Brokers),
				zap.String("topic", cfg.OrderEventsTopic),
			)

			readerCfg := kafka.ReaderConfig{
				Brokers: cfg.Brokers,
				Topic:   cfg.OrderEventsTopic,
				GroupID: group,
			}
			if group == "" {
				readerCfg.StartOffset = kafka.FirstOffset
			}
			reader := kafka.NewReader(readerCfg)
			defer reader.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			for i := 0; limit <= 0 || i < limit; i++ {
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
						return nil
					}
					return fmt.Errorf("read message: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s partition=%d offset=%d key=%s type=%s %s\n",
					msg.Time.Format(time.RFC3339), msg.Partition, msg.Offset, msg.Key, header(msg, "event_type"), msg.Value)
			}
			return nil
		},
	}
	tail.Flags().IntVarP(&limit, "limit", "n", 10, "stop after n messages (0 = until timeout)")
	tail.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "stop after this duration")
	tail.Flags().StringVar(&group, "group", "", "consumer group (empty reads from the beginning without committing)")

	cmd.AddCommand(tail)
	return cmd
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
