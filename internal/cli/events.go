package cli

import (
	"errors"
	"meetscribe/internal/queue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewEventsCmd(app *App) *cobra.Command {
	var queueName string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print run events from RabbitMQ as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mq := app.cfg.RabbitMQ
			if mq.URL == "" {
				return errors.New("RABBITMQ_URL is not set")
			}
			if queueName == "" {
				queueName = mq.Queue
			}

			r, err := queue.NewRabbitMQ(mq.URL, mq.Exchange, mq.RoutingKey, app.log.Named("events"))
			if err != nil {
				return err
			}
			defer r.Close()

			out := NewFormatter(cmd.OutOrStdout())
			// malformed events are dropped rather than requeued forever
			return r.Consume(cmd.Context(), queueName, func(body []byte) error {
				if err := out.Event(body); err != nil {
					app.log.Warn("Skipping malformed event", zap.Error(err))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&queueName, "queue", "", "queue to bind (defaults to RABBITMQ_QUEUE)")
	return cmd
}
