package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/bkarakus/wa-dispatch-service/environments"
	"github.com/bkarakus/wa-dispatch-service/internal/domain"
	"github.com/bkarakus/wa-dispatch-service/pkg/logger"
)

// AMQPSink publishes dispatch events to a topic exchange. Routing keys
// are scoped per tenant (tenant.<id>.<event>) so the frontend gateway
// can bind one queue per tenant room.
type AMQPSink struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPSink(cfg environments.EventsConfig) (*AMQPSink, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-delete
		false,        // internal
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Infof("Connected to AMQP broker, exchange %q", cfg.Exchange)

	return &AMQPSink{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
	}, nil
}

func (s *AMQPSink) publish(routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = s.channel.Publish(
		s.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (s *AMQPSink) CampaignProgress(_ context.Context, tenantID int64, ev domain.ProgressEvent) error {
	return s.publish(fmt.Sprintf("tenant.%d.campaign_progress", tenantID), ev)
}

func (s *AMQPSink) CampaignCompleted(_ context.Context, tenantID int64, ev domain.CompletedEvent) error {
	return s.publish(fmt.Sprintf("tenant.%d.campaign_completed", tenantID), ev)
}

func (s *AMQPSink) Close() error {
	if err := s.channel.Close(); err != nil {
		s.conn.Close()
		return err
	}
	return s.conn.Close()
}
