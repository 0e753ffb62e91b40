package db

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/config"
)

var dialAMQPFn = amqp.Dial

// ConnectRabbitMQ returns nil without error when no broker is configured.
func ConnectRabbitMQ(cfg config.Config) (*amqp.Connection, error) {
	if cfg.RabbitMQURL == "" {
		return nil, nil
	}
	return dialAMQPFn(cfg.RabbitMQURL)
}
