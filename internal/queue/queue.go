package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/util"

	"github.com/rabbitmq/amqp091-go"
)

const (
	retryDelay = 10 * time.Second
	// MaxRetries is how often a failed message is redelivered before it is
	// moved to the dead-letter queue.
	MaxRetries = 10
)

type Config struct {
	User     string
	Password string
	Host     string `validate:"required"`
	Port     string `validate:"required"`
}

func ConfigFromEnv() Config {
	return Config{
		User:     util.GetEnv("RABBITMQ_USER"),
		Password: util.GetEnv("RABBITMQ_PASSWORD"),
		Host:     util.GetEnv("RABBITMQ_HOST"),
		Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
	}
}

// Enabled reports whether a broker is configured at all.
func (c Config) Enabled() bool {
	return c.Host != ""
}

func (c Config) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Password, c.Host, c.Port)
}

func Init(cfg Config) (*amqp091.Connection, error) {
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid rabbitmq config: %w", err)
	}
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// Declarer is the subset of *amqp091.Channel used to declare queues.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// Publisher is the subset of *amqp091.Channel used to publish.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// SetupQueues declares every queue together with its "_dlq" dead-letter
// queue and a "_retry" queue that dead-letters back into the main queue
// after retryDelay.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

// PublishFIFO publishes a persistent JSON message to the default exchange.
func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte) error {
	return ch.PublishWithContext(
		ctx,
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
