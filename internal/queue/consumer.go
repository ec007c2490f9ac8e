package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/timing"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one message body.
type HandlerFunc func(ctx context.Context, body []byte) error

// Consume delivers messages of queueName to handle one at a time until ctx
// is done or the delivery channel closes. ch should have prefetch 1.
func Consume(ctx context.Context, ch *amqp091.Channel, queueName string, handle HandlerFunc) error {
	msgs, err := ch.Consume(
		queueName,
		queueName+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queueName, err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] stopping consumer", "queue", queueName)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] message channel closed", "queue", queueName)
				return nil
			}
			Handle(ctx, ch, msg, queueName, handle)
		}
	}
}

// Handle runs handle on msg and settles it: ack on success, otherwise
// republish to the retry queue or, after MaxRetries or for errors wrapping
// ErrRejected, to the DLQ.
func Handle(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string, handle HandlerFunc) {
	start := time.Now()
	logger.Info("[Queue] received message", "queue", queueName)

	if err := handle(ctx, msg.Body); err != nil {
		logger.Error("[Queue] error processing message", "queue", queueName, "err", err)
		handleProcessingError(ctx, pub, msg, queueName, errors.Is(err, ErrRejected))
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] failed to ack message", "err", err)
	}
	logger.Info("[Queue] message processed", "queue", queueName, "duration", timing.FormatDuration(time.Since(start)))
}

// RetryCount reads the x-retries header. Brokers may hand integers back
// with a different width than they were published with.
func RetryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func handleProcessingError(ctx context.Context, pub Publisher, msg amqp091.Delivery, queueName string, rejected bool) {
	retries := RetryCount(msg.Headers)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if rejected || retries >= MaxRetries {
		target = queueName + "_dlq"
		logger.Info("[Queue] sending message to DLQ", "dlq", target)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	err := pub.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] failed to republish message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
