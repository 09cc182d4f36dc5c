package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"filevault/server/common/infra/mq"
	"filevault/server/fileman/domain"
)

const filesExchange = "files.events"

// AMQPPublisher sends file events to the files.events topic exchange with
// routing key "file.<kind>".
type AMQPPublisher struct {
	channel *amqp.Channel
}

func NewAMQPPublisher(conn *amqp.Connection) (*AMQPPublisher, error) {
	ch, err := mq.OpenTopicChannel(conn, filesExchange)
	if err != nil {
		return nil, err
	}
	return &AMQPPublisher{channel: ch}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event domain.FileEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, filesExchange, routingKey(event.Kind), false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   uuid.NewString(),
		Body:        body,
		Timestamp:   time.Now(),
	})
}

func (p *AMQPPublisher) Close() error {
	return p.channel.Close()
}

func routingKey(kind domain.EventKind) string {
	return "file." + string(kind)
}

// Publishers fans one event out to every publisher; one failing sink does
// not stop the rest.
type Publishers []EventPublisher

func (ps Publishers) Publish(ctx context.Context, event domain.FileEvent) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
