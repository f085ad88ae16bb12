package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// defaultDialTimeout bounds the dial when ctx carries no deadline.
const defaultDialTimeout = 3 * time.Second

// Publisher sends TruckEvents to the broker.  Each call dials a fresh
// connection; event volume is one message per ledger write, so a pooled
// channel is not worth the reconnect bookkeeping.  Failures are returned,
// not logged; the caller decides how loud to be.
type Publisher struct {
    URL   string
    Queue string
    Log   logrus.FieldLogger
}

// NewPublisher returns a Publisher for the truck events queue.
func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
    return &Publisher{URL: url, Queue: TruckEventsQueue, Log: log}
}

// dialTimeout is what is left of ctx's deadline, or defaultDialTimeout.
func dialTimeout(ctx context.Context) (time.Duration, error) {
    if err := ctx.Err(); err != nil {
        return 0, err
    }
    deadline, ok := ctx.Deadline()
    if !ok {
        return defaultDialTimeout, nil
    }
    left := time.Until(deadline)
    if left <= 0 {
        return 0, context.DeadlineExceeded
    }
    return left, nil
}

// Publish marshals ev and publishes it as a persistent message with a
// random message ID. The dial honours ctx's deadline.
func (p *Publisher) Publish(ctx context.Context, ev TruckEvent) error {
    timeout, err := dialTimeout(ctx)
    if err != nil {
        return fmt.Errorf("rabbitmq: dial: %w", err)
    }
    conn, err := amqp.DialConfig(p.URL, amqp.Config{
        Dial:      amqp.DefaultDial(timeout),
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
    })
    if err != nil {
        return fmt.Errorf("rabbitmq: dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("rabbitmq: channel: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("rabbitmq: declare %s: %w", p.Queue, err)
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    uuid.NewString(),
        Type:         ev.Type,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
        return fmt.Errorf("rabbitmq: publish: %w", err)
    }
    p.Log.WithFields(logrus.Fields{"event": ev.Type, "truck_id": ev.TruckID, "message_id": pub.MessageId}).Debug("rabbitmq: published")
    return nil
}
