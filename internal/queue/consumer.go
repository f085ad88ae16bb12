package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// Consumer reads the truck events queue and appends one audit entry per
// event.  Hook, when set, runs after the entry is written; a Hook error
// rejects the message without requeueing.
type Consumer struct {
    URL   string
    Queue string
    Log   logrus.FieldLogger
    Audit *logrus.Logger
    Hook  func(ctx context.Context, ev TruckEvent) error
}

// NewAuditLogger opens (creating if needed) path for appending and returns
// a logrus logger writing JSON lines to it.
func NewAuditLogger(path string) (*logrus.Logger, io.Closer, error) {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
        return nil, nil, fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return nil, nil, fmt.Errorf("open log file: %w", err)
    }
    l := logrus.New()
    l.SetOutput(f)
    l.SetFormatter(&logrus.JSONFormatter{})
    l.SetLevel(logrus.InfoLevel)
    return l, f, nil
}

// Run connects to the broker and consumes until ctx is cancelled.  Broken
// connections are retried with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            c.Log.WithError(err).Warnf("truck-consumer: dial failed; retrying in %s", backoff)
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        c.Log.WithError(err).Warn("truck-consumer: consume loop ended; reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        c.Log.WithError(err).Warn("truck-consumer: set QoS failed")
    }
    if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.Handle(ctx, d.Body); err != nil {
                c.Log.WithError(err).WithField("message_id", d.MessageId).Warn("truck-consumer: handle message failed")
                _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
                continue
            }
            _ = d.Ack(false)
        }
    }
}

// Handle decodes one message body and records it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
    var ev TruckEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" || ev.TruckID == 0 {
        return errors.New("event without type or truck id")
    }

    fields := logrus.Fields{
        "event":         ev.Type,
        "truck_id":      ev.TruckID,
        "plate_number":  ev.PlateNumber,
        "contractor":    ev.ContractorName,
        "factory":       ev.FactoryName,
        "gate":          ev.GateName,
        "registered_by": ev.RegisteredBy,
        "status":        ev.Status,
        "occurred_at":   ev.OccurredAt,
    }
    if ev.PreviousStatus != "" {
        fields["previous_status"] = ev.PreviousStatus
    }
    c.Audit.WithFields(fields).Info("truck event")

    if c.Hook != nil {
        return c.Hook(ctx, ev)
    }
    return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
