package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLogFile is the file name the consumer appends to inside its directory.
const AuditLogFile = "orders.log"

// AuditConsumer listens to the engine event queue and appends one line
// per event to <dir>/orders.log.
type AuditConsumer struct {
	URL   string
	Queue string
	Dir   string
	Log   *slog.Logger
}

// Run connects to RabbitMQ, declares the queue (durable) and consumes
// until ctx is cancelled. Broker failures trigger a reconnect with
// exponential backoff capped at 30s. Malformed messages are rejected
// without requeue so the consumer keeps going.
func (c *AuditConsumer) Run(ctx context.Context) error {
	queueName := c.Queue
	if queueName == "" {
		queueName = DefaultQueueName
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("audit consumer dial failed", "action", "consumer_dial", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn, queueName)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("audit consumer loop ended; reconnecting", "action", "consumer_loop", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("audit consumer set QoS failed", "action", "consumer_qos", "error", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
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
			if err := c.handleMessage(d.Body); err != nil {
				c.Log.Error("audit consumer handle message failed", "action", "consumer_handle", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *AuditConsumer) handleMessage(body []byte) error {
	var ev OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	dir := c.Dir
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, AuditLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single human readable line.
func FormatAuditLine(ev OrderEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, ev.Type)
	if ev.OrderID != "" {
		fmt.Fprintf(&b, " | order=%s", ev.OrderID)
	}
	if ev.TableID != 0 {
		fmt.Fprintf(&b, " | table=%d", ev.TableID)
	}
	if ev.From != "" || ev.To != "" {
		fmt.Fprintf(&b, " | %s -> %s", ev.From, ev.To)
	}
	if ev.CouponCode != "" {
		fmt.Fprintf(&b, " | coupon=%s", ev.CouponCode)
	}
	if ev.TotalAmount != "" {
		fmt.Fprintf(&b, " | total=%s", ev.TotalAmount)
	}
	if len(ev.ActiveOrders) > 0 {
		fmt.Fprintf(&b, " | active=[%s]", strings.Join(ev.ActiveOrders, ","))
	}
	if ev.ActorID != "" {
		fmt.Fprintf(&b, " | by=%s", ev.ActorID)
		if ev.ActorRole != "" {
			fmt.Fprintf(&b, "(%s)", ev.ActorRole)
		}
	}
	b.WriteString("\n")
	return b.String()
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
