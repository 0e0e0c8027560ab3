// Package notifier implements LISTEN/NOTIFY fan-out (spec.md §4.4):
// a dedicated, unpooled connection listens on the good_job channel and
// dispatches events to locally registered subscribers. Grounded on
// internal/infrastructure/postgres/db.go's pool construction style,
// generalized to a single dedicated pgx.Conn rather than a pool.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
)

// Channel is the well-known LISTEN/NOTIFY channel every cooperating
// process publishes enqueue events on (spec.md §6.3).
const Channel = "good_job"

// Event is the decoded NOTIFY payload: the target queue and, optionally, a
// future scheduled_at that lets a subscriber decide whether to wake
// immediately or ignore (spec.md §4.4, §6.3).
type Event struct {
	QueueName   string     `json:"queue_name"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Notifier owns one dedicated connection for its whole lifetime, reconnects
// with capped exponential backoff on drop, and fans received events out to
// every currently registered subscriber channel. Subscribers register and
// unregister dynamically, so the notifier must survive individual worker
// restarts (spec.md §4.4).
type Notifier struct {
	connString string
	logger     *slog.Logger

	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func New(connString string, logger *slog.Logger) *Notifier {
	return &Notifier{
		connString:  connString,
		logger:      logger,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a buffered channel that receives every future Event
// until ctx is done, at which point it is unregistered and closed.
func (n *Notifier) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.subscribers, ch)
		n.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (n *Notifier) broadcast(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		select {
		case ch <- ev:
		default:
			n.logger.Warn("notifier subscriber channel full, dropping event", "queue_name", ev.QueueName)
		}
	}
}

// Run connects, issues LISTEN and blocks on WaitForNotification until ctx is
// canceled. On any connection error it reconnects with capped exponential
// backoff (github.com/cenkalti/backoff/v4); while disconnected, subscribers
// receive nothing and fall back to their own poll interval, per spec.md
// §4.4.
func (n *Notifier) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry forever, bounded only by ctx

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := n.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			n.logger.Warn("notifier connection lost, reconnecting", "error", err, "backoff", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		bo.Reset()
	}
}

func (n *Notifier) listenOnce(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, n.connString)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	n.logger.Info("notifier listening", "channel", Channel)

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	notifCh := make(chan *pgx.Notification, 1)
	errCh := make(chan error, 1)
	go func() {
		for {
			notif, err := conn.WaitForNotification(ctx)
			if err != nil {
				errCh <- err
				return
			}
			notifCh <- notif
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-keepalive.C:
			if err := conn.Ping(ctx); err != nil {
				return err
			}
		case notif := <-notifCh:
			var ev Event
			if err := json.Unmarshal([]byte(notif.Payload), &ev); err != nil {
				n.logger.Error("notifier: malformed payload", "error", err, "payload", notif.Payload)
				continue
			}
			n.broadcast(ev)
		}
	}
}
