// AngelaMos | 2026
// notify.go

// Package notify delivers best-effort notifications. Callers never wait on
// delivery and a failed send never fails the request that triggered it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrInvalidMessage = errors.New("invalid message")

type Message struct {
	To      string
	Subject string
	Body    string
}

func (m Message) validate() error {
	if m.To == "" {
		return fmt.Errorf("missing recipient: %w", ErrInvalidMessage)
	}
	if m.Subject == "" {
		return fmt.Errorf("missing subject: %w", ErrInvalidMessage)
	}
	return nil
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier records messages instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "notification",
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

// Dispatcher sends through a Notifier on background goroutines.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

func NewDispatcher(notifier Notifier, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
	}
}

// Dispatch returns immediately. Messages dispatched after Close are dropped.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped after shutdown", "subject", msg.Subject)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, msg); err != nil {
			d.logger.Warn("notification failed",
				"to", msg.To,
				"subject", msg.Subject,
				"error", err,
			)
		}
	}()
}

// Close stops accepting messages and waits for in-flight sends or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for notifications: %w", ctx.Err())
	}
}
