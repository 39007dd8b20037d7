// AngelaMos | 2026
// notify_test.go

package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	rec := &recordingNotifier{}
	d := NewDispatcher(rec, discardLogger(), time.Second)

	for range 5 {
		d.Dispatch(Message{To: "a@example.com", Subject: "hi"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, 5, rec.count())

	d.Dispatch(Message{To: "a@example.com", Subject: "late"})
	assert.Equal(t, 5, rec.count())
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(rec, discardLogger(), time.Second)

	assert.NotPanics(t, func() {
		d.Dispatch(Message{To: "a@example.com", Subject: "hi"})
	})
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, rec.count())
}

func TestLogNotifierValidates(t *testing.T) {
	n := NewLogNotifier(discardLogger())

	assert.ErrorIs(t, n.Notify(context.Background(), Message{Subject: "x"}), ErrInvalidMessage)
	assert.ErrorIs(t, n.Notify(context.Background(), Message{To: "a@example.com"}), ErrInvalidMessage)
	assert.NoError(t, n.Notify(context.Background(), Message{To: "a@example.com", Subject: "x"}))
}

func TestComposeStripsHeaderInjection(t *testing.T) {
	raw := string(compose("noreply@example.com", Message{
		To:      "student@example.com",
		Subject: "Approved\r\nBcc: attacker@example.com",
		Body:    "line one\nline two",
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	assert.Contains(t, raw, "Subject: Approved  Bcc: attacker@example.com\r\n")
	assert.NotContains(t, raw, "\r\nBcc:")
	assert.True(t, strings.HasSuffix(raw, "line one\r\nline two"))
}
