package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/flexprice/mealsub/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []*Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	return r.err
}

func TestDispatcherFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	d := NewDispatcher(logger.NewNoopLogger(), 0, 4, a, b)

	err := d.Notify(context.Background(), &Notification{Kind: KindRenewalFailed, UserID: "user_1"})
	require.NoError(t, err)

	require.Len(t, a.seen, 1)
	require.Len(t, b.seen, 1)
	assert.NotEmpty(t, a.seen[0].ID)
	assert.False(t, a.seen[0].CreatedAt.IsZero())
}

func TestDispatcherReportsChannelErrors(t *testing.T) {
	ok := &recorder{}
	broken := &recorder{err: errors.New("smtp down")}
	d := NewDispatcher(logger.NewNoopLogger(), 100, 2, ok, broken)

	err := d.Notify(context.Background(), &Notification{Kind: KindSubscriptionExpired, UserID: "user_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, ok.seen, 1)
}

func TestDisabledEmailNotifierIsNoop(t *testing.T) {
	e := NewEmailNotifier(EmailConfig{Enabled: true}, logger.NewNoopLogger())
	assert.False(t, e.IsEnabled())
	assert.NoError(t, e.Notify(context.Background(), &Notification{Email: "a@example.com"}))
}
