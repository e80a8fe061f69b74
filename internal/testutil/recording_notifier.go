package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/mealsub/internal/notification"
)

// RecordingNotifier keeps every notification it receives
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []*notification.Notification
	// Err is returned from Notify when set
	Err error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

func (r *RecordingNotifier) Notify(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.Err
}

// Sent returns the notifications of the given kind
func (r *RecordingNotifier) Sent(kind notification.Kind) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*notification.Notification
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func (r *RecordingNotifier) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
