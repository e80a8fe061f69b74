package jobs

import (
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/types"
)

// Trigger sources recorded on each message
const (
	RequestedByScheduler = "scheduler"
	RequestedByTemporal  = "temporal"
	RequestedByOperator  = "operator"
)

// Message is the payload published for one job run
type Message struct {
	Job         types.JobName `json:"job"`
	RunDate     string        `json:"run_date"`
	RequestedAt time.Time     `json:"requested_at"`
	RequestedBy string        `json:"requested_by"`
}

func newMessage(job types.JobName, requestedBy string, now time.Time) *Message {
	return &Message{
		Job:         job,
		RunDate:     now.UTC().Format(time.DateOnly),
		RequestedAt: now.UTC(),
		RequestedBy: requestedBy,
	}
}

func (m *Message) encode() (*message.Message, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode job message").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(types.GenerateUUIDWithPrefix(types.UUID_PREFIX_JOB), payload)
	msg.Metadata.Set("job", string(m.Job))
	msg.Metadata.Set("run_date", m.RunDate)
	msg.Metadata.Set("requested_by", m.RequestedBy)
	return msg, nil
}

func decodeMessage(msg *message.Message) (*Message, error) {
	var m Message
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Malformed job message").
			WithReportableDetails(map[string]any{"message_uuid": msg.UUID}).
			Mark(ierr.ErrValidation)
	}
	if err := m.Job.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
