package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/evently/ticketing/internal/entity"
)

func TestShouldRetry(t *testing.T) {
	rm := NewRetryManager(3, time.Second)

	tests := []struct {
		name      string
		task      *Task
		err       error
		wantRetry bool
	}{
		{
			name:      "transient error retried",
			task:      &Task{Attempts: 1, MaxRetries: 3},
			err:       fmt.Errorf("connection refused"),
			wantRetry: true,
		},
		{
			name:      "attempts exhausted",
			task:      &Task{Attempts: 3, MaxRetries: 3},
			err:       fmt.Errorf("connection refused"),
			wantRetry: false,
		},
		{
			name:      "domain outcome is final",
			task:      &Task{Attempts: 0, MaxRetries: 3},
			err:       fmt.Errorf("issuing: %w", entity.ErrAttendeeNotFound),
			wantRetry: false,
		},
		{
			name:      "sold out is final",
			task:      &Task{Attempts: 0, MaxRetries: 3},
			err:       &entity.SoldOutError{Label: "VIP"},
			wantRetry: false,
		},
		{
			name:      "duplicate issuance is final",
			task:      &Task{Attempts: 0, MaxRetries: 3},
			err:       entity.ErrTicketAlreadyIssued,
			wantRetry: false,
		},
		{
			name:      "cancelled context not retried",
			task:      &Task{Attempts: 0, MaxRetries: 3},
			err:       fmt.Errorf("fetch: %w", context.Canceled),
			wantRetry: false,
		},
		{
			name:      "nil error not retried",
			task:      &Task{Attempts: 0, MaxRetries: 3},
			err:       nil,
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retry, delay := rm.ShouldRetry(tt.task, tt.err)
			assert.Equal(t, tt.wantRetry, retry)
			if retry {
				assert.Greater(t, delay, time.Duration(0))
			} else {
				assert.Equal(t, time.Duration(0), delay)
			}
		})
	}
}

func TestBackoffBounds(t *testing.T) {
	rm := NewRetryManager(5, time.Second)

	for attempt := 0; attempt <= 10; attempt++ {
		delay := rm.backoff(attempt)
		assert.GreaterOrEqual(t, delay, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, delay, 20*time.Second, "attempt %d", attempt)
	}
}

func TestTaskValidate(t *testing.T) {
	task := &Task{ID: "t-1", Type: TaskTypeIssueTicket}
	assert.NoError(t, task.Validate())
	assert.NotNil(t, task.Data)

	assert.Error(t, (&Task{Type: TaskTypeIssueTicket}).Validate())
	assert.Error(t, (&Task{ID: "t-1"}).Validate())
}

func TestTaskDataAccessors(t *testing.T) {
	added := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	task := &Task{
		ID:   "t-1",
		Type: TaskTypeIssueTicket,
		Data: map[string]interface{}{
			"attendee_id": "att-1",
			"count":       float64(3), // json numbers decode as float64
			"when":        added.Format(time.RFC3339),
		},
	}

	assert.Equal(t, "att-1", task.GetString("attendee_id"))
	assert.Equal(t, "", task.GetString("missing"))
	assert.Equal(t, 3, task.GetInt("count"))
	assert.Equal(t, 0, task.GetInt("attendee_id"))
	assert.True(t, added.Equal(task.GetTime("when")))
	assert.True(t, task.GetTime("missing").IsZero())
}
