package service

import (
	"context"

	"github.com/evently/ticketing/pkg/queue"
)

// QueueAdapter adapts queue.Queue to the TaskPublisher interface
type QueueAdapter struct {
	queue queue.Queue
}

// NewQueueAdapter creates a new adapter for the queue
func NewQueueAdapter(q queue.Queue) *QueueAdapter {
	return &QueueAdapter{queue: q}
}

// Publish converts a service.Task into a queue.Task and enqueues it. A nil
// queue turns publishing into a no-op for deployments without Redis.
func (a *QueueAdapter) Publish(ctx context.Context, task *Task) error {
	if a.queue == nil {
		return nil
	}
	return a.queue.Publish(ctx, toQueueTask(task))
}

// PublishBatch enqueues multiple tasks in one round trip
func (a *QueueAdapter) PublishBatch(ctx context.Context, tasks []*Task) error {
	if a.queue == nil || len(tasks) == 0 {
		return nil
	}

	queueTasks := make([]*queue.Task, 0, len(tasks))
	for _, task := range tasks {
		queueTasks = append(queueTasks, toQueueTask(task))
	}
	return a.queue.PublishBatch(ctx, queueTasks)
}

func toQueueTask(task *Task) *queue.Task {
	return &queue.Task{
		ID:         task.ID,
		Type:       queue.TaskType(task.Type),
		Data:       task.Data,
		ExecuteAt:  task.ExecuteAt,
		MaxRetries: task.MaxRetries,
		Attempts:   task.Attempts,
	}
}
