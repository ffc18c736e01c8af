package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"catsync/internal/logger"
	"catsync/internal/models"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

const Topic = "catalog-sync-jobs"

// A job claimed this long ago with no progress is considered stalled and
// gets re-dispatched by the healthcheck.
const stallTimeout = 2 * time.Minute

type JobMessage struct {
	JobID     string    `json:"job_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Queue is the durable background runner: batch jobs are persisted as DB
// rows so they survive process restarts, and dispatch notifications travel
// over Kafka to the worker process.
type Queue struct {
	db     *gorm.DB
	writer *kafka.Writer
	logger *logger.Logger

	mu      sync.Mutex
	pending []string
}

func New(db *gorm.DB, brokers string, logger *logger.Logger) *Queue {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers),
		Topic:    Topic,
		Balancer: &kafka.LeastBytes{},
	}

	return &Queue{
		db:     db,
		writer: writer,
		logger: logger,
	}
}

// Push appends a product ID to the batch being assembled. Nothing is
// persisted until SaveAndDispatch.
func (q *Queue) Push(productID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, productID)
}

// SaveAndDispatch persists the assembled batch as a durable job row and
// notifies the worker. The job row, not the notification, is the source of
// truth; a lost message is recovered by the healthcheck.
func (q *Queue) SaveAndDispatch(ctx context.Context) error {
	q.mu.Lock()
	productIDs := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(productIDs) == 0 {
		return nil
	}

	job := &models.BatchJob{
		ProductIDs: productIDs,
		Remaining:  len(productIDs),
		Status:     models.JobPending,
	}
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to persist batch job: %w", err)
	}

	if err := q.notify(ctx, job.ID); err != nil {
		// The job row survives; the healthcheck will re-dispatch it.
		q.logger.Error("Failed to dispatch batch job %s: %v", job.ID, err)
	}

	return nil
}

// IsUpdating reports whether any job is actively being drained.
func (q *Queue) IsUpdating(ctx context.Context) bool {
	var count int64
	q.db.WithContext(ctx).
		Model(&models.BatchJob{}).
		Where("status = ? AND claimed = ?", models.JobRunning, true).
		Count(&count)
	return count > 0
}

// RemainingCount sums the remaining items across all non-terminal jobs.
func (q *Queue) RemainingCount(ctx context.Context) int {
	var remaining int64
	q.db.WithContext(ctx).
		Model(&models.BatchJob{}).
		Where("status IN ?", []models.BatchJobStatus{models.JobPending, models.JobRunning}).
		Select("COALESCE(SUM(remaining), 0)").
		Scan(&remaining)
	return int(remaining)
}

// HandleHealthcheck resumes stalled processing: unclaimed pending jobs and
// running jobs with no recent progress are re-dispatched.
func (q *Queue) HandleHealthcheck(ctx context.Context) {
	var jobs []models.BatchJob
	cutoff := time.Now().Add(-stallTimeout)
	err := q.db.WithContext(ctx).
		Where("(status = ? AND claimed = ?) OR (status = ? AND updated_at < ?)",
			models.JobPending, false, models.JobRunning, cutoff).
		Find(&jobs).Error
	if err != nil {
		q.logger.Error("Healthcheck query failed: %v", err)
		return
	}

	for _, job := range jobs {
		if job.Status == models.JobRunning {
			// Release the stale claim so a worker can pick it up again.
			err := q.db.WithContext(ctx).
				Model(&models.BatchJob{}).
				Where("id = ? AND updated_at < ?", job.ID, cutoff).
				Updates(map[string]interface{}{"claimed": false, "status": models.JobPending}).Error
			if err != nil {
				q.logger.Error("Failed to release stalled job %s: %v", job.ID, err)
				continue
			}
		}
		if err := q.notify(ctx, job.ID); err != nil {
			q.logger.Error("Failed to re-dispatch job %s: %v", job.ID, err)
		}
	}
}

func (q *Queue) notify(ctx context.Context, jobID string) error {
	msg := JobMessage{JobID: jobID, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal job message: %w", err)
	}

	err = q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(jobID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to write job message: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.writer.Close()
}
