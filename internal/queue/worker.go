package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"catsync/internal/catalog"
	"catsync/internal/config"
	"catsync/internal/logger"
	"catsync/internal/models"
	"catsync/internal/sync"

	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// Worker drains batch jobs: it claims a job, walks its product IDs through
// the reconciler from the persisted cursor, and records progress after each
// item so a restart resumes where it left off.
type Worker struct {
	config *config.Config
	logger *logger.Logger
	reader *kafka.Reader
	db     *gorm.DB
	rec    *sync.Reconciler
}

func NewWorker(cfg *config.Config, logger *logger.Logger, db *gorm.DB, rec *sync.Reconciler) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.KafkaBrokers},
		GroupID:        "catsync-worker",
		Topic:          Topic,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
	})

	return &Worker{
		config: cfg,
		logger: logger,
		reader: reader,
		db:     db,
		rec:    rec,
	}
}

func (w *Worker) Start() {
	w.logger.Info("Worker started, listening for batch jobs...")

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		message, err := w.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				w.logger.Error("Failed to read message: %v", err)
			}
			continue
		}

		var msg JobMessage
		if err := json.Unmarshal(message.Value, &msg); err != nil {
			w.logger.Error("Failed to parse job message: %v", err)
			continue
		}

		w.drainJob(context.Background(), msg.JobID)
	}
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.reader.Close()
}

// drainJob claims and processes one batch job. The conditional claim update
// guarantees at most one active drain loop per job, even with duplicate
// dispatch notifications.
func (w *Worker) drainJob(ctx context.Context, jobID string) {
	now := time.Now().UTC()
	claim := w.db.WithContext(ctx).
		Model(&models.BatchJob{}).
		Where("id = ? AND claimed = ? AND status IN ?", jobID, false,
			[]models.BatchJobStatus{models.JobPending, models.JobRunning}).
		Updates(map[string]interface{}{
			"claimed":    true,
			"status":     models.JobRunning,
			"started_at": &now,
		})
	if claim.Error != nil {
		w.logger.Error("Failed to claim job %s: %v", jobID, claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		w.logger.Debug("Job %s already claimed or finished", jobID)
		return
	}

	var job models.BatchJob
	if err := w.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		w.logger.Error("Failed to load job %s: %v", jobID, err)
		return
	}

	w.logger.Info("Draining job %s: %d of %d products remaining", job.ID, job.Remaining, len(job.ProductIDs))

	for i := job.Cursor; i < len(job.ProductIDs); i++ {
		productID := job.ProductIDs[i]

		_, err := w.rec.SyncProduct(ctx, productID)
		if err != nil && isTransient(err) {
			// Pause the job; the healthcheck re-dispatches it after the
			// stall timeout, which doubles as rate-limit backoff.
			w.logger.Warn("Transient failure on product %s, pausing job %s: %v", productID, job.ID, err)
			w.pauseJob(ctx, job.ID, i, len(job.ProductIDs)-i)
			return
		}
		if err != nil {
			// Permanent per-item failure: logged, never blocks the rest.
			w.logger.Error("Failed to sync product %s: %v", productID, err)
		}

		w.advance(ctx, job.ID, i+1, len(job.ProductIDs)-i-1)
	}

	w.finish(ctx, job.ID)
	w.logger.Info("Job %s completed", job.ID)
}

func (w *Worker) advance(ctx context.Context, jobID string, cursor, remaining int) {
	err := w.db.WithContext(ctx).
		Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{"cursor": cursor, "remaining": remaining}).Error
	if err != nil {
		w.logger.Error("Failed to record progress for job %s: %v", jobID, err)
	}
}

func (w *Worker) pauseJob(ctx context.Context, jobID string, cursor, remaining int) {
	err := w.db.WithContext(ctx).
		Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"cursor":    cursor,
			"remaining": remaining,
			"claimed":   false,
			"status":    models.JobPending,
		}).Error
	if err != nil {
		w.logger.Error("Failed to pause job %s: %v", jobID, err)
	}
}

func (w *Worker) finish(ctx context.Context, jobID string) {
	err := w.db.WithContext(ctx).
		Model(&models.BatchJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"remaining": 0,
			"claimed":   false,
			"status":    models.JobCompleted,
		}).Error
	if err != nil {
		w.logger.Error("Failed to complete job %s: %v", jobID, err)
	}
}

func isTransient(err error) bool {
	var apiErr *catalog.APIError
	return errors.As(err, &apiErr) && apiErr.IsTransient()
}
