package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
)

// ReplyUniqueIndex is the partial unique index guarding one reply task per
// mention; finished tasks keep holding the slot.
const ReplyUniqueIndex = "ux_tasks_reply_mention"

// ReplyContentUniqueIndex guards against re-submitting identical content.
const ReplyContentUniqueIndex = "ux_tasks_reply_mention_content"

// Repository is the task-queue store. Tasks with a null finished_at are
// in flight or abandoned; recovery loops sweep them back up.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps the shared connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx creates a task inside the caller's transaction. Unique index
// violations bubble up for the caller to classify.
func (r *Repository) InsertTx(tx *gorm.DB, task *models.Task) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(task).Error
}

// UpdateTx persists task mutations inside the caller's transaction.
func (r *Repository) UpdateTx(tx *gorm.DB, task *models.Task) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"data":        task.Data,
			"started_at":  task.StartedAt,
			"finished_at": task.FinishedAt,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// DeleteStaleRepliesTx removes unfinished reply tasks for a mention whose
// startedAt predates the cutoff, clearing the unique index for a fresh
// attempt.
func (r *Repository) DeleteStaleRepliesTx(tx *gorm.DB, mentionID int64, cutoff time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.
		Where("code = ?", enums.TaskReplyMention).
		Where("data->>'mentionId' = ?", fmt.Sprint(mentionID)).
		Where("finished_at IS NULL").
		Where("started_at < ?", cutoff).
		Delete(&models.Task{}).Error
}

// FindByID loads one task.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindUnfinished returns tasks of the given code that are still open and
// were started inside the recovery window.
func (r *Repository) FindUnfinished(ctx context.Context, code enums.TaskCode, since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		Where("finished_at IS NULL").
		Where("started_at >= ?", since).
		Order("started_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindRecent returns tasks of the given code created inside the window,
// finished or not. The fetch pipeline uses this to skip posts already
// being reconciled by a concurrent caller or another process.
func (r *Repository) FindRecent(ctx context.Context, code enums.TaskCode, since time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}
