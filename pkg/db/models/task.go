package models

import (
	"time"

	dbtypes "github.com/davidnajera/mentiondesk-backend/pkg/db/types"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
)

// Task is the outbox record behind all deferred or retryable work. A null
// FinishedAt means the task is in flight or abandoned.
type Task struct {
	ID         int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code       enums.TaskCode  `gorm:"column:code;type:text;not null;index:ix_tasks_code" json:"code"`
	Data       dbtypes.JSON    `gorm:"column:data;type:jsonb;not null" json:"data"`
	StartedAt  *time.Time      `gorm:"column:started_at" json:"startedAt"`
	FinishedAt *time.Time      `gorm:"column:finished_at" json:"finishedAt"`
	CreatedBy  string          `gorm:"column:created_by;type:text;not null" json:"createdBy"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
