package models

import (
	"time"

	dbtypes "github.com/davidnajera/mentiondesk-backend/pkg/db/types"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
)

// Audit is an append-only trail entry. Rows are never updated or deleted.
type Audit struct {
	ID        int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Event     enums.AuditEvent `gorm:"column:event;type:text;not null" json:"event"`
	Data      dbtypes.JSON     `gorm:"column:data;type:jsonb" json:"data"`
	CreatedBy string           `gorm:"column:created_by;type:text;not null" json:"createdBy"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
