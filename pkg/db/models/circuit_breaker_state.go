package models

import (
	"time"

	dbtypes "github.com/davidnajera/mentiondesk-backend/pkg/db/types"
)

// CircuitBreakerState persists one circuit's state per platform so that
// multiple process instances converge on the same open/closed decision.
type CircuitBreakerState struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CircuitName string          `gorm:"column:circuit_name;type:text;not null;uniqueIndex:ux_circuit_breaker_states_name" json:"circuitName"`
	StateData   dbtypes.JSON    `gorm:"column:state_data;type:jsonb;not null" json:"stateData"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
