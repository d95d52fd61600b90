package audit

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
)

// Writer appends audit trail entries. Audits are insert-only; there is
// deliberately no update or delete surface here.
type Writer struct {
	db *gorm.DB
}

// NewWriter wraps the shared connection.
func NewWriter(db *gorm.DB) *Writer {
	return &Writer{db: db}
}

// WriteTx appends one entry inside the caller's transaction.
func (w *Writer) WriteTx(tx *gorm.DB, event enums.AuditEvent, data any, createdBy string) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	row := models.Audit{
		Event:     event,
		Data:      payload,
		CreatedBy: createdBy,
	}
	return tx.Create(&row).Error
}
