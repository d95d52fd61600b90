package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
)

// GormStore persists circuit snapshots in circuit_breaker_states.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps the shared connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Load returns the snapshot for a circuit, or nil when none was persisted.
func (s *GormStore) Load(ctx context.Context, name string) (*Snapshot, error) {
	var row models.CircuitBreakerState
	err := s.db.WithContext(ctx).
		Where("circuit_name = ?", name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(row.StateData, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save upserts the snapshot for a circuit.
func (s *GormStore) Save(ctx context.Context, name string, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	row := models.CircuitBreakerState{
		CircuitName: name,
		StateData:   payload,
		UpdatedAt:   time.Now().UTC(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "circuit_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"state_data", "updated_at"}),
		}).
		Create(&row).Error
}

// List returns every persisted circuit snapshot keyed by circuit name.
func (s *GormStore) List(ctx context.Context) (map[string]Snapshot, error) {
	var rows []models.CircuitBreakerState
	if err := s.db.WithContext(ctx).Order("circuit_name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]Snapshot, len(rows))
	for _, row := range rows {
		var snap Snapshot
		if err := json.Unmarshal(row.StateData, &snap); err != nil {
			return nil, err
		}
		out[row.CircuitName] = snap
	}
	return out, nil
}
