package mentions

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/davidnajera/mentiondesk-backend/pkg/db/models"
)

// Repository is the mention store.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps the shared connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads one mention, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Mention, error) {
	var mention models.Mention
	err := r.db.WithContext(ctx).First(&mention, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mention, nil
}

// FindByIDTx loads one mention inside a transaction, or nil when absent.
func (r *Repository) FindByIDTx(tx *gorm.DB, id int64) (*models.Mention, error) {
	var mention models.Mention
	err := tx.First(&mention, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mention, nil
}

// List returns all mentions, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Mention, error) {
	var rows []models.Mention
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// CreateTx inserts a mention inside the caller's transaction.
func (r *Repository) CreateTx(tx *gorm.DB, mention *models.Mention) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(mention).Error
}

// UpdateTx persists mention field changes inside the caller's transaction.
func (r *Repository) UpdateTx(tx *gorm.DB, mention *models.Mention) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.Mention{}).
		Where("id = ?", mention.ID).
		Updates(map[string]any{
			"content":     mention.Content,
			"state":       mention.State,
			"disposition": mention.Disposition,
			"user_id":     mention.UserID,
			"data":        mention.Data,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// mentionSeed is one row of the ingestion upsert.
type mentionSeed struct {
	Content     string
	PlatformRef string
	APIPostRef  string
	Platform    string
	Type        string
	Data        []byte
}

// UpsertSeedsTx ingests a batch of seeds in a single statement, skipping
// rows whose platform ref already exists. Every value is bound as a
// parameter.
func (r *Repository) UpsertSeedsTx(tx *gorm.DB, seeds []mentionSeed) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(seeds) == 0 {
		return nil
	}

	// de-dup within the batch; the unique index only guards the table
	unique := make([]mentionSeed, 0, len(seeds))
	seen := make(map[string]struct{}, len(seeds))
	for _, seed := range seeds {
		if _, ok := seen[seed.PlatformRef]; ok {
			continue
		}
		seen[seed.PlatformRef] = struct{}{}
		unique = append(unique, seed)
	}

	now := time.Now().UTC()
	selects := make([]string, 0, len(unique))
	args := make([]any, 0, len(unique)*9)
	for _, seed := range unique {
		selects = append(selects,
			`SELECT ?, ?, ?, ?, ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM mentions WHERE social_media_platform_ref = ?)`)
		args = append(args,
			seed.Content, seed.PlatformRef, seed.APIPostRef, seed.Platform,
			seed.Type, seed.Data, now, now, seed.PlatformRef)
	}

	stmt := `INSERT INTO mentions
		(content, social_media_platform_ref, social_media_api_post_ref, platform, type, data, created_at, updated_at) ` +
		strings.Join(selects, " UNION ALL ")
	return tx.Exec(stmt, args...).Error
}
