package models

import (
	"encoding/json"
	"time"

	dbtypes "github.com/davidnajera/mentiondesk-backend/pkg/db/types"
	"github.com/davidnajera/mentiondesk-backend/pkg/enums"
)

// Mention is the normalized record for a comment, message, or reply
// captured from the upstream aggregator. SocialMediaPlatformRef is the
// aggregator's id for the item and the idempotency key for ingestion.
type Mention struct {
	ID                    int64               `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Content               string              `gorm:"column:content;type:text;not null" json:"content"`
	SocialMediaPlatformRef string             `gorm:"column:social_media_platform_ref;type:text;not null;uniqueIndex:ux_mentions_platform_ref" json:"socialMediaPlatformRef"`
	SocialMediaAPIPostRef string              `gorm:"column:social_media_api_post_ref;type:text" json:"socialMediaAPIPostRef"`
	Platform              string              `gorm:"column:platform;type:text;not null" json:"platform"`
	Type                  enums.MentionType   `gorm:"column:type;type:text;not null" json:"type"`
	State                 *enums.MentionState `gorm:"column:state;type:text" json:"state"`
	Disposition           string              `gorm:"column:disposition;type:text" json:"disposition"`
	UserID                *int64              `gorm:"column:user_id" json:"userId"`
	MentionID             *int64              `gorm:"column:mention_id" json:"mentionId"`
	Data                  dbtypes.JSON        `gorm:"column:data;type:jsonb" json:"data"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// MentionData is the opaque payload stored in Mention.Data.
type MentionData struct {
	SocialMediaPayload json.RawMessage `json:"socialMediaPayload,omitempty"`
	TaskID             int64           `json:"taskId,omitempty"`
}
