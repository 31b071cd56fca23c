package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog is one append-only row per state change. Never mutated or
// deleted; read only for audit.
type ActivityLog struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Actor       string    `gorm:"column:actor;not null"`
	EntityType  string    `gorm:"column:entity_type;not null;index:idx_activity_logs_entity"`
	EntityID    string    `gorm:"column:entity_id;not null;index:idx_activity_logs_entity"`
	OldValue    *string   `gorm:"column:old_value"`
	NewValue    *string   `gorm:"column:new_value"`
	Description *string   `gorm:"column:description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
