package activity

import (
	"context"
	"fmt"

	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Entity type labels used across the fulfillment core.
const (
	EntityOrder    = "order"
	EntityReferral = "referral"
	EntityCustomer = "customer"
	EntityLedger   = "ledger_account"
)

// Recorder is the write-side helper services use to append audit rows
// without assembling models by hand.
type Recorder struct {
	repo Repository
}

// NewRecorder wires a recorder over the activity repository.
func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("activity repository required")
	}
	return &Recorder{repo: repo}, nil
}

// RecordChange appends one old→new change row for the entity.
func (r *Recorder) RecordChange(ctx context.Context, tx *gorm.DB, actor, entityType, entityID, oldValue, newValue, description string) error {
	entry := &models.ActivityLog{
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if oldValue != "" {
		entry.OldValue = &oldValue
	}
	if newValue != "" {
		entry.NewValue = &newValue
	}
	if description != "" {
		entry.Description = &description
	}
	return r.repo.WithTx(tx).Append(ctx, entry)
}
