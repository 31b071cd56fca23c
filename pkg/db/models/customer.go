package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// Customer holds the account fields the fulfillment core touches: identity,
// loyalty tier, and the referral linkage.
type Customer struct {
	ID                   uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string               `gorm:"column:name;not null"`
	Phone                *string              `gorm:"column:phone"`
	Email                *string              `gorm:"column:email"`
	MembershipTier       enums.MembershipTier `gorm:"column:membership_tier;not null;default:'none'"`
	MembershipCardNumber *string              `gorm:"column:membership_card_number"`
	ReferredBy           *uuid.UUID           `gorm:"column:referred_by;type:uuid"`
	CreatedAt            time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
