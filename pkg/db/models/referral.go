package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// ReferralCampaign configures what a completed referral pays out.
type ReferralCampaign struct {
	ID                   uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string           `gorm:"column:name;not null;uniqueIndex"`
	Active               bool             `gorm:"column:active;not null;default:true"`
	RewardType           enums.RewardType `gorm:"column:reward_type;not null;default:'wallet'"`
	ReferrerWalletAmount decimal.Decimal  `gorm:"column:referrer_wallet_amount;type:numeric(12,2);not null"`
	ReferrerPoints       int              `gorm:"column:referrer_points;not null"`
	ReferredWalletAmount decimal.Decimal  `gorm:"column:referred_wallet_amount;type:numeric(12,2);not null"`
	ReferredPoints       int              `gorm:"column:referred_points;not null"`
	CouponCode           *string          `gorm:"column:coupon_code"`
	FreeProductSKU       *string          `gorm:"column:free_product_sku"`
	VIPThreshold         int              `gorm:"column:vip_threshold;not null"`
	CreatedAt            time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Referral tracks one referrer/referred relationship. The credited flags are
// idempotency guards so re-running completion never double-pays.
type Referral struct {
	ID                     uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ReferrerID             uuid.UUID            `gorm:"column:referrer_id;type:uuid;not null;index:idx_referrals_referrer"`
	ReferredID             *uuid.UUID           `gorm:"column:referred_id;type:uuid;index:idx_referrals_referred_status"`
	CampaignID             *uuid.UUID           `gorm:"column:campaign_id;type:uuid"`
	Code                   string               `gorm:"column:code;not null;uniqueIndex"`
	Status                 enums.ReferralStatus `gorm:"column:status;not null;default:'pending';index:idx_referrals_referred_status"`
	RewardCredited         bool                 `gorm:"column:reward_credited;not null;default:false"`
	ReferredRewardCredited bool                 `gorm:"column:referred_reward_credited;not null;default:false"`
	QualifyingOrderID      *uuid.UUID           `gorm:"column:qualifying_order_id;type:uuid"`
	FirstOrderDate         *time.Time           `gorm:"column:first_order_date"`
	CompletedAt            *time.Time           `gorm:"column:completed_at"`
	ExpiresAt              *time.Time           `gorm:"column:expires_at"`
	CreatedAt              time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
