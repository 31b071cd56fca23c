package referrals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

// Repository manages persistence for referrals and their campaigns.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, referral *models.Referral) error
	Save(ctx context.Context, referral *models.Referral) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Referral, error)
	FindByCode(ctx context.Context, code string) (*models.Referral, error)
	// FindRewardableByReferred returns the referral a delivered order may pay
	// out on: registered, or completed (replays re-run crediting only).
	FindRewardableByReferred(ctx context.Context, referredID uuid.UUID) (*models.Referral, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountCompletedByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error)
	FindCampaignByID(ctx context.Context, id uuid.UUID) (*models.ReferralCampaign, error)
	FindActiveCampaignByName(ctx context.Context, name string) (*models.ReferralCampaign, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a referral repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *repository) Save(ctx context.Context, referral *models.Referral) error {
	return r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("id = ?", referral.ID).
		Updates(map[string]any{
			"referred_id":              referral.ReferredID,
			"status":                   referral.Status,
			"reward_credited":          referral.RewardCredited,
			"referred_reward_credited": referral.ReferredRewardCredited,
			"qualifying_order_id":      referral.QualifyingOrderID,
			"first_order_date":         referral.FirstOrderDate,
			"completed_at":             referral.CompletedAt,
		}).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&referral).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Referral, error) {
	var referral models.Referral
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&referral).Error; err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) FindRewardableByReferred(ctx context.Context, referredID uuid.UUID) (*models.Referral, error) {
	var referral models.Referral
	err := r.db.WithContext(ctx).
		Where("referred_id = ?", referredID).
		Where("status IN ?", []enums.ReferralStatus{enums.ReferralStatusRegistered, enums.ReferralStatusCompleted}).
		Order("created_at ASC").
		First(&referral).Error
	if err != nil {
		return nil, err
	}
	return &referral, nil
}

func (r *repository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("status = ?", enums.ReferralStatusPending).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Update("status", enums.ReferralStatusExpired)
	return result.RowsAffected, result.Error
}

func (r *repository) CountCompletedByReferrer(ctx context.Context, referrerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Referral{}).
		Where("referrer_id = ?", referrerID).
		Where("status = ?", enums.ReferralStatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *repository) FindCampaignByID(ctx context.Context, id uuid.UUID) (*models.ReferralCampaign, error) {
	var campaign models.ReferralCampaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) FindActiveCampaignByName(ctx context.Context, name string) (*models.ReferralCampaign, error) {
	var campaign models.ReferralCampaign
	err := r.db.WithContext(ctx).
		Where("name = ? AND active = ?", name, true).
		First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}
