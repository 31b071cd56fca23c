package referrals

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

const defaultCodeTTL = 90 * 24 * time.Hour

// Service handles the referral lifecycle up to registration. Completion and
// payout run inside the reward engine.
type Service interface {
	IssueCode(ctx context.Context, referrerID uuid.UUID, campaignID *uuid.UUID) (*models.Referral, error)
	Register(ctx context.Context, code string, referredID uuid.UUID) (*models.Referral, error)
	ExpireStale(ctx context.Context) (int64, error)
}

// ServiceParams wires the referral service dependencies.
type ServiceParams struct {
	Repo     Repository
	DB       *db.Client
	Activity *activity.Recorder
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	db       *db.Client
	activity *activity.Recorder
	logg     *logger.Logger
}

// NewService builds the referral service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("referral service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("referral service requires a database client")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("referral service requires an activity recorder")
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		activity: params.Activity,
		logg:     params.Logger,
	}, nil
}

func (s *service) IssueCode(ctx context.Context, referrerID uuid.UUID, campaignID *uuid.UUID) (*models.Referral, error) {
	if campaignID != nil {
		if _, err := s.repo.FindCampaignByID(ctx, *campaignID); err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("campaign %s not found", campaignID))
			}
			return nil, errors.Wrap(errors.CodeInternal, err, "loading referral campaign")
		}
	}

	expiresAt := time.Now().UTC().Add(defaultCodeTTL)
	referral := &models.Referral{
		ReferrerID: referrerID,
		CampaignID: campaignID,
		Code:       newCode(),
		Status:     enums.ReferralStatusPending,
		ExpiresAt:  &expiresAt,
	}
	if err := s.repo.Create(ctx, referral); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "creating referral")
	}
	return referral, nil
}

func (s *service) Register(ctx context.Context, code string, referredID uuid.UUID) (*models.Referral, error) {
	referral, err := s.repo.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("referral code %q not found", code))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading referral by code")
	}

	if referral.Status != enums.ReferralStatusPending {
		return nil, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("referral %s is %s, only pending codes can register", referral.ID, referral.Status))
	}
	if referral.ExpiresAt != nil && referral.ExpiresAt.Before(time.Now().UTC()) {
		return nil, errors.New(errors.CodeStateConflict, fmt.Sprintf("referral code %q has expired", code))
	}
	if referral.ReferrerID == referredID {
		return nil, errors.New(errors.CodeValidation, "customers cannot refer themselves")
	}

	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		referral.ReferredID = &referredID
		referral.Status = enums.ReferralStatusRegistered
		if err := repo.Save(ctx, referral); err != nil {
			return err
		}
		return s.activity.RecordChange(ctx, tx, "system", activity.EntityReferral, referral.ID.String(),
			string(enums.ReferralStatusPending), string(enums.ReferralStatusRegistered),
			fmt.Sprintf("referral code %s registered by customer %s", referral.Code, referredID))
	})
	if txErr != nil {
		return nil, errors.Wrap(errors.CodeInternal, txErr, "registering referral")
	}
	return referral, nil
}

func (s *service) ExpireStale(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpirePendingBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "expiring stale referrals")
	}
	if count > 0 && s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("expired %d stale referral codes", count))
	}
	return count, nil
}

func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:10])
}
