package memberships

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

// Service applies loyalty-tier promotions. Promotion only moves up; a target
// at or below the current tier is a no-op success.
type Service interface {
	Promote(ctx context.Context, customerID uuid.UUID, target enums.MembershipTier, actor string) (*models.Customer, error)
	PromoteNext(ctx context.Context, customerID uuid.UUID, actor string) (*models.Customer, error)
}

// ServiceParams wires the membership service dependencies.
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

// NewService builds the membership service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("membership service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("membership service requires a database client")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("membership service requires an activity recorder")
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		activity: params.Activity,
		logg:     params.Logger,
	}, nil
}

func (s *service) Promote(ctx context.Context, customerID uuid.UUID, target enums.MembershipTier, actor string) (*models.Customer, error) {
	if !target.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown membership tier %q", target))
	}

	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("customer %s not found", customerID))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading customer")
	}

	if !target.Above(customer.MembershipTier) {
		return customer, nil
	}

	previous := customer.MembershipTier
	customer.MembershipTier = target
	if target == enums.MembershipTierPermanent && customer.MembershipCardNumber == nil {
		// The card number is minted exactly once and never regenerated.
		card := mintCardNumber(customer.ID)
		customer.MembershipCardNumber = &card
	}

	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateMembership(ctx, customer); err != nil {
			return err
		}
		return s.activity.RecordChange(ctx, tx, actor, activity.EntityCustomer, customer.ID.String(),
			string(previous), string(target),
			fmt.Sprintf("membership tier %s -> %s (%d%% discount, %d free deliveries)",
				previous, target, target.DiscountPercent(), target.FreeDeliveries()))
	})
	if txErr != nil {
		return nil, errors.Wrap(errors.CodeInternal, txErr, "promoting membership tier")
	}

	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("customer %s promoted from %s to %s", customer.ID, previous, target))
	}
	return customer, nil
}

// PromoteNext raises the customer one tier in the none < silver < gold <
// permanent ordering.
func (s *service) PromoteNext(ctx context.Context, customerID uuid.UUID, actor string) (*models.Customer, error) {
	customer, err := s.repo.FindCustomer(ctx, customerID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("customer %s not found", customerID))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading customer")
	}

	next := nextTier(customer.MembershipTier)
	if next == customer.MembershipTier {
		return customer, nil
	}
	return s.Promote(ctx, customerID, next, actor)
}

func nextTier(current enums.MembershipTier) enums.MembershipTier {
	switch current {
	case enums.MembershipTierNone:
		return enums.MembershipTierSilver
	case enums.MembershipTierSilver:
		return enums.MembershipTierGold
	case enums.MembershipTierGold, enums.MembershipTierPermanent:
		return enums.MembershipTierPermanent
	default:
		return enums.MembershipTierSilver
	}
}

func mintCardNumber(customerID uuid.UUID) string {
	raw := strings.ReplaceAll(customerID.String(), "-", "")
	return "NK-" + strings.ToUpper(raw[:12])
}
