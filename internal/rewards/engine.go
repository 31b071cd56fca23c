package rewards

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/internal/ledger"
	"github.com/nexkarthq/nexkart-backend/internal/memberships"
	"github.com/nexkarthq/nexkart-backend/internal/referrals"
	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

const engineActor = "rewards-engine"

// DeliveredOrderCounter reports how many of a customer's orders have reached
// delivered. Satisfied by the order service.
type DeliveredOrderCounter interface {
	CountDelivered(ctx context.Context, customerID uuid.UUID) (int64, error)
}

// Engine applies the financial consequences of an order reaching delivered:
// referral completion, wallet/point credits, and tier promotion. Callers on
// the courier path must treat the returned error as log-only.
type Engine interface {
	OnOrderDelivered(ctx context.Context, orderID, customerID uuid.UUID) error
}

// EngineParams wires the reward engine dependencies.
type EngineParams struct {
	Referrals   referrals.Repository
	Ledger      ledger.Service
	Memberships memberships.Service
	Orders      DeliveredOrderCounter
	DB          *db.Client
	Activity    *activity.Recorder
	Config      config.RewardsConfig
	Logger      *logger.Logger
}

type engine struct {
	referrals      referrals.Repository
	ledger         ledger.Service
	memberships    memberships.Service
	orders         DeliveredOrderCounter
	db             *db.Client
	activity       *activity.Recorder
	logg           *logger.Logger
	campaignName   string
	fallbackWallet decimal.Decimal
}

// NewEngine builds the reward engine.
func NewEngine(params EngineParams) (Engine, error) {
	if params.Referrals == nil {
		return nil, fmt.Errorf("reward engine requires a referral repository")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("reward engine requires a ledger service")
	}
	if params.Memberships == nil {
		return nil, fmt.Errorf("reward engine requires a membership service")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("reward engine requires an order counter")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("reward engine requires a database client")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("reward engine requires an activity recorder")
	}

	fallback, err := decimal.NewFromString(params.Config.FallbackWalletAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback wallet amount %q: %w", params.Config.FallbackWalletAmount, err)
	}

	return &engine{
		referrals:      params.Referrals,
		ledger:         params.Ledger,
		memberships:    params.Memberships,
		orders:         params.Orders,
		db:             params.DB,
		activity:       params.Activity,
		logg:           params.Logger,
		campaignName:   params.Config.DefaultCampaignName,
		fallbackWallet: fallback,
	}, nil
}

func (e *engine) OnOrderDelivered(ctx context.Context, orderID, customerID uuid.UUID) error {
	ctx = e.withFields(ctx, orderID, customerID)

	// Referral payouts are first-order-only. The delivered order is already
	// committed, so a count above one means this customer has delivered
	// history and the fraud gate closes.
	deliveredCount, err := e.orders.CountDelivered(ctx, customerID)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "counting delivered orders")
	}
	if deliveredCount > 1 {
		e.info(ctx, fmt.Sprintf("customer has %d delivered orders, skipping referral rewards", deliveredCount))
		return nil
	}

	referral, err := e.referrals.FindRewardableByReferred(ctx, customerID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return errors.Wrap(errors.CodeInternal, err, "looking up referral")
	}

	if referral.Status == enums.ReferralStatusRegistered {
		if err := e.completeReferral(ctx, referral, orderID); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "completing referral")
		}
	}
	// Already-completed referrals re-run only the idempotent crediting below;
	// completion metadata is never re-stamped.

	campaign := e.resolveCampaign(ctx, referral)

	// Each payout path is isolated: a failure in one never blocks the others.
	var errs error
	if err := e.creditReferrer(ctx, referral, campaign); err != nil {
		e.swallow(ctx, "crediting referrer reward", err)
		errs = multierr.Append(errs, err)
	}
	if err := e.creditReferred(ctx, referral, campaign); err != nil {
		e.swallow(ctx, "crediting referred welcome reward", err)
		errs = multierr.Append(errs, err)
	}
	if err := e.escalateVIP(ctx, referral, campaign); err != nil {
		e.swallow(ctx, "escalating membership tier", err)
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (e *engine) completeReferral(ctx context.Context, referral *models.Referral, orderID uuid.UUID) error {
	now := time.Now().UTC()
	referral.Status = enums.ReferralStatusCompleted
	referral.CompletedAt = &now
	referral.FirstOrderDate = &now
	referral.QualifyingOrderID = &orderID

	return e.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := e.referrals.WithTx(tx)
		if err := repo.Save(ctx, referral); err != nil {
			return err
		}
		return e.activity.RecordChange(ctx, tx, engineActor, activity.EntityReferral, referral.ID.String(),
			string(enums.ReferralStatusRegistered), string(enums.ReferralStatusCompleted),
			fmt.Sprintf("referral completed by delivered order %s", orderID))
	})
}

// resolveCampaign loads the referral's campaign, falling back to the default
// campaign row by name and then to the hardcoded wallet default.
func (e *engine) resolveCampaign(ctx context.Context, referral *models.Referral) *models.ReferralCampaign {
	if referral.CampaignID != nil {
		campaign, err := e.referrals.FindCampaignByID(ctx, *referral.CampaignID)
		if err == nil {
			return campaign
		}
		e.warn(ctx, fmt.Sprintf("campaign %s not loadable, falling back: %v", referral.CampaignID, err))
	}

	campaign, err := e.referrals.FindActiveCampaignByName(ctx, e.campaignName)
	if err == nil {
		return campaign
	}
	if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		e.warn(ctx, fmt.Sprintf("default campaign lookup failed, using hardcoded defaults: %v", err))
	}

	return &models.ReferralCampaign{
		Name:                 e.campaignName,
		Active:               true,
		RewardType:           enums.RewardTypeWallet,
		ReferrerWalletAmount: e.fallbackWallet,
	}
}

func (e *engine) creditReferrer(ctx context.Context, referral *models.Referral, campaign *models.ReferralCampaign) error {
	if referral.RewardCredited {
		return nil
	}

	referenceID := referral.ID.String()
	switch campaign.RewardType {
	case enums.RewardTypeWallet:
		if campaign.ReferrerWalletAmount.LessThanOrEqual(decimal.Zero) {
			return nil
		}
		_, err := e.ledger.Credit(ctx, ledger.PostingInput{
			Account:        ledger.AccountRef{CustomerID: referral.ReferrerID, Kind: enums.AccountKindWallet},
			Amount:         campaign.ReferrerWalletAmount,
			Source:         enums.EntrySourceReferral,
			Description:    fmt.Sprintf("referral reward for %s", referral.Code),
			ReferenceID:    referenceID,
			IdempotencyKey: referralKey(referral.ID, "referrer", "wallet"),
		})
		if err != nil {
			return err
		}
	case enums.RewardTypePoints:
		if campaign.ReferrerPoints <= 0 {
			return nil
		}
		_, err := e.ledger.Credit(ctx, ledger.PostingInput{
			Account:        ledger.AccountRef{CustomerID: referral.ReferrerID, Kind: enums.AccountKindPoints},
			Amount:         decimal.NewFromInt(int64(campaign.ReferrerPoints)),
			Source:         enums.EntrySourceReferral,
			Description:    fmt.Sprintf("referral points for %s", referral.Code),
			ReferenceID:    referenceID,
			IdempotencyKey: referralKey(referral.ID, "referrer", "points"),
		})
		if err != nil {
			return err
		}
	case enums.RewardTypeCoupon, enums.RewardTypeFreeProduct:
		if err := e.recordGrant(ctx, referral, campaign); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown reward type %q", campaign.RewardType)
	}

	return e.markCredited(ctx, referral, func(r *models.Referral) { r.RewardCredited = true })
}

func (e *engine) creditReferred(ctx context.Context, referral *models.Referral, campaign *models.ReferralCampaign) error {
	if referral.ReferredRewardCredited || referral.ReferredID == nil {
		return nil
	}
	hasWallet := campaign.ReferredWalletAmount.GreaterThan(decimal.Zero)
	hasPoints := campaign.ReferredPoints > 0
	if !hasWallet && !hasPoints {
		return nil
	}

	referenceID := referral.ID.String()
	if hasWallet {
		_, err := e.ledger.Credit(ctx, ledger.PostingInput{
			Account:        ledger.AccountRef{CustomerID: *referral.ReferredID, Kind: enums.AccountKindWallet},
			Amount:         campaign.ReferredWalletAmount,
			Source:         enums.EntrySourceReferral,
			Description:    fmt.Sprintf("welcome reward for %s", referral.Code),
			ReferenceID:    referenceID,
			IdempotencyKey: referralKey(referral.ID, "referred", "wallet"),
		})
		if err != nil {
			return err
		}
	}
	if hasPoints {
		_, err := e.ledger.Credit(ctx, ledger.PostingInput{
			Account:        ledger.AccountRef{CustomerID: *referral.ReferredID, Kind: enums.AccountKindPoints},
			Amount:         decimal.NewFromInt(int64(campaign.ReferredPoints)),
			Source:         enums.EntrySourceReferral,
			Description:    fmt.Sprintf("welcome points for %s", referral.Code),
			ReferenceID:    referenceID,
			IdempotencyKey: referralKey(referral.ID, "referred", "points"),
		})
		if err != nil {
			return err
		}
	}

	return e.markCredited(ctx, referral, func(r *models.Referral) { r.ReferredRewardCredited = true })
}

// recordGrant logs coupon/free-product rewards in the activity trail. Actual
// issuance lives outside the fulfillment core.
func (e *engine) recordGrant(ctx context.Context, referral *models.Referral, campaign *models.ReferralCampaign) error {
	grant := "coupon"
	detail := ""
	if campaign.RewardType == enums.RewardTypeFreeProduct {
		grant = "free product"
		if campaign.FreeProductSKU != nil {
			detail = *campaign.FreeProductSKU
		}
	} else if campaign.CouponCode != nil {
		detail = *campaign.CouponCode
	}

	return e.db.WithTx(ctx, func(tx *gorm.DB) error {
		return e.activity.RecordChange(ctx, tx, engineActor, activity.EntityReferral, referral.ID.String(),
			"", detail, fmt.Sprintf("%s granted to referrer for %s", grant, referral.Code))
	})
}

func (e *engine) markCredited(ctx context.Context, referral *models.Referral, mark func(*models.Referral)) error {
	mark(referral)
	return e.referrals.Save(ctx, referral)
}

func (e *engine) escalateVIP(ctx context.Context, referral *models.Referral, campaign *models.ReferralCampaign) error {
	if campaign.VIPThreshold <= 0 {
		return nil
	}
	completed, err := e.referrals.CountCompletedByReferrer(ctx, referral.ReferrerID)
	if err != nil {
		return err
	}
	if completed < int64(campaign.VIPThreshold) {
		return nil
	}
	_, err = e.memberships.PromoteNext(ctx, referral.ReferrerID, engineActor)
	return err
}

func referralKey(id uuid.UUID, party, kind string) string {
	return fmt.Sprintf("referral:%s:%s:%s", id, party, kind)
}

func (e *engine) withFields(ctx context.Context, orderID, customerID uuid.UUID) context.Context {
	if e.logg == nil {
		return ctx
	}
	ctx = e.logg.WithOrderID(ctx, orderID.String())
	return e.logg.WithCustomerID(ctx, customerID.String())
}

func (e *engine) info(ctx context.Context, msg string) {
	if e.logg != nil {
		e.logg.Info(ctx, msg)
	}
}

func (e *engine) warn(ctx context.Context, msg string) {
	if e.logg != nil {
		e.logg.Warn(ctx, msg)
	}
}

func (e *engine) swallow(ctx context.Context, msg string, err error) {
	if e.logg != nil {
		e.logg.Error(ctx, msg, err)
	}
}
