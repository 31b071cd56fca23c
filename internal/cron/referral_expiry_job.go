package cron

import (
	"context"
	"fmt"

	"github.com/nexkarthq/nexkart-backend/internal/referrals"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

// ReferralExpiryJobParams configure the stale-referral job.
type ReferralExpiryJobParams struct {
	Logger    *logger.Logger
	Referrals referrals.Service
}

// NewReferralExpiryJob builds the job that expires pending referral codes
// past their TTL.
func NewReferralExpiryJob(params ReferralExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Referrals == nil {
		return nil, fmt.Errorf("referral service required")
	}
	return &referralExpiryJob{logg: params.Logger, referrals: params.Referrals}, nil
}

type referralExpiryJob struct {
	logg      *logger.Logger
	referrals referrals.Service
}

func (j *referralExpiryJob) Name() string { return "referral-expiry" }

func (j *referralExpiryJob) Run(ctx context.Context) error {
	expired, err := j.referrals.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("referral expiry: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "expired", expired)
	j.logg.Info(logCtx, "referral expiry finished")
	return nil
}
