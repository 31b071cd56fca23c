package cron

import (
	"context"
	"fmt"

	"github.com/nexkarthq/nexkart-backend/internal/courier"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
)

// CourierSyncJobParams configure the polling-sweep job.
type CourierSyncJobParams struct {
	Logger  *logger.Logger
	Courier courier.Service
}

// NewCourierSyncJob builds the job that reconciles in-flight orders against
// the carrier's status API.
func NewCourierSyncJob(params CourierSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Courier == nil {
		return nil, fmt.Errorf("courier service required")
	}
	return &courierSyncJob{logg: params.Logger, courier: params.Courier}, nil
}

type courierSyncJob struct {
	logg    *logger.Logger
	courier courier.Service
}

func (j *courierSyncJob) Name() string { return "courier-sync" }

func (j *courierSyncJob) Run(ctx context.Context) error {
	report, err := j.courier.SyncAll(ctx)
	if report != nil {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"total":     report.Total,
			"updated":   report.Updated,
			"unchanged": report.Unchanged,
			"delivered": report.Delivered,
			"failed":    report.Failed,
		})
		j.logg.Info(logCtx, "courier sweep finished")
	}
	if err != nil {
		return fmt.Errorf("courier sweep: %w", err)
	}
	return nil
}
