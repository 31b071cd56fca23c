package referrals

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	pkgerrors "github.com/nexkarthq/nexkart-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, Repository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Referral{},
		&models.ReferralCampaign{},
		&models.ActivityLog{},
	))

	repo := NewRepository(conn)
	recorder, err := activity.NewRecorder(activity.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:     repo,
		DB:       db.NewFromGorm(conn),
		Activity: recorder,
	})
	require.NoError(t, err)
	return svc, repo, conn
}

func TestIssueCodeMintsPendingReferral(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	referrerID := uuid.New()

	referral, err := svc.IssueCode(ctx, referrerID, nil)
	require.NoError(t, err)
	require.Len(t, referral.Code, 10)
	require.Equal(t, enums.ReferralStatusPending, referral.Status)
	require.NotNil(t, referral.ExpiresAt)

	stored, err := repo.FindByCode(ctx, referral.Code)
	require.NoError(t, err)
	require.Equal(t, referrerID, stored.ReferrerID)
}

func TestIssueCodeRejectsUnknownCampaign(t *testing.T) {
	svc, _, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.IssueCode(context.Background(), uuid.New(), &missing)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRegisterBindsReferredCustomer(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()
	referredID := uuid.New()

	referral, err := svc.IssueCode(ctx, uuid.New(), nil)
	require.NoError(t, err)

	registered, err := svc.Register(ctx, "  "+referral.Code+"  ", referredID)
	require.NoError(t, err)
	require.Equal(t, enums.ReferralStatusRegistered, registered.Status)
	require.NotNil(t, registered.ReferredID)
	require.Equal(t, referredID, *registered.ReferredID)

	stored, err := repo.FindByID(ctx, referral.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReferralStatusRegistered, stored.Status)

	var logs int64
	require.NoError(t, conn.Model(&models.ActivityLog{}).Count(&logs).Error)
	require.EqualValues(t, 1, logs)
}

func TestRegisterRefusesReuseAndSelfReferral(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	referrerID := uuid.New()

	referral, err := svc.IssueCode(ctx, referrerID, nil)
	require.NoError(t, err)

	_, err = svc.Register(ctx, referral.Code, referrerID)
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Register(ctx, referral.Code, uuid.New())
	require.NoError(t, err)

	_, err = svc.Register(ctx, referral.Code, uuid.New())
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestRegisterRefusesExpiredCode(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()

	referral, err := svc.IssueCode(ctx, uuid.New(), nil)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, conn.Model(&models.Referral{}).
		Where("id = ?", referral.ID).Update("expires_at", past).Error)

	_, err = svc.Register(ctx, referral.Code, uuid.New())
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestExpireStaleFlipsOnlyOverduePending(t *testing.T) {
	svc, repo, conn := newTestService(t)
	ctx := context.Background()

	overdue, err := svc.IssueCode(ctx, uuid.New(), nil)
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, conn.Model(&models.Referral{}).
		Where("id = ?", overdue.ID).Update("expires_at", past).Error)

	fresh, err := svc.IssueCode(ctx, uuid.New(), nil)
	require.NoError(t, err)

	count, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	expired, err := repo.FindByID(ctx, overdue.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReferralStatusExpired, expired.Status)

	kept, err := repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ReferralStatusPending, kept.Status)
}
