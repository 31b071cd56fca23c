package memberships

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Customer{}, &models.ActivityLog{}))

	recorder, err := activity.NewRecorder(activity.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		DB:       db.NewFromGorm(conn),
		Activity: recorder,
	})
	require.NoError(t, err)
	return svc, conn
}

func seedCustomer(t *testing.T, conn *gorm.DB, tier enums.MembershipTier) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		ID:             uuid.New(),
		Name:           "Test Customer",
		MembershipTier: tier,
	}
	require.NoError(t, conn.Create(customer).Error)
	return customer
}

func TestPromoteNeverDemotes(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	customer := seedCustomer(t, conn, enums.MembershipTierGold)

	updated, err := svc.Promote(ctx, customer.ID, enums.MembershipTierSilver, "test")
	require.NoError(t, err)
	assert.Equal(t, enums.MembershipTierGold, updated.MembershipTier)

	var reloaded models.Customer
	require.NoError(t, conn.Where("id = ?", customer.ID).First(&reloaded).Error)
	assert.Equal(t, enums.MembershipTierGold, reloaded.MembershipTier)
}

func TestPromoteMintsCardNumberOnce(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	customer := seedCustomer(t, conn, enums.MembershipTierGold)

	updated, err := svc.Promote(ctx, customer.ID, enums.MembershipTierPermanent, "test")
	require.NoError(t, err)
	require.NotNil(t, updated.MembershipCardNumber)
	card := *updated.MembershipCardNumber

	// Re-promoting is a no-op and must not touch the card number.
	again, err := svc.Promote(ctx, customer.ID, enums.MembershipTierPermanent, "test")
	require.NoError(t, err)
	require.NotNil(t, again.MembershipCardNumber)
	assert.Equal(t, card, *again.MembershipCardNumber)
}

func TestPromoteNextWalksTiers(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	customer := seedCustomer(t, conn, enums.MembershipTierNone)

	expected := []enums.MembershipTier{
		enums.MembershipTierSilver,
		enums.MembershipTierGold,
		enums.MembershipTierPermanent,
		enums.MembershipTierPermanent,
	}
	for _, want := range expected {
		updated, err := svc.PromoteNext(ctx, customer.ID, "test")
		require.NoError(t, err)
		assert.Equal(t, want, updated.MembershipTier)
	}
}
