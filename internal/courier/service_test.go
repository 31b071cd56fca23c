package courier

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/internal/ledger"
	"github.com/nexkarthq/nexkart-backend/internal/memberships"
	"github.com/nexkarthq/nexkart-backend/internal/orders"
	"github.com/nexkarthq/nexkart-backend/internal/referrals"
	"github.com/nexkarthq/nexkart-backend/internal/rewards"
	"github.com/nexkarthq/nexkart-backend/pkg/config"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
)

type fakeStatusClient struct {
	byConsignment map[string]string
	byTracking    map[string]string
	byInvoice     map[string]string
	err           error
}

func (f *fakeStatusClient) StatusByConsignmentID(ctx context.Context, id string) (string, error) {
	return f.lookup(f.byConsignment, id)
}

func (f *fakeStatusClient) StatusByTrackingCode(ctx context.Context, code string) (string, error) {
	return f.lookup(f.byTracking, code)
}

func (f *fakeStatusClient) StatusByInvoice(ctx context.Context, invoice string) (string, error) {
	return f.lookup(f.byInvoice, invoice)
}

func (f *fakeStatusClient) lookup(m map[string]string, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if status, ok := m[key]; ok {
		return status, nil
	}
	return "", errors.New(errors.CodeUpstream, "no status for identifier")
}

type fixture struct {
	svc       Service
	conn      *gorm.DB
	orders    orders.Repository
	ledger    ledger.Service
	referrals referrals.Repository
	client    *fakeStatusClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Customer{},
		&models.Order{},
		&models.OrderTrackingEvent{},
		&models.LedgerAccount{},
		&models.LedgerEntry{},
		&models.ReferralCampaign{},
		&models.Referral{},
		&models.ActivityLog{},
	))

	client := db.NewFromGorm(conn)
	recorder, err := activity.NewRecorder(activity.NewRepository(conn))
	require.NoError(t, err)

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		DB:       client,
		Activity: recorder,
	})
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo: ledger.NewRepository(conn),
		DB:   client,
	})
	require.NoError(t, err)

	membershipSvc, err := memberships.NewService(memberships.ServiceParams{
		Repo:     memberships.NewRepository(conn),
		DB:       client,
		Activity: recorder,
	})
	require.NoError(t, err)

	referralRepo := referrals.NewRepository(conn)
	engine, err := rewards.NewEngine(rewards.EngineParams{
		Referrals:   referralRepo,
		Ledger:      ledgerSvc,
		Memberships: membershipSvc,
		Orders:      orderSvc,
		DB:          client,
		Activity:    recorder,
		Config: config.RewardsConfig{
			DefaultCampaignName:  "Default Referral Campaign",
			FallbackWalletAmount: "100.00",
		},
	})
	require.NoError(t, err)

	statusClient := &fakeStatusClient{
		byConsignment: map[string]string{},
		byTracking:    map[string]string{},
		byInvoice:     map[string]string{},
	}

	svc, err := NewService(ServiceParams{
		Orders:      orderRepo,
		OrderStatus: orderSvc,
		Client:      statusClient,
		Rewards:     engine,
		DB:          client,
		Activity:    recorder,
	})
	require.NoError(t, err)

	return &fixture{
		svc:       svc,
		conn:      conn,
		orders:    orderRepo,
		ledger:    ledgerSvc,
		referrals: referralRepo,
		client:    statusClient,
	}
}

func (f *fixture) seedOrder(t *testing.T, orderNumber int64, status enums.OrderStatus, mutate func(*models.Order)) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: orderNumber,
		CustomerID:  uuid.New(),
		Status:      status,
		TotalAmount: decimal.NewFromInt(900),
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func (f *fixture) trackingRows(t *testing.T, orderID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OrderTrackingEvent{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func (f *fixture) ledgerEntries(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.LedgerEntry{}).Count(&count).Error)
	return count
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

// The end-to-end webhook scenario: shipped order #1001 with consignment 77,
// a registered referral for its customer, webhook reports delivered.
func TestWebhookDeliversOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer := &models.Customer{ID: uuid.New(), Name: "Referrer", MembershipTier: enums.MembershipTierNone}
	referred := &models.Customer{ID: uuid.New(), Name: "Referred", MembershipTier: enums.MembershipTierNone}
	require.NoError(t, f.conn.Create(referrer).Error)
	require.NoError(t, f.conn.Create(referred).Error)

	order := f.seedOrder(t, 1001, enums.OrderStatusShipped, func(o *models.Order) {
		o.CustomerID = referred.ID
		o.CourierCompany = strPtr("steadfast")
		o.CourierOrderID = strPtr("77")
	})

	referral := &models.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: &referred.ID,
		Code:       "WELCOME77",
		Status:     enums.ReferralStatusRegistered,
	}
	require.NoError(t, f.conn.Create(referral).Error)

	result, err := f.svc.HandleWebhook(ctx, WebhookPayload{
		ConsignmentID: int64Ptr(77),
		Status:        strPtr("delivered"),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	reloaded, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CourierStatus)
	assert.Equal(t, "delivered", *reloaded.CourierStatus)
	assert.Equal(t, enums.OrderStatusDelivered, reloaded.Status)
	require.NotNil(t, reloaded.DeliveredAt)
	assert.EqualValues(t, 1, f.trackingRows(t, order.ID))

	account, err := f.ledger.Balance(ctx, ledger.AccountRef{CustomerID: referrer.ID, Kind: enums.AccountKindWallet})
	require.NoError(t, err)
	assert.Equal(t, "100.00", account.Balance.StringFixed(2))

	completed, err := f.referrals.FindByID(ctx, referral.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReferralStatusCompleted, completed.Status)
}

func TestStatusUnchangedShortCircuit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := f.seedOrder(t, 2002, enums.OrderStatusShipped, func(o *models.Order) {
		o.CourierCompany = strPtr("steadfast")
	})

	first, err := f.svc.Reconcile(ctx, order.ID, "in_transit", SourcePoll)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.EqualValues(t, 1, f.trackingRows(t, order.ID))

	var activityBefore int64
	require.NoError(t, f.conn.Model(&models.ActivityLog{}).Count(&activityBefore).Error)

	// Same status again, different casing and padding.
	second, err := f.svc.Reconcile(ctx, order.ID, "  In_Transit ", SourceWebhook)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, "status unchanged", second.Message)
	assert.EqualValues(t, 1, f.trackingRows(t, order.ID))

	var activityAfter int64
	require.NoError(t, f.conn.Model(&models.ActivityLog{}).Count(&activityAfter).Error)
	assert.Equal(t, activityBefore, activityAfter)
}

func TestRepeatedDeliverySignalsPayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer := &models.Customer{ID: uuid.New(), Name: "Referrer"}
	referred := &models.Customer{ID: uuid.New(), Name: "Referred"}
	require.NoError(t, f.conn.Create(referrer).Error)
	require.NoError(t, f.conn.Create(referred).Error)

	order := f.seedOrder(t, 3003, enums.OrderStatusShipped, func(o *models.Order) {
		o.CustomerID = referred.ID
		o.CourierCompany = strPtr("steadfast")
	})
	referral := &models.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: &referred.ID,
		Code:       "ONCE3003",
		Status:     enums.ReferralStatusRegistered,
	}
	require.NoError(t, f.conn.Create(referral).Error)

	first, err := f.svc.Reconcile(ctx, order.ID, "delivered", SourceWebhook)
	require.NoError(t, err)
	assert.True(t, first.BecameDelivered)

	// A differently phrased delivery report is a courier-status change but
	// not a second delivered edge.
	second, err := f.svc.Reconcile(ctx, order.ID, "Delivered (received by customer)", SourcePoll)
	require.NoError(t, err)
	assert.True(t, second.Changed)
	assert.False(t, second.BecameDelivered)

	assert.EqualValues(t, 1, f.ledgerEntries(t))
}

// A webhook and a poll can race on the same shipped order, each holding a
// copy read before the other committed. The locked reload inside the
// reconcile transaction judges the delivered edge against the committed row,
// so the loser's stale copy must not re-fire delivery, re-stamp completion,
// or walk a second membership rung.
func TestStaleReconcileCopyDeliversOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	referrer := &models.Customer{ID: uuid.New(), Name: "Referrer", MembershipTier: enums.MembershipTierNone}
	referred := &models.Customer{ID: uuid.New(), Name: "Referred", MembershipTier: enums.MembershipTierNone}
	require.NoError(t, f.conn.Create(referrer).Error)
	require.NoError(t, f.conn.Create(referred).Error)

	campaign := &models.ReferralCampaign{
		ID:                   uuid.New(),
		Name:                 "Race Campaign",
		Active:               true,
		RewardType:           enums.RewardTypeWallet,
		ReferrerWalletAmount: decimal.NewFromInt(150),
		VIPThreshold:         1,
	}
	require.NoError(t, f.conn.Create(campaign).Error)

	order := f.seedOrder(t, 4004, enums.OrderStatusShipped, func(o *models.Order) {
		o.CustomerID = referred.ID
		o.CourierCompany = strPtr("steadfast")
	})
	referral := &models.Referral{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: &referred.ID,
		CampaignID: &campaign.ID,
		Code:       "RACE4004",
		Status:     enums.ReferralStatusRegistered,
	}
	require.NoError(t, f.conn.Create(referral).Error)

	// Both sides read the order while it is still shipped.
	stale, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)

	first, err := f.svc.(*service).reconcile(ctx, order, "delivered", SourceWebhook)
	require.NoError(t, err)
	assert.True(t, first.BecameDelivered)

	firstPass, err := f.referrals.FindByID(ctx, referral.ID)
	require.NoError(t, err)
	require.NotNil(t, firstPass.CompletedAt)

	// The loser proceeds from its stale shipped copy with a different
	// delivered phrasing.
	second, err := f.svc.(*service).reconcile(ctx, stale, "Delivered (received by customer)", SourcePoll)
	require.NoError(t, err)
	assert.True(t, second.Changed)
	assert.False(t, second.BecameDelivered)
	assert.Equal(t, enums.OrderStatusDelivered, second.Order.Status)

	assert.EqualValues(t, 1, f.ledgerEntries(t))

	replayed, err := f.referrals.FindByID(ctx, referral.ID)
	require.NoError(t, err)
	require.NotNil(t, replayed.CompletedAt)
	assert.True(t, replayed.CompletedAt.Equal(*firstPass.CompletedAt))

	var promoted models.Customer
	require.NoError(t, f.conn.Where("id = ?", referrer.ID).First(&promoted).Error)
	assert.Equal(t, enums.MembershipTierSilver, promoted.MembershipTier)
}

func TestWebhookOrderNotFoundIsSuccess(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.HandleWebhook(context.Background(), WebhookPayload{
		ConsignmentID: int64Ptr(999999),
		Status:        strPtr("delivered"),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "order not found", result.Message)
}

func TestWebhookLocatesByTrackingCodeAndInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	byTracking := f.seedOrder(t, 4004, enums.OrderStatusShipped, func(o *models.Order) {
		o.TrackingCode = strPtr("TRK-4004")
	})
	byInvoice := f.seedOrder(t, 5005, enums.OrderStatusShipped, nil)

	result, err := f.svc.HandleWebhook(ctx, WebhookPayload{
		TrackingCode:   strPtr("TRK-4004"),
		DeliveryStatus: strPtr("in_transit"),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	reloaded, err := f.orders.FindByID(ctx, byTracking.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CourierStatus)
	assert.Equal(t, "in_transit", *reloaded.CourierStatus)

	result, err = f.svc.HandleWebhook(ctx, WebhookPayload{
		Invoice:       strPtr("5005"),
		CurrentStatus: strPtr("picked"),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	reloaded, err = f.orders.FindByID(ctx, byInvoice.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.CourierStatus)
	assert.Equal(t, "picked", *reloaded.CourierStatus)
}

func TestSyncOrderScopedToInFlightKnownCourier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.seedOrder(t, 5005, enums.OrderStatusCancelled, func(o *models.Order) {
		o.CourierCompany = strPtr("steadfast")
		o.CourierOrderID = strPtr("501")
	})
	f.client.byConsignment["501"] = "delivered"

	_, err := f.svc.SyncOrder(ctx, cancelled.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	foreign := f.seedOrder(t, 5006, enums.OrderStatusShipped, func(o *models.Order) {
		o.CourierCompany = strPtr("othership")
		o.CourierOrderID = strPtr("502")
	})
	f.client.byConsignment["502"] = "delivered"

	_, err = f.svc.SyncOrder(ctx, foreign.ID)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeStateConflict))

	// Neither order was touched.
	for _, seeded := range []*models.Order{cancelled, foreign} {
		reloaded, err := f.orders.FindByID(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Nil(t, reloaded.CourierStatus)
		assert.Equal(t, seeded.Status, reloaded.Status)
	}

	shipped := f.seedOrder(t, 5007, enums.OrderStatusShipped, func(o *models.Order) {
		o.CourierCompany = strPtr("Steadfast")
		o.CourierOrderID = strPtr("503")
	})
	f.client.byConsignment["503"] = "in_transit"

	outcome, err := f.svc.SyncOrder(ctx, shipped.ID)
	require.NoError(t, err)
	assert.True(t, outcome.Changed)
}

func TestSyncAllSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	delivered := f.seedOrder(t, 6006, enums.OrderStatusShipped, func(o *models.Order) {
		o.CourierCompany = strPtr("steadfast")
		o.CourierOrderID = strPtr("601")
	})
	unchanged := f.seedOrder(t, 6007, enums.OrderStatusShipped, func(o *models.Order) {
		o.CourierCompany = strPtr("steadfast")
		o.CourierOrderID = strPtr("602")
		o.CourierStatus = strPtr("in_transit")
	})
	failing := f.seedOrder(t, 6008, enums.OrderStatusApproved, func(o *models.Order) {
		o.CourierCompany = strPtr("steadfast")
		o.CourierOrderID = strPtr("603")
	})
	// Different carrier: skipped entirely.
	f.seedOrder(t, 6009, enums.OrderStatusShipped, func(o *models.Order) {
		o.CourierCompany = strPtr("othership")
		o.CourierOrderID = strPtr("604")
	})

	f.client.byConsignment["601"] = "delivered"
	f.client.byConsignment["602"] = "in_transit"
	// 603 has no mapping, so the poll fails upstream.

	report, err := f.svc.SyncAll(ctx)
	require.Error(t, err, "per-order failures are aggregated and reported")
	require.NotNil(t, report)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Failed)

	reloaded, err := f.orders.FindByID(ctx, delivered.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, reloaded.Status)

	reloaded, err = f.orders.FindByID(ctx, unchanged.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, reloaded.Status)

	reloaded, err = f.orders.FindByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusApproved, reloaded.Status)
	assert.Nil(t, reloaded.CourierStatus)
}
