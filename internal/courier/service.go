package courier

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nexkarthq/nexkart-backend/internal/activity"
	"github.com/nexkarthq/nexkart-backend/internal/orders"
	"github.com/nexkarthq/nexkart-backend/internal/rewards"
	"github.com/nexkarthq/nexkart-backend/pkg/db"
	"github.com/nexkarthq/nexkart-backend/pkg/db/models"
	"github.com/nexkarthq/nexkart-backend/pkg/enums"
	"github.com/nexkarthq/nexkart-backend/pkg/errors"
	"github.com/nexkarthq/nexkart-backend/pkg/logger"
	"github.com/nexkarthq/nexkart-backend/pkg/metrics"
	"github.com/nexkarthq/nexkart-backend/pkg/redis"
)

// Reconciliation sources. The same path serves both; the source only labels
// tracking and audit rows.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
)

// knownCourier is the carrier the polling sweep reconciles against.
const knownCourier = "steadfast"

const sweepJobName = "courier_sync"

// syncableStatuses are the commercial statuses still in-flight with a
// carrier; both the sweep and the manual per-order poll are limited to them.
var syncableStatuses = []enums.OrderStatus{
	enums.OrderStatusApproved,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
}

func syncableStatus(status enums.OrderStatus) bool {
	for _, candidate := range syncableStatuses {
		if status == candidate {
			return true
		}
	}
	return false
}

// Outcome reports what one reconciliation call did.
type Outcome struct {
	Order           *models.Order
	Changed         bool
	BecameDelivered bool
	Message         string
}

// WebhookResult is the carrier-facing acknowledgment body.
type WebhookResult struct {
	Success bool
	Message string
}

// SyncReport aggregates one polling sweep.
type SyncReport struct {
	Total     int
	Updated   int
	Unchanged int
	Delivered int
	Failed    int
}

// Service reconciles courier-reported status into order state.
type Service interface {
	Reconcile(ctx context.Context, orderID uuid.UUID, incomingStatus, source string) (*Outcome, error)
	HandleWebhook(ctx context.Context, payload WebhookPayload) (*WebhookResult, error)
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*Outcome, error)
	SyncAll(ctx context.Context) (*SyncReport, error)
}

// ServiceParams wires the reconciliation service dependencies.
type ServiceParams struct {
	Orders      orders.Repository
	OrderStatus orders.Service
	Client      StatusClient
	Rewards     rewards.Engine
	DB          *db.Client
	Activity    *activity.Recorder
	Dedup       redis.IdempotencyStore
	DedupTTL    time.Duration
	SweepBatch  int
	Metrics     *metrics.JobMetrics
	Logger      *logger.Logger
}

type service struct {
	orders      orders.Repository
	orderStatus orders.Service
	client      StatusClient
	rewards     rewards.Engine
	db          *db.Client
	activity    *activity.Recorder
	dedup       redis.IdempotencyStore
	dedupTTL    time.Duration
	sweepBatch  int
	metrics     *metrics.JobMetrics
	logg        *logger.Logger
}

// NewService builds the courier reconciliation service.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("courier service requires an order repository")
	}
	if params.OrderStatus == nil {
		return nil, fmt.Errorf("courier service requires the order status service")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("courier service requires a status client")
	}
	if params.Rewards == nil {
		return nil, fmt.Errorf("courier service requires the reward engine")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("courier service requires a database client")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("courier service requires an activity recorder")
	}
	if params.SweepBatch <= 0 {
		params.SweepBatch = 200
	}
	if params.DedupTTL <= 0 {
		params.DedupTTL = 72 * time.Hour
	}
	return &service{
		orders:      params.Orders,
		orderStatus: params.OrderStatus,
		client:      params.Client,
		rewards:     params.Rewards,
		db:          params.DB,
		activity:    params.Activity,
		dedup:       params.Dedup,
		dedupTTL:    params.DedupTTL,
		sweepBatch:  params.SweepBatch,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID, incomingStatus, source string) (*Outcome, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	return s.reconcile(ctx, order, incomingStatus, source)
}

// reconcile is the shared path for webhook and poll. The unchanged check is
// exact trim-and-fold equality while became-delivered uses containment; the
// carrier's own phrasing is inconsistent and the asymmetry is intentional.
func (s *service) reconcile(ctx context.Context, order *models.Order, incomingStatus, source string) (*Outcome, error) {
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
	}

	incoming := strings.TrimSpace(incomingStatus)
	if incoming == "" {
		return &Outcome{Order: order, Message: "no courier status supplied"}, nil
	}

	outcome := &Outcome{Order: order}

	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)

		// The reload takes the row lock, so a racing reconciliation waits
		// here and then judges both the unchanged check and the delivered
		// edge against what the winner committed: an identical status
		// short-circuits, an already-delivered order never re-fires the
		// delivered edge, and reward invocation stays single-shot.
		fresh, err := repo.FindByIDForUpdate(ctx, order.ID)
		if err != nil {
			return errors.Wrap(errors.CodeInternal, err, "reloading order")
		}
		outcome.Order = fresh

		stored := ""
		if fresh.CourierStatus != nil {
			stored = strings.TrimSpace(*fresh.CourierStatus)
		}
		if strings.EqualFold(incoming, stored) {
			outcome.Message = "status unchanged"
			return nil
		}

		previous := fresh.CourierStatus
		fresh.CourierStatus = &incoming

		if enums.CourierStatusIndicatesDelivered(incoming) && fresh.Status != enums.OrderStatusDelivered {
			changed, err := s.orderStatus.ApplyTransition(ctx, tx, fresh, enums.OrderStatusDelivered, source)
			if err != nil {
				return err
			}
			outcome.BecameDelivered = changed
		} else if err := repo.Save(ctx, fresh); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "persisting courier status")
		}

		event := &models.OrderTrackingEvent{
			OrderID:        fresh.ID,
			Source:         source,
			PreviousStatus: previous,
			NewStatus:      incoming,
		}
		if err := repo.CreateTrackingEvent(ctx, event); err != nil {
			return errors.Wrap(errors.CodeInternal, err, "recording tracking event")
		}

		previousValue := ""
		if previous != nil {
			previousValue = *previous
		}
		outcome.Changed = true
		outcome.Message = fmt.Sprintf("courier status updated to %q", incoming)
		return s.activity.RecordChange(ctx, tx, source, activity.EntityOrder, fresh.ID.String(),
			previousValue, incoming,
			fmt.Sprintf("courier status %q -> %q (%s)", previousValue, incoming, source))
	})
	if txErr != nil {
		return nil, txErr
	}

	if outcome.BecameDelivered {
		// Reward fulfillment is best-effort: the courier-status commit above
		// stands regardless of what happens here.
		if err := s.rewards.OnOrderDelivered(ctx, outcome.Order.ID, outcome.Order.CustomerID); err != nil && s.logg != nil {
			s.logg.Error(ctx, "reward fulfillment failed after delivery", err)
		}
	}

	return outcome, nil
}

func (s *service) HandleWebhook(ctx context.Context, payload WebhookPayload) (*WebhookResult, error) {
	status := payload.ExtractStatus()
	if status == "" {
		return &WebhookResult{Success: true, Message: "no status in payload"}, nil
	}

	if s.dedup != nil {
		if token := payload.DedupToken(); token != "" {
			fresh, err := s.dedup.SetNX(ctx, s.dedup.IdempotencyKey("courier-webhook", token), "1", s.dedupTTL)
			if err != nil {
				if s.logg != nil {
					s.logg.Warn(ctx, fmt.Sprintf("webhook dedup check failed, continuing: %v", err))
				}
			} else if !fresh {
				return &WebhookResult{Success: true, Message: "duplicate event ignored"}, nil
			}
		}
	}

	order, err := s.locateOrder(ctx, payload)
	if err != nil {
		return nil, err
	}
	if order == nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "webhook could not be matched to an order")
		}
		return &WebhookResult{Success: true, Message: "order not found"}, nil
	}

	outcome, err := s.reconcile(ctx, order, status, SourceWebhook)
	if err != nil {
		return nil, err
	}
	return &WebhookResult{Success: true, Message: outcome.Message}, nil
}

// locateOrder tries the carrier identifiers in precedence order: consignment
// id, then tracking code, then invoice (order number). First match wins.
func (s *service) locateOrder(ctx context.Context, payload WebhookPayload) (*models.Order, error) {
	if payload.ConsignmentID != nil {
		order, err := s.orders.FindByCourierOrderID(ctx, strconv.FormatInt(*payload.ConsignmentID, 10))
		if err == nil {
			return order, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.CodeInternal, err, "looking up order by consignment id")
		}
	}
	if payload.TrackingCode != nil && *payload.TrackingCode != "" {
		order, err := s.orders.FindByTrackingCode(ctx, *payload.TrackingCode)
		if err == nil {
			return order, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.CodeInternal, err, "looking up order by tracking code")
		}
	}
	if payload.Invoice != nil && *payload.Invoice != "" {
		if orderNumber, err := strconv.ParseInt(strings.TrimSpace(*payload.Invoice), 10, 64); err == nil {
			order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
			if err == nil {
				return order, nil
			}
			if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errors.Wrap(errors.CodeInternal, err, "looking up order by invoice")
			}
		}
	}
	return nil, nil
}

func (s *service) SyncOrder(ctx context.Context, orderID uuid.UUID) (*Outcome, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}

	// Same scoping as the sweep: only in-flight orders with the known
	// carrier are pollable.
	if order.CourierCompany == nil || !strings.EqualFold(*order.CourierCompany, knownCourier) {
		return nil, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("order #%d is not with a known courier", order.OrderNumber))
	}
	if !syncableStatus(order.Status) {
		return nil, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("order #%d is %s, only in-flight orders sync", order.OrderNumber, order.Status)).
			WithDetails(map[string]any{"status": order.Status, "syncable": syncableStatuses})
	}

	status, err := s.pollStatus(ctx, order)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, order, status, SourcePoll)
}

// pollStatus queries the carrier preferring consignment id, then tracking
// code, then invoice.
func (s *service) pollStatus(ctx context.Context, order *models.Order) (string, error) {
	switch {
	case order.CourierOrderID != nil && *order.CourierOrderID != "":
		return s.client.StatusByConsignmentID(ctx, *order.CourierOrderID)
	case order.TrackingCode != nil && *order.TrackingCode != "":
		return s.client.StatusByTrackingCode(ctx, *order.TrackingCode)
	case order.OrderNumber > 0:
		return s.client.StatusByInvoice(ctx, strconv.FormatInt(order.OrderNumber, 10))
	default:
		return "", errors.New(errors.CodeValidation,
			fmt.Sprintf("order %s has no courier identifier to poll with", order.ID))
	}
}

// SyncAll sweeps every in-flight order with the known carrier. Per-order
// failures are collected, counted and reported; one bad order never aborts
// the batch.
func (s *service) SyncAll(ctx context.Context) (*SyncReport, error) {
	candidates, err := s.orders.ListForCourierSync(ctx, syncableStatuses, s.sweepBatch)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing orders for sweep")
	}

	report := &SyncReport{}
	var errs error
	for i := range candidates {
		order := &candidates[i]
		if order.CourierCompany == nil || !strings.EqualFold(*order.CourierCompany, knownCourier) {
			continue
		}
		report.Total++

		status, err := s.pollStatus(ctx, order)
		if err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("order #%d: %w", order.OrderNumber, err))
			continue
		}

		outcome, err := s.reconcile(ctx, order, status, SourcePoll)
		if err != nil {
			report.Failed++
			errs = multierr.Append(errs, fmt.Errorf("order #%d: %w", order.OrderNumber, err))
			continue
		}
		if outcome.Changed {
			report.Updated++
		} else {
			report.Unchanged++
		}
		if outcome.BecameDelivered {
			report.Delivered++
		}
	}

	s.metrics.AddSweepOutcome("updated", report.Updated)
	s.metrics.AddSweepOutcome("unchanged", report.Unchanged)
	s.metrics.AddSweepOutcome("delivered", report.Delivered)
	s.metrics.AddSweepOutcome("failed", report.Failed)

	if s.logg != nil {
		s.logg.Info(ctx, fmt.Sprintf("courier sweep examined %d orders: %d updated, %d unchanged, %d delivered, %d failed",
			report.Total, report.Updated, report.Unchanged, report.Delivered, report.Failed))
	}
	return report, errs
}
