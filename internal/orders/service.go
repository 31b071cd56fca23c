package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
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

// Service drives the order status machine.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber int64) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor string) (*models.Order, error)
	// ApplyTransition runs the state machine against an already-loaded order
	// inside the caller's transaction. It reports whether this call changed
	// the commercial status; a same-status request is a no-op success.
	ApplyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, actor string) (bool, error)
	TrackingHistory(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderTrackingEvent, error)
	CountDelivered(ctx context.Context, customerID uuid.UUID) (int64, error)
}

// ServiceParams wires the order service dependencies.
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

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order service requires a repository")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("order service requires a database client")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("order service requires an activity recorder")
	}
	return &service{
		repo:     params.Repo,
		db:       params.DB,
		activity: params.Activity,
		logg:     params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("order %s not found", id))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) GetByNumber(ctx context.Context, orderNumber int64) (*models.Order, error) {
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("order #%d not found", orderNumber))
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "loading order by number")
	}
	return order, nil
}

func (s *service) Transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, actor string) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.ApplyTransition(ctx, tx, order, target, actor)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return order, nil
}

func (s *service) ApplyTransition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, actor string) (bool, error) {
	if !target.IsValid() {
		return false, errors.New(errors.CodeValidation, fmt.Sprintf("unknown order status %q", target))
	}

	current := order.Status
	if current == target {
		// Idempotent re-application.
		return false, nil
	}

	if (target == enums.OrderStatusHold || target == enums.OrderStatusCancelled) && order.CourierStatus != nil &&
		enums.CourierHandedOver(*order.CourierStatus) {
		return false, errors.New(errors.CodeOrderLocked,
			fmt.Sprintf("order #%d cannot move to %s after carrier pickup", order.OrderNumber, target)).
			WithDetails(map[string]string{"courier_status": *order.CourierStatus})
	}

	if !current.IsValid() && s.logg != nil {
		// Legacy rows carry free-form status strings; they must not wedge.
		s.logg.Warn(ctx, fmt.Sprintf("order #%d has unrecognized status %q, allowing transition to %s",
			order.OrderNumber, current, target))
	}
	if !current.CanTransitionTo(target) {
		return false, errors.New(errors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", current, target)).
			WithDetails(map[string]any{
				"from":    current,
				"to":      target,
				"allowed": current.AllowedTargets(),
			})
	}

	now := time.Now().UTC()
	order.Status = target
	if target == enums.OrderStatusShipped && order.ShippedAt == nil {
		order.ShippedAt = &now
	}
	if target == enums.OrderStatusDelivered && order.DeliveredAt == nil {
		order.DeliveredAt = &now
	}

	repo := s.repo.WithTx(tx)
	if err := repo.Save(ctx, order); err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "persisting order status")
	}

	if err := s.activity.RecordChange(ctx, tx, actor, activity.EntityOrder, order.ID.String(),
		string(current), string(target),
		fmt.Sprintf("order #%d status %s -> %s", order.OrderNumber, current, target)); err != nil {
		return false, errors.Wrap(errors.CodeInternal, err, "recording order status change")
	}

	return true, nil
}

func (s *service) TrackingHistory(ctx context.Context, orderID uuid.UUID, limit int) ([]models.OrderTrackingEvent, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	events, err := s.repo.ListTrackingEvents(ctx, orderID, limit)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "listing tracking events")
	}
	return events, nil
}

func (s *service) CountDelivered(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return s.repo.CountDeliveredByCustomer(ctx, customerID)
}
