package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/outbox"
	"github.com/steepandstone/teahouse-backend/pkg/outbox/payloads"
	"github.com/steepandstone/teahouse-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// StockRestorer returns snapshot quantities to the catalog when an order is
// cancelled.
type StockRestorer interface {
	Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Notifier records a customer-facing notification inside the caller's
// transaction.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, previous enums.OrderStatus) error
}

// Service defines order lifecycle operations after checkout.
type Service interface {
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	GetByNumber(ctx context.Context, actor Actor, orderNumber string) (*OrderDTO, error)
	List(ctx context.Context, actor Actor, filter ListFilter) ([]OrderDTO, pagination.Meta, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error)
	AddRating(ctx context.Context, input RatingInput) (*OrderDTO, error)
	AddNote(ctx context.Context, input NoteInput) (*OrderDTO, error)
	UpdatePaymentStatus(ctx context.Context, input PaymentInput) (*OrderDTO, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	stock    StockRestorer
	notifier Notifier
	now      func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, stock StockRestorer, notifier Notifier) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		stock:    stock,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) GetByNumber(ctx context.Context, actor Actor, orderNumber string) (*OrderDTO, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	order, err := s.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.authorizeRead(actor, order); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

// List returns the actor's own orders, or any user's orders for admins.
func (s *service) List(ctx context.Context, actor Actor, filter ListFilter) ([]OrderDTO, pagination.Meta, error) {
	if actor.UserID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.UserID = &userID
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter")
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *FromModel(&rows[i]))
	}
	return dtos, pagination.NewMeta(filter.Pagination.Normalize(), total), nil
}

// UpdateStatus is the staff path through the lifecycle, cancellation included.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.transition(ctx, tx, input.OrderID, input.Actor, input.Target, input.Reason)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(result), nil
}

// Cancel is the customer path. It only works while the kitchen has not
// finished the order.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if !input.Actor.IsAdmin() && order.UserID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if !CustomerCancellable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %s can no longer be cancelled", order.Status))
		}
		order, err = s.transition(ctx, tx, input.OrderID, input.Actor, enums.OrderStatusCancelled, input.Reason)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(result), nil
}

// AddRating stores the customer's score once the order is completed.
func (s *service) AddRating(ctx context.Context, input RatingInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Score < 1 || input.Score > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.UserID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed orders can be rated")
		}

		now := s.now()
		updates := map[string]any{
			"rating_score": input.Score,
			"rated_at":     now,
		}
		if input.Comment != nil && strings.TrimSpace(*input.Comment) != "" {
			trimmed := strings.TrimSpace(*input.Comment)
			updates["rating_comment"] = trimmed
			order.RatingComment = &trimmed
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store rating")
		}
		score := input.Score
		order.RatingScore = &score
		order.RatedAt = &now
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(result), nil
}

// AddNote appends a staff note to the order.
func (s *service) AddNote(ctx context.Context, input NoteInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note body required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		note := &models.OrderNote{
			OrderID:      order.ID,
			AuthorUserID: input.Actor.UserID,
			Body:         body,
		}
		if err := repo.AddNote(ctx, note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order note")
		}
		order.Notes = append(order.Notes, *note)
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(result), nil
}

func (s *service) UpdatePaymentStatus(ctx context.Context, input PaymentInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == input.Status {
			result = order
			return nil
		}
		// Refunds are final.
		if order.PaymentStatus == enums.PaymentStatusRefunded {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already refunded")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"payment_status": input.Status}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		order.PaymentStatus = input.Status
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(result), nil
}

// transition applies one status change inside the caller's transaction:
// stamps the status timestamp, restores stock on cancellation, records the
// notification, and emits the outbox event.
func (s *service) transition(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actor Actor, target enums.OrderStatus, reason *string) (*models.Order, error) {
	repo := s.repo.WithTx(tx)
	order, err := s.loadOrder(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move order from %s to %s", order.Status, target))
	}

	previous := order.Status
	now := s.now()
	updates := map[string]any{"status": target}

	switch target {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = now
		order.ConfirmedAt = &now
	case enums.OrderStatusPreparing:
		updates["preparing_at"] = now
		order.PreparingAt = &now
	case enums.OrderStatusReady:
		updates["ready_at"] = now
		order.ReadyAt = &now
	case enums.OrderStatusCompleted:
		updates["completed_at"] = now
		order.CompletedAt = &now
		if order.PreparingAt != nil {
			minutes := int(now.Sub(*order.PreparingAt).Round(time.Minute) / time.Minute)
			updates["actual_prep_minutes"] = minutes
			order.ActualPrepMinutes = &minutes
		}
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
		order.CancelledAt = &now
		if reason != nil && strings.TrimSpace(*reason) != "" {
			trimmed := strings.TrimSpace(*reason)
			updates["cancellation_reason"] = trimmed
			order.CancellationReason = &trimmed
		}
		for _, item := range order.Items {
			if err := s.stock.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return nil, err
			}
		}
	}

	if err := repo.Update(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	order.Status = target

	if err := s.notifier.OrderStatusChanged(ctx, tx, order, previous); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
	}
	if target == enums.OrderStatusCancelled {
		event.EventType = enums.EventOrderCancelled
		reasonText := ""
		if order.CancellationReason != nil {
			reasonText = *order.CancellationReason
		}
		event.Data = payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			CancelledAt: now,
			Reason:      reasonText,
		}
	} else {
		event.EventType = enums.EventOrderStatusChanged
		event.Data = payloads.OrderStatusChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			From:        previous,
			To:          target,
			ChangedAt:   now,
		}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order event")
	}
	return order, nil
}

func (s *service) authorizeRead(actor Actor, order *models.Order) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return nil
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

type stockRestorer struct{}

// NewStockRestorer exposes the default stock restore implementation.
func NewStockRestorer() StockRestorer {
	return stockRestorer{}
}

func (stockRestorer) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock_quantity = stock_quantity + ?,
			in_stock = TRUE,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, productID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
	}
	return nil
}
