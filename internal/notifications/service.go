package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/pagination"
)

// Service manages a user's notification feed and records order lifecycle
// notifications inside the transactions that produce them.
type Service interface {
	List(ctx context.Context, input ListInput) ([]NotificationDTO, pagination.Meta, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)

	OrderPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error
	OrderStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, previous enums.OrderStatus) error
}

// ListInput scopes a feed query to one user.
type ListInput struct {
	UserID     uuid.UUID
	Pagination pagination.Params
	UnreadOnly bool
}

// NotificationDTO is the API-facing shape of a notification.
type NotificationDTO struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires the notifications service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications: repository is required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]NotificationDTO, pagination.Meta, error) {
	if input.UserID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	params := input.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, listParams{
		UserID:     input.UserID,
		Pagination: params,
		UnreadOnly: input.UnreadOnly,
	})
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list notifications")
	}

	out := make([]NotificationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	return out, pagination.NewMeta(params, total), nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	// Already-read rows are left untouched so the call stays idempotent.
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to mark notifications read")
	}
	return updated, nil
}

func (s *service) OrderPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("notifications: order is required")
	}
	return s.insert(ctx, tx, &models.Notification{
		UserID:  order.UserID,
		Type:    enums.NotificationTypeOrderCreated,
		Title:   "Order placed",
		Message: fmt.Sprintf("Your order %s has been received and is awaiting confirmation.", order.OrderNumber),
		OrderID: &order.ID,
	})
}

func (s *service) OrderStatusChanged(ctx context.Context, tx *gorm.DB, order *models.Order, previous enums.OrderStatus) error {
	if order == nil {
		return fmt.Errorf("notifications: order is required")
	}

	notification := &models.Notification{
		UserID:  order.UserID,
		OrderID: &order.ID,
	}
	switch order.Status {
	case enums.OrderStatusConfirmed:
		notification.Type = enums.NotificationTypeOrderStatus
		notification.Title = "Order confirmed"
		notification.Message = fmt.Sprintf("Order %s has been confirmed and will be prepared shortly.", order.OrderNumber)
	case enums.OrderStatusPreparing:
		notification.Type = enums.NotificationTypeOrderStatus
		notification.Title = "Order in preparation"
		notification.Message = fmt.Sprintf("Order %s is being prepared.", order.OrderNumber)
	case enums.OrderStatusReady:
		notification.Type = enums.NotificationTypeOrderStatus
		notification.Title = "Order ready"
		notification.Message = fmt.Sprintf("Order %s is ready for pickup.", order.OrderNumber)
	case enums.OrderStatusCompleted:
		notification.Type = enums.NotificationTypeOrderStatus
		notification.Title = "Order completed"
		notification.Message = fmt.Sprintf("Order %s is complete. Enjoy your tea!", order.OrderNumber)
	case enums.OrderStatusCancelled:
		notification.Type = enums.NotificationTypeOrderCancelled
		notification.Title = "Order cancelled"
		notification.Message = fmt.Sprintf("Order %s has been cancelled.", order.OrderNumber)
		if reason := order.CancellationReason; reason != nil && *reason != "" {
			notification.Message = fmt.Sprintf("Order %s has been cancelled: %s", order.OrderNumber, *reason)
		}
	default:
		return fmt.Errorf("notifications: no notification for status %q", order.Status)
	}
	return s.insert(ctx, tx, notification)
}

func (s *service) insert(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create notification")
	}
	return nil
}

func toDTO(n *models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		OrderID:   n.OrderID,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
