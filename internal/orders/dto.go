package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	"github.com/steepandstone/teahouse-backend/pkg/pagination"
	"github.com/steepandstone/teahouse-backend/pkg/types"
)

// Actor identifies who is performing an order operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

// ListFilter describes the inputs supported by the order list.
type ListFilter struct {
	UserID     *uuid.UUID
	Status     *enums.OrderStatus
	DateFrom   *time.Time
	DateTo     *time.Time
	Pagination pagination.Params
}

// UpdateStatusInput moves an order to a new status.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Target  enums.OrderStatus
	Reason  *string
}

// CancelInput is a customer-initiated cancellation.
type CancelInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Reason  *string
}

// RatingInput attaches a customer rating to a completed order.
type RatingInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Score   int
	Comment *string
}

// PaymentInput records how the payment for an order progressed.
type PaymentInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Status  enums.PaymentStatus
}

// NoteInput appends a staff note to an order.
type NoteInput struct {
	OrderID uuid.UUID
	Actor   Actor
	Body    string
}

// OrderDTO is the transport shape of an order.
type OrderDTO struct {
	ID          uuid.UUID      `json:"id"`
	OrderNumber string         `json:"order_number"`
	UserID      uuid.UUID      `json:"user_id"`
	Items       []OrderItemDTO `json:"items"`

	OrderType   enums.OrderType `json:"order_type"`
	TableNumber *int            `json:"table_number,omitempty"`

	CustomerName  string  `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone,omitempty"`
	CustomerEmail *string `json:"customer_email,omitempty"`

	SubtotalCents    int `json:"subtotal_cents"`
	DiscountCents    int `json:"discount_cents"`
	TaxCents         int `json:"tax_cents"`
	DeliveryFeeCents int `json:"delivery_fee_cents"`
	TotalCents       int `json:"total_cents"`

	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`

	Status              enums.OrderStatus `json:"status"`
	SpecialInstructions *string           `json:"special_instructions,omitempty"`
	CancellationReason  *string           `json:"cancellation_reason,omitempty"`

	OrderedAt   time.Time  `json:"ordered_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt *time.Time `json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	ActualPrepMinutes *int `json:"actual_prep_minutes,omitempty"`

	RatingScore   *int       `json:"rating_score,omitempty"`
	RatingComment *string    `json:"rating_comment,omitempty"`
	RatedAt       *time.Time `json:"rated_at,omitempty"`

	Notes []OrderNoteDTO `json:"notes,omitempty"`
}

// OrderItemDTO is one snapshotted line in an order response.
type OrderItemDTO struct {
	ID             uuid.UUID            `json:"id"`
	ProductID      uuid.UUID            `json:"product_id"`
	Name           string               `json:"name"`
	UnitPriceCents int                  `json:"unit_price_cents"`
	ImageURL       *string              `json:"image_url,omitempty"`
	Quantity       int                  `json:"quantity"`
	Customizations types.Customizations `json:"customizations"`
	Notes          *string              `json:"notes,omitempty"`
	LineTotalCents int                  `json:"line_total_cents"`
}

// OrderNoteDTO is one staff note in an order response.
type OrderNoteDTO struct {
	ID           uuid.UUID `json:"id"`
	AuthorUserID uuid.UUID `json:"author_user_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromModel converts an order row into its transport shape.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for i := range o.Items {
		item := &o.Items[i]
		items = append(items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			ImageURL:       item.ImageURL,
			Quantity:       item.Quantity,
			Customizations: item.Customizations,
			Notes:          item.Notes,
			LineTotalCents: item.LineTotalCents,
		})
	}
	notes := make([]OrderNoteDTO, 0, len(o.Notes))
	for i := range o.Notes {
		note := &o.Notes[i]
		notes = append(notes, OrderNoteDTO{
			ID:           note.ID,
			AuthorUserID: note.AuthorUserID,
			Body:         note.Body,
			CreatedAt:    note.CreatedAt,
		})
	}
	return &OrderDTO{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		UserID:              o.UserID,
		Items:               items,
		OrderType:           o.OrderType,
		TableNumber:         o.TableNumber,
		CustomerName:        o.CustomerName,
		CustomerPhone:       o.CustomerPhone,
		CustomerEmail:       o.CustomerEmail,
		SubtotalCents:       o.SubtotalCents,
		DiscountCents:       o.DiscountCents,
		TaxCents:            o.TaxCents,
		DeliveryFeeCents:    o.DeliveryFeeCents,
		TotalCents:          o.TotalCents,
		PaymentMethod:       o.PaymentMethod,
		PaymentStatus:       o.PaymentStatus,
		Status:              o.Status,
		SpecialInstructions: o.SpecialInstructions,
		CancellationReason:  o.CancellationReason,
		OrderedAt:           o.OrderedAt,
		ConfirmedAt:         o.ConfirmedAt,
		PreparingAt:         o.PreparingAt,
		ReadyAt:             o.ReadyAt,
		CompletedAt:         o.CompletedAt,
		CancelledAt:         o.CancelledAt,
		ActualPrepMinutes:   o.ActualPrepMinutes,
		RatingScore:         o.RatingScore,
		RatingComment:       o.RatingComment,
		RatedAt:             o.RatedAt,
		Notes:               notes,
	}
}
