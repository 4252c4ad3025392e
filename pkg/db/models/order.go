package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/steepandstone/teahouse-backend/pkg/enums"
)

// Order is created once from a cart snapshot; the pricing block and item
// snapshots never change afterwards, only status/payment/rating fields do.
type Order struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber string          `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number" json:"order_number"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	OrderType   enums.OrderType `gorm:"column:order_type;type:order_type;not null" json:"order_type"`
	TableNumber *int            `gorm:"column:table_number" json:"table_number,omitempty"`

	CustomerName  string  `gorm:"column:customer_name;not null" json:"customer_name"`
	CustomerPhone *string `gorm:"column:customer_phone" json:"customer_phone,omitempty"`
	CustomerEmail *string `gorm:"column:customer_email" json:"customer_email,omitempty"`

	SubtotalCents    int `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	DiscountCents    int `gorm:"column:discount_cents;not null;default:0" json:"discount_cents"`
	TaxCents         int `gorm:"column:tax_cents;not null;default:0" json:"tax_cents"`
	DeliveryFeeCents int `gorm:"column:delivery_fee_cents;not null;default:0" json:"delivery_fee_cents"`
	TotalCents       int `gorm:"column:total_cents;not null" json:"total_cents"`

	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null" json:"payment_method"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'" json:"payment_status"`

	Status              enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'" json:"status"`
	SpecialInstructions *string           `gorm:"column:special_instructions" json:"special_instructions,omitempty"`
	CancellationReason  *string           `gorm:"column:cancellation_reason" json:"cancellation_reason,omitempty"`

	OrderedAt   time.Time  `gorm:"column:ordered_at;not null" json:"ordered_at"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	PreparingAt *time.Time `gorm:"column:preparing_at" json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `gorm:"column:ready_at" json:"ready_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`

	ActualPrepMinutes *int `gorm:"column:actual_prep_minutes" json:"actual_prep_minutes,omitempty"`

	RatingScore   *int       `gorm:"column:rating_score" json:"rating_score,omitempty"`
	RatingComment *string    `gorm:"column:rating_comment" json:"rating_comment,omitempty"`
	RatedAt       *time.Time `gorm:"column:rated_at" json:"rated_at,omitempty"`

	Notes []OrderNote `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
