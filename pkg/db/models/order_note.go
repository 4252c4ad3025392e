package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderNote is an append-only remark attached to an order.
type OrderNote struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	AuthorUserID uuid.UUID `gorm:"column:author_user_id;type:uuid;not null" json:"author_user_id"`
	Body         string    `gorm:"column:body;not null" json:"body"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
