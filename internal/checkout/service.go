package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/internal/cart"
	"github.com/steepandstone/teahouse-backend/internal/orders"
	"github.com/steepandstone/teahouse-backend/internal/products"
	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/outbox"
	"github.com/steepandstone/teahouse-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Sequencer hands out the next number in the daily order sequence.
type Sequencer interface {
	NextOrderSequence(ctx context.Context, datePrefix string) (int64, error)
}

// Notifier records the order-placed notification inside the checkout
// transaction.
type Notifier interface {
	OrderPlaced(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// CheckoutInput captures the customer-facing fields collected at checkout.
type CheckoutInput struct {
	UserID              uuid.UUID
	OrderType           enums.OrderType
	TableNumber         *int
	CustomerName        string
	CustomerPhone       *string
	CustomerEmail       *string
	PaymentMethod       enums.PaymentMethod
	SpecialInstructions *string
}

// Service converts a cart into an order.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*orders.OrderDTO, error)
}

type service struct {
	tx        txRunner
	cartRepo  cart.Repository
	orderRepo orders.Repository
	catalog   products.Repository
	sequencer Sequencer
	outbox    outboxPublisher
	notifier  Notifier
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	orderRepo orders.Repository,
	catalog products.Repository,
	sequencer Sequencer,
	publisher outboxPublisher,
	notifier Notifier,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if sequencer == nil {
		return nil, fmt.Errorf("order sequencer required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		tx:        tx,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		catalog:   catalog,
		sequencer: sequencer,
		outbox:    publisher,
		notifier:  notifier,
		now:       time.Now,
	}, nil
}

// Execute runs the whole checkout in one transaction: stock is decremented
// line by line, the order is created from cart snapshots, and the cart is
// cleared. Any failure rolls the stock back with everything else.
func (s *service) Execute(ctx context.Context, input CheckoutInput) (*orders.OrderDTO, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)
		catalog := s.catalog.WithTx(tx)

		record, err := cartRepo.FindByUserID(ctx, input.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(record.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
		}

		items, unavailable, err := s.claimStock(ctx, catalog, record.Items)
		if err != nil {
			return err
		}
		if len(unavailable) > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "some items are no longer available").
				WithDetails(map[string]any{"unavailable_products": unavailable})
		}

		now := s.now()
		order := &models.Order{
			UserID:              input.UserID,
			Items:               items,
			OrderType:           input.OrderType,
			TableNumber:         input.TableNumber,
			CustomerName:        strings.TrimSpace(input.CustomerName),
			CustomerPhone:       input.CustomerPhone,
			CustomerEmail:       input.CustomerEmail,
			SubtotalCents:       record.TotalPriceCents,
			DiscountCents:       record.DiscountAmountCents,
			TaxCents:            record.TaxAmountCents,
			DeliveryFeeCents:    record.DeliveryFeeCents,
			TotalCents:          record.FinalTotalCents,
			PaymentMethod:       input.PaymentMethod,
			PaymentStatus:       enums.PaymentStatusPending,
			Status:              enums.OrderStatusPending,
			SpecialInstructions: input.SpecialInstructions,
			OrderedAt:           now,
		}

		created, err := s.createWithOrderNumber(ctx, orderRepo, order, now)
		if err != nil {
			return err
		}

		if err := cartRepo.DeleteItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		record.Items = nil
		record.DiscountCode = nil
		record.DiscountAmountCents = 0
		record.DiscountPercent = 0
		cart.Recompute(record)
		if err := cartRepo.SaveTotals(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset cart totals")
		}

		if err := s.notifier.OrderPlaced(ctx, tx, created); err != nil {
			return err
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.OrderCreatedEvent{
				OrderID:     created.ID,
				OrderNumber: created.OrderNumber,
				UserID:      created.UserID,
				TotalCents:  created.TotalCents,
				ItemCount:   len(created.Items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created event")
		}

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders.FromModel(result), nil
}

func (s *service) validate(input CheckoutInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.CustomerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if !input.OrderType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if input.OrderType == enums.OrderTypeDineIn && input.TableNumber == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "table number required for dine-in orders")
	}
	if input.OrderType == enums.OrderTypeDelivery && input.CustomerPhone == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number required for delivery orders")
	}
	return nil
}

// claimStock decrements every line conditionally. Lines that cannot be
// satisfied are reported by product name so the customer can fix the cart.
func (s *service) claimStock(ctx context.Context, catalog products.Repository, lines []models.CartItem) ([]models.OrderItem, []string, error) {
	items := make([]models.OrderItem, 0, len(lines))
	var unavailable []string

	for i := range lines {
		line := &lines[i]
		product, err := catalog.FindByID(ctx, line.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				unavailable = append(unavailable, line.ProductID.String())
				continue
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			unavailable = append(unavailable, product.Name)
			continue
		}

		claimed, err := catalog.DecrementStock(ctx, product.ID, line.Quantity)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !claimed {
			unavailable = append(unavailable, product.Name)
			continue
		}

		var imageURL *string
		if len(product.ImageURLs) > 0 {
			url := product.ImageURLs[0]
			imageURL = &url
		}
		items = append(items, models.OrderItem{
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: line.UnitPriceCents,
			ImageURL:       imageURL,
			Quantity:       line.Quantity,
			Customizations: line.Customizations,
			Notes:          line.Notes,
			LineTotalCents: line.LineTotalCents(),
		})
	}
	return items, unavailable, nil
}

// createWithOrderNumber allocates the next daily number and inserts the
// order. The Redis counter is authoritative; when it is down the sequence is
// recovered from the orders table, with a single retry if a concurrent
// checkout grabs the same number.
func (s *service) createWithOrderNumber(ctx context.Context, repo orders.Repository, order *models.Order, now time.Time) (*models.Order, error) {
	prefix := now.Format("20060102")

	seq, seqErr := s.sequencer.NextOrderSequence(ctx, prefix)
	if seqErr == nil {
		order.OrderNumber = formatOrderNumber(prefix, seq)
		created, err := repo.Create(ctx, order)
		if err == nil {
			return created, nil
		}
		if !isUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
	}

	seq, err := s.nextFromTable(ctx, repo, prefix)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = formatOrderNumber(prefix, seq)
	created, err := repo.Create(ctx, order)
	if err == nil {
		return created, nil
	}
	if !isUniqueViolation(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	// One retry after a lost race on the fallback number.
	seq, err = s.nextFromTable(ctx, repo, prefix)
	if err != nil {
		return nil, err
	}
	order.OrderNumber = formatOrderNumber(prefix, seq)
	created, err = repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return created, nil
}

func (s *service) nextFromTable(ctx context.Context, repo orders.Repository, prefix string) (int64, error) {
	max, err := repo.MaxOrderNumberWithPrefix(ctx, prefix)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan order sequence")
	}
	if max == "" {
		return 1, nil
	}
	suffix, err := strconv.ParseInt(max[len(prefix):], 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse order sequence")
	}
	return suffix + 1, nil
}

func formatOrderNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%04d", prefix, seq)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
