package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/config"
	"github.com/steepandstone/teahouse-backend/pkg/db/models"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
)

const maxQuantityPerLine = 50

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProductReader is the slice of the catalog the cart needs.
type ProductReader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service defines cart operations. Every mutation recomputes and persists the
// derived totals inside one transaction.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, input AddItemInput) (*CartDTO, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	ApplyDiscount(ctx context.Context, input DiscountInput) (*CartDTO, error)
	SetTaxRate(ctx context.Context, userID uuid.UUID, ratePercent float64) (*CartDTO, error)
	SetDeliveryFee(ctx context.Context, userID uuid.UUID, feeCents int) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
}

type service struct {
	repo     Repository
	products ProductReader
	tx       txRunner
	pricing  config.PricingConfig
	now      func() time.Time
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, products ProductReader, tx txRunner, pricing config.PricingConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     repo,
		products: products,
		tx:       tx,
		pricing:  pricing,
		now:      time.Now,
	}, nil
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cart, err := s.loadOrCreate(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	return fromCartModel(cart), nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*CartDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Quantity > maxQuantityPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity cannot exceed %d", maxQuantityPerLine))
	}
	for _, c := range input.Customizations {
		if c.AdditionalPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customization price cannot be negative")
		}
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := s.products.FindActiveByID(ctx, input.ProductID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		cart, err := s.loadOrCreate(ctx, repo, input.UserID)
		if err != nil {
			return err
		}

		// Merge on identical product + customization set.
		var line *models.CartItem
		for i := range cart.Items {
			if cart.Items[i].Matches(input.ProductID, input.Customizations) {
				line = &cart.Items[i]
				break
			}
		}

		newQty := input.Quantity
		if line != nil {
			newQty += line.Quantity
		}
		if !product.Available(newQty) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s is not available in the requested quantity", product.Name)).
				WithDetails(map[string]any{"product_id": product.ID, "stock_quantity": product.StockQuantity})
		}

		if line != nil {
			updates := map[string]any{"quantity": newQty}
			if input.Notes != nil && strings.TrimSpace(*input.Notes) != "" {
				updates["notes"] = strings.TrimSpace(*input.Notes)
			}
			if err := repo.UpdateItem(ctx, line.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			line.Quantity = newQty
			if notes, ok := updates["notes"].(string); ok {
				line.Notes = &notes
			}
		} else {
			item := &models.CartItem{
				CartID:         cart.ID,
				ProductID:      product.ID,
				Quantity:       input.Quantity,
				UnitPriceCents: product.EffectivePriceCents(s.now()),
				Customizations: input.Customizations,
				Notes:          input.Notes,
			}
			if err := repo.AddItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart line")
			}
			cart.Items = append(cart.Items, *item)
		}

		return s.persistTotals(ctx, repo, cart, &result)
	})
	if err != nil {
		return nil, err
	}
	return fromCartModel(result), nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if quantity > maxQuantityPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity cannot exceed %d", maxQuantityPerLine))
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, userID)
		if err != nil {
			return err
		}

		idx := -1
		for i := range cart.Items {
			if cart.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}

		// Zero or below removes the line.
		if quantity <= 0 {
			if err := repo.DeleteItem(ctx, itemID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line")
			}
			cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		} else {
			if err := repo.UpdateItem(ctx, itemID, map[string]any{"quantity": quantity}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			cart.Items[idx].Quantity = quantity
		}

		return s.persistTotals(ctx, repo, cart, &result)
	})
	if err != nil {
		return nil, err
	}
	return fromCartModel(result), nil
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	return s.UpdateItemQuantity(ctx, userID, itemID, 0)
}

func (s *service) ApplyDiscount(ctx context.Context, input DiscountInput) (*CartDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount amount cannot be negative")
	}
	if input.Percent < 0 || input.Percent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 0 and 100")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, input.UserID)
		if err != nil {
			return err
		}
		cart.DiscountCode = input.Code
		cart.DiscountAmountCents = input.AmountCents
		cart.DiscountPercent = input.Percent
		return s.persistTotals(ctx, repo, cart, &result)
	})
	if err != nil {
		return nil, err
	}
	return fromCartModel(result), nil
}

func (s *service) SetTaxRate(ctx context.Context, userID uuid.UUID, ratePercent float64) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if ratePercent < 0 || ratePercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be between 0 and 100")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		cart.TaxRatePercent = ratePercent
		return s.persistTotals(ctx, repo, cart, &result)
	})
	if err != nil {
		return nil, err
	}
	return fromCartModel(result), nil
}

func (s *service) SetDeliveryFee(ctx context.Context, userID uuid.UUID, feeCents int) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if feeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee cannot be negative")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		cart.DeliveryFeeCents = feeCents
		return s.persistTotals(ctx, repo, cart, &result)
	})
	if err != nil {
		return nil, err
	}
	return fromCartModel(result), nil
}

// Clear removes every line and resets the discount, keeping the cart row.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.loadCart(ctx, repo, userID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart lines")
		}
		cart.Items = nil
		cart.DiscountCode = nil
		cart.DiscountAmountCents = 0
		cart.DiscountPercent = 0
		return s.persistTotals(ctx, repo, cart, &result)
	})
	if err != nil {
		return nil, err
	}
	return fromCartModel(result), nil
}

func (s *service) loadCart(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return cart, nil
}

func (s *service) loadOrCreate(ctx context.Context, repo Repository, userID uuid.UUID) (*models.Cart, error) {
	cart, err := repo.FindByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	fresh := &models.Cart{
		UserID:           userID,
		TaxRatePercent:   s.pricing.DefaultTaxRatePercent,
		DeliveryFeeCents: s.pricing.DeliveryFeeCents,
	}
	Recompute(fresh)
	created, err := repo.Create(ctx, fresh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) persistTotals(ctx context.Context, repo Repository, cart *models.Cart, out **models.Cart) error {
	Recompute(cart)
	if err := repo.SaveTotals(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cart totals")
	}
	*out = cart
	return nil
}

