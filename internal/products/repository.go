package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/steepandstone/teahouse-backend/pkg/db/models"
)

// Repository defines catalog persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, filter ListFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetStock(ctx context.Context, id uuid.UUID, qty int) error
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) error
	UpsertReview(ctx context.Context, review *models.ProductReview) error
	DeleteReview(ctx context.Context, productID, userID uuid.UUID) (bool, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error)
	SetRating(ctx context.Context, productID uuid.UUID, average float64, count int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a products repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Product, int64, error) {
	params := filter.Pagination.Normalize()

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if !filter.IncludeInactive {
		query = query.Where("is_active")
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if filter.Featured != nil {
		query = query.Where("is_featured = ?", *filter.Featured)
	}
	if filter.InStock != nil {
		if *filter.InStock {
			query = query.Where("in_stock AND stock_quantity > 0")
		} else {
			query = query.Where("NOT in_stock OR stock_quantity = 0")
		}
	}
	if filter.OnSale != nil && *filter.OnSale {
		now := time.Now()
		query = query.Where(
			"sale_price_cents IS NOT NULL AND (sale_starts_at IS NULL OR sale_starts_at <= ?) AND (sale_ends_at IS NULL OR sale_ends_at >= ?)",
			now, now,
		)
	}
	if filter.MinCents != nil {
		query = query.Where("price_cents >= ?", *filter.MinCents)
	}
	if filter.MaxCents != nil {
		query = query.Where("price_cents <= ?", *filter.MaxCents)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := query.
		Order(sortClause(filter.SortBy)).
		Offset(params.Offset()).
		Limit(params.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func sortClause(sortBy string) string {
	switch sortBy {
	case "price_asc":
		return "price_cents ASC"
	case "price_desc":
		return "price_cents DESC"
	case "rating":
		return "rating_average DESC, rating_count DESC"
	case "name":
		return "name ASC"
	default:
		return "created_at DESC"
	}
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("is_active", active).Error
}

func (r *repository) SetStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock_quantity": qty,
			"in_stock":       qty > 0,
		}).Error
}

// DecrementStock subtracts qty only when enough stock remains. The conditional
// WHERE makes concurrent checkouts race-safe without a row lock.
func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"in_stock":       gorm.Expr("stock_quantity - ? > 0", qty),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"in_stock":       true,
		}).Error
}

func (r *repository) UpsertReview(ctx context.Context, review *models.ProductReview) error {
	var existing models.ProductReview
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", review.ProductID, review.UserID).
		First(&existing).Error
	switch {
	case err == nil:
		return r.db.WithContext(ctx).
			Model(&models.ProductReview{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"rating":  review.Rating,
				"comment": review.Comment,
			}).Error
	case err == gorm.ErrRecordNotFound:
		return r.db.WithContext(ctx).Create(review).Error
	default:
		return err
	}
}

func (r *repository) DeleteReview(ctx context.Context, productID, userID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("product_id = ? AND user_id = ?", productID, userID).
		Delete(&models.ProductReview{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) ListReviews(ctx context.Context, productID uuid.UUID) ([]models.ProductReview, error) {
	var rows []models.ProductReview
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SetRating overwrites the denormalized review aggregate.
func (r *repository) SetRating(ctx context.Context, productID uuid.UUID, average float64, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"rating_average": average,
			"rating_count":   count,
		}).Error
}
