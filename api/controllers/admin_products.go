package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/steepandstone/teahouse-backend/api/responses"
	"github.com/steepandstone/teahouse-backend/api/validators"
	productsvc "github.com/steepandstone/teahouse-backend/internal/products"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/logger"
)

type createProductRequest struct {
	Name           string     `json:"name" validate:"required,max=200"`
	Description    *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category       string     `json:"category" validate:"required"`
	PriceCents     int        `json:"price_cents" validate:"required,min=1"`
	SalePriceCents *int       `json:"sale_price_cents,omitempty" validate:"omitempty,min=0"`
	SaleStartsAt   *time.Time `json:"sale_starts_at,omitempty"`
	SaleEndsAt     *time.Time `json:"sale_ends_at,omitempty"`
	StockQuantity  int        `json:"stock_quantity" validate:"min=0"`
	IsFeatured     bool       `json:"is_featured"`
	ImageURLs      []string   `json:"image_urls,omitempty" validate:"omitempty,dive,url"`
}

// AdminCreateProduct adds a listing to the catalog.
func AdminCreateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := enums.ParseProductCategory(strings.TrimSpace(payload.Category))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
			return
		}

		product, err := svc.Create(r.Context(), productsvc.CreateProductInput{
			Name:           payload.Name,
			Description:    payload.Description,
			Category:       category,
			PriceCents:     payload.PriceCents,
			SalePriceCents: payload.SalePriceCents,
			SaleStartsAt:   payload.SaleStartsAt,
			SaleEndsAt:     payload.SaleEndsAt,
			StockQuantity:  payload.StockQuantity,
			IsFeatured:     payload.IsFeatured,
			ImageURLs:      payload.ImageURLs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	Name           *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description    *string    `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category       *string    `json:"category,omitempty"`
	PriceCents     *int       `json:"price_cents,omitempty" validate:"omitempty,min=1"`
	SalePriceCents *int       `json:"sale_price_cents,omitempty" validate:"omitempty,min=0"`
	ClearSale      bool       `json:"clear_sale"`
	SaleStartsAt   *time.Time `json:"sale_starts_at,omitempty"`
	SaleEndsAt     *time.Time `json:"sale_ends_at,omitempty"`
	IsFeatured     *bool      `json:"is_featured,omitempty"`
	ImageURLs      []string   `json:"image_urls,omitempty" validate:"omitempty,dive,url"`
}

// AdminUpdateProduct edits a listing; omitted fields are untouched.
func AdminUpdateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := productsvc.UpdateProductInput{
			Name:           payload.Name,
			Description:    payload.Description,
			PriceCents:     payload.PriceCents,
			SalePriceCents: payload.SalePriceCents,
			ClearSale:      payload.ClearSale,
			SaleStartsAt:   payload.SaleStartsAt,
			SaleEndsAt:     payload.SaleEndsAt,
			IsFeatured:     payload.IsFeatured,
			ImageURLs:      payload.ImageURLs,
		}
		if payload.Category != nil {
			category, err := enums.ParseProductCategory(strings.TrimSpace(*payload.Category))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category"))
				return
			}
			input.Category = &category
		}

		product, err := svc.Update(r.Context(), productID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminDeactivateProduct soft-deletes a listing.
func AdminDeactivateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

// AdminReactivateProduct restores a soft-deleted listing.
func AdminReactivateProduct(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reactivate(r.Context(), productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "active"})
	}
}

type setStockRequest struct {
	StockQuantity int `json:"stock_quantity" validate:"min=0"`
}

// AdminSetProductStock replaces a listing's stock count.
func AdminSetProductStock(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.SetStock(r.Context(), productID, payload.StockQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// AdminListProducts serves the catalog including inactive listings.
func AdminListProducts(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseProductFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.IncludeInactive = true

		items, meta, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "pagination": meta})
	}
}
