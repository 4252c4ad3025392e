package controllers

import (
	"net/http"
	"strings"

	"github.com/steepandstone/teahouse-backend/api/responses"
	"github.com/steepandstone/teahouse-backend/api/validators"
	checkoutsvc "github.com/steepandstone/teahouse-backend/internal/checkout"
	"github.com/steepandstone/teahouse-backend/pkg/enums"
	pkgerrors "github.com/steepandstone/teahouse-backend/pkg/errors"
	"github.com/steepandstone/teahouse-backend/pkg/logger"
)

type checkoutRequest struct {
	OrderType           string  `json:"order_type" validate:"required"`
	TableNumber         *int    `json:"table_number,omitempty" validate:"omitempty,min=1"`
	CustomerName        string  `json:"customer_name" validate:"required,max=200"`
	CustomerPhone       *string `json:"customer_phone,omitempty" validate:"omitempty,max=40"`
	CustomerEmail       *string `json:"customer_email,omitempty" validate:"omitempty,email"`
	PaymentMethod       string  `json:"payment_method" validate:"required"`
	SpecialInstructions *string `json:"special_instructions,omitempty" validate:"omitempty,max=1000"`
}

// Checkout converts the caller's cart into an order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderType, err := enums.ParseOrderType(strings.TrimSpace(payload.OrderType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type"))
			return
		}
		paymentMethod, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.Execute(r.Context(), checkoutsvc.CheckoutInput{
			UserID:              userID,
			OrderType:           orderType,
			TableNumber:         payload.TableNumber,
			CustomerName:        payload.CustomerName,
			CustomerPhone:       payload.CustomerPhone,
			CustomerEmail:       payload.CustomerEmail,
			PaymentMethod:       paymentMethod,
			SpecialInstructions: payload.SpecialInstructions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
