package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/partsdesk-backend/api/middleware"
	"github.com/angelmondragon/partsdesk-backend/api/responses"
	"github.com/angelmondragon/partsdesk-backend/api/validators"
	"github.com/angelmondragon/partsdesk-backend/internal/cart"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

// shopperFromRequest returns the authenticated account id; every cart is
// keyed by it.
func shopperFromRequest(r *http.Request) (string, error) {
	shopperID := middleware.UserIDFromContext(r.Context())
	if shopperID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing shopper identity")
	}
	return shopperID, nil
}

func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.GetCart(r.Context(), shopperID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CartAddItem reserves stock for the shopper. Shortages come back as 409
// with the available count in the error details.
func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cart.AddItemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := svc.AddToCart(r.Context(), shopperID, body.VariantID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// CartRemoveItem drops the whole line, or only ?quantity= units of it.
func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParsePathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var qty *int
		if r.URL.Query().Has("quantity") {
			n, err := validators.ParseQueryInt(r, "quantity", 0, 1, 1<<20)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			qty = &n
		}
		dto, err := svc.RemoveFromCart(r.Context(), shopperID, variantID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ClearCart(r.Context(), shopperID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

type checkoutRequest struct {
	PaymentMethod string  `json:"payment_method" validate:"omitempty,max=16"`
	CustomerID    *string `json:"customer_id,omitempty" validate:"omitempty,max=128"`
}

// CartCheckout settles the shopper's reservations into one sale. Staff may
// record the sale against another customer id.
func CartCheckout(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID, err := shopperFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body checkoutRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		meta := sales.Meta{
			PaymentMethod: enums.PaymentMethod(strings.ToLower(strings.TrimSpace(body.PaymentMethod))),
			CustomerID:    body.CustomerID,
		}
		if isCustomer(r) {
			// shop customers always buy for themselves
			meta.CustomerID = &shopperID
		}
		result, err := svc.Checkout(r.Context(), shopperID, meta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logCtx := logg.WithFields(r.Context(), map[string]any{
				"sale_id":    result.SaleID.String(),
				"shopper_id": shopperID,
				"total":      result.Total.StringFixed(2),
			})
			logg.Info(logCtx, "cart.checked_out")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
