package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdesk-backend/api/middleware"
	"github.com/angelmondragon/partsdesk-backend/api/responses"
	"github.com/angelmondragon/partsdesk-backend/api/validators"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	"github.com/angelmondragon/partsdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

type directSaleRequest struct {
	Items         []sales.DirectItem `json:"items"`
	PaymentMethod string             `json:"payment_method" validate:"omitempty,max=16"`
	CustomerID    *string            `json:"customer_id,omitempty" validate:"omitempty,max=128"`
}

// DirectSale records a walk-up sale at the counter. The authenticated
// operator is stored as the cashier.
func DirectSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body directSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		meta := sales.Meta{
			PaymentMethod: enums.PaymentMethod(strings.ToLower(strings.TrimSpace(body.PaymentMethod))),
			CustomerID:    body.CustomerID,
			Channel:       enums.SaleChannelPOS,
		}
		if cashier, err := uuid.Parse(middleware.UserIDFromContext(r.Context())); err == nil {
			meta.CashierID = &cashier
		}

		result, err := svc.SettleDirect(r.Context(), body.Items, meta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logCtx := logg.WithFields(r.Context(), map[string]any{
				"sale_id": result.SaleID.String(),
				"lines":   len(body.Items),
				"total":   result.Total.StringFixed(2),
			})
			logg.Info(logCtx, "sale.recorded")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func isCustomer(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == string(enums.UserRoleCustomer)
}

// ListSales returns receipts newest first. Customers only ever see their own.
func ListSales(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := sales.ListFilter{Limit: limit, Cursor: r.URL.Query().Get("cursor")}
		if raw := validators.SanitizeString(r.URL.Query().Get("customer_id"), 128); raw != "" {
			filter.CustomerID = &raw
		}
		if isCustomer(r) {
			self := middleware.UserIDFromContext(r.Context())
			filter.CustomerID = &self
		}

		page, err := svc.ListSales(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func GetSale(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.GetSale(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if isCustomer(r) {
			self := middleware.UserIDFromContext(r.Context())
			if sale.CustomerID == nil || *sale.CustomerID != self {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found"))
				return
			}
		}
		responses.WriteSuccess(w, sale)
	}
}
