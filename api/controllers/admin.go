package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/partsdesk-backend/api/middleware"
	"github.com/angelmondragon/partsdesk-backend/api/responses"
	"github.com/angelmondragon/partsdesk-backend/internal/cart"
	"github.com/angelmondragon/partsdesk-backend/internal/sales"
	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

func AdminStats(svc sales.Service, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context(), now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AdminActiveCarts(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		carts, err := svc.ActiveCarts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, carts)
	}
}

// AdminForceRelease returns every unit a shopper holds to stock.
func AdminForceRelease(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shopperID := strings.TrimSpace(chi.URLParam(r, "shopperId"))
		if shopperID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shopper id required"))
			return
		}
		operatorID := middleware.UserIDFromContext(r.Context())
		if err := svc.ForceRelease(r.Context(), shopperID, operatorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
