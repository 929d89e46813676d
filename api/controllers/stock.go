package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdesk-backend/api/middleware"
	"github.com/angelmondragon/partsdesk-backend/api/responses"
	"github.com/angelmondragon/partsdesk-backend/api/validators"
	"github.com/angelmondragon/partsdesk-backend/internal/ledger"
	"github.com/angelmondragon/partsdesk-backend/pkg/db/models"
	"github.com/angelmondragon/partsdesk-backend/pkg/logger"
)

type setStockRequest struct {
	StockQuantity *int `json:"stock_quantity" validate:"required,min=0"`
}

// AdminSetStock overwrites a variant's on-hand count and records a stock_set
// movement. Outstanding reservations are left alone.
func AdminSetStock(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body setStockRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetStock(r.Context(), id, *body.StockQuantity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logCtx := logg.WithFields(r.Context(), map[string]any{
				"variant_id":  id.String(),
				"stock":       *body.StockQuantity,
				"operator_id": middleware.UserIDFromContext(r.Context()),
			})
			logg.Info(logCtx, "stock.set")
		}

		availability, err := svc.Availability(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

func AdminVariantAvailability(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		availability, err := svc.Availability(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

type movementResponse struct {
	ID          uuid.UUID  `json:"id"`
	VariantID   uuid.UUID  `json:"variant_id"`
	Type        string     `json:"type"`
	Quantity    int        `json:"quantity"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newMovementResponses(rows []models.StockMovement) []movementResponse {
	out := make([]movementResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, movementResponse{
			ID:          row.ID,
			VariantID:   row.VariantID,
			Type:        string(row.Type),
			Quantity:    row.Quantity,
			ReferenceID: row.ReferenceID,
			CreatedAt:   row.CreatedAt,
		})
	}
	return out
}

// AdminVariantMovements returns the newest stock movements for a variant.
func AdminVariantMovements(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "variantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.Movements(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMovementResponses(rows))
	}
}
