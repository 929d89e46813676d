package models

import "github.com/google/uuid"

// All lists every persisted model in dependency order.
func All() []any {
	return []any{
		&Manufacturer{},
		&Engine{},
		&Category{},
		&Supplier{},
		&Product{},
		&ProductEngine{},
		&Variant{},
		&CartEntry{},
		&StockReservation{},
		&StockMovement{},
		&Sale{},
		&SaleItem{},
		&User{},
	}
}

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
