package transfer

import (
	"strings"

	pkgerrors "github.com/angelmondragon/partsdesk-backend/pkg/errors"
)

type column int

const (
	colPartNumber column = iota
	colManufacturer
	colEngine
	colCategory
	colSupplier
	colDescription
	colPrice
	colQuantity
	colBin
	colImage
	colSKU
	colNotes
	columnCount
)

// exportHeader is also accepted verbatim by the importer.
var exportHeader = []string{
	"PartNumber", "Manufacturer", "Engine", "Category", "Supplier", "Description",
	"Price", "Stock", "Bin", "Image", "SKU", "Notes",
}

var headerAliases = map[string]column{
	"partnumber":   colPartNumber,
	"part number":  colPartNumber,
	"part_number":  colPartNumber,
	"part":         colPartNumber,
	"manufacturer": colManufacturer,
	"make":         colManufacturer,
	"engine":       colEngine,
	"model":        colEngine,
	"category":     colCategory,
	"supplier":     colSupplier,
	"brand":        colSupplier,
	"description":  colDescription,
	"productname":  colDescription,
	"name":         colDescription,
	"price":        colPrice,
	"unitprice":    colPrice,
	"quantity":     colQuantity,
	"stock":        colQuantity,
	"qty":          colQuantity,
	"binlocation":  colBin,
	"bin":          colBin,
	"image":        colImage,
	"imageurl":     colImage,
	"sku":          colSKU,
	"notes":        colNotes,
}

// layout maps each known column to its index in a record, -1 when absent.
type layout [columnCount]int

func parseHeader(record []string) (layout, error) {
	var l layout
	for i := range l {
		l[i] = -1
	}
	for idx, raw := range record {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		col, ok := headerAliases[name]
		if !ok || l[col] != -1 {
			continue
		}
		l[col] = idx
	}
	if l[colPartNumber] == -1 || l[colSupplier] == -1 {
		return l, pkgerrors.New(pkgerrors.CodeValidation, "CSV must contain PartNumber and Supplier columns").
			WithDetails(map[string]any{"header": record})
	}
	return l, nil
}

// field returns the trimmed value of col, or "" when the column is absent or
// the record is short.
func (l layout) field(record []string, col column) string {
	idx := l[col]
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
