// Package enrich resolves product attributes onto order-item events at
// processing time.
package enrich

import (
	"orderdocs/internal/cdc"
	"orderdocs/internal/model"
	"orderdocs/internal/product"
)

// Enricher joins order-item rows against the product reference table.
type Enricher struct {
	products *product.Table
}

func New(products *product.Table) *Enricher {
	return &Enricher{products: products}
}

// Enrich builds the enriched item for one order_items row. A missing product
// is not an error: the name resolves to the placeholder and resolved reports
// false so the caller can count the miss. A later product event repairs the
// name retroactively.
func (e *Enricher) Enrich(row cdc.OrderItemRow) (item model.EnrichedItem, resolved bool, err error) {
	name := model.UnknownProductName
	rec, ok, err := e.products.Get(row.ProductID)
	if err != nil {
		return model.EnrichedItem{}, false, err
	}
	if ok {
		name = rec.Name
	}
	return model.EnrichedItem{
		OrderItemID: row.ID,
		OrderID:     row.OrderID,
		ProductID:   row.ProductID,
		Name:        name,
		Quantity:    row.Quantity,
		UnitPrice:   row.UnitPrice,
	}, ok, nil
}
