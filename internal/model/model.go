package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownProductName is the placeholder resolved name for items whose product
// has not been seen yet. A later product event rewrites it in place.
const UnknownProductName = "Unknown"

// ProductRecord is the current-state view of one product, maintained from the
// products CDC stream. Latest write wins.
type ProductRecord struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// EnrichedItem is one order line item with its product name resolved at
// processing time.
type EnrichedItem struct {
	OrderItemID int64           `json:"orderItemId"`
	OrderID     int64           `json:"orderId"`
	ProductID   int64           `json:"productId"`
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// PartialOrderState accumulates one order's header and items until the order
// is complete enough to publish. Items are unique by ProductID.
type PartialOrderState struct {
	OrderID    int64           `json:"orderId"`
	UserID     *int64          `json:"userId"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	OrderedAt  *time.Time      `json:"orderedAt"`
	Items      []EnrichedItem  `json:"items"`
}

// UpsertItem inserts the item or, when an item with the same ProductID already
// exists, overwrites that entry's name/quantity/price in place. It never
// appends a second entry for the same product.
func (p *PartialOrderState) UpsertItem(it EnrichedItem) {
	for i := range p.Items {
		if p.Items[i].ProductID == it.ProductID {
			p.Items[i] = it
			return
		}
	}
	p.Items = append(p.Items, it)
}

// Ready reports whether the state may be published: the order header has been
// seen with a user id and at least one item has arrived.
func (p *PartialOrderState) Ready() bool {
	return p.UserID != nil && len(p.Items) > 0
}

// OrderItem is the published line-item shape inside an OrderDocument.
type OrderItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Qty       int64           `json:"qty"`
}

// ProductSummary carries per-order aggregate statistics.
type ProductSummary struct {
	UniqueProductCount int     `json:"uniqueProductCount"`
	ProductIDs         []int64 `json:"productIds"`
	TotalQuantity      int64   `json:"totalQuantity"`
}

// OrderDocument is the denormalized, read-optimized artifact published to the
// document store. Identity is OrderID; every publish fully overwrites the
// previous version.
type OrderDocument struct {
	OrderID        int64           `json:"orderId"`
	UserID         *int64          `json:"userId"`
	Status         string          `json:"status"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	Items          []OrderItem     `json:"items"`
	OrderedAt      *time.Time      `json:"orderedAt"`
	ProductSummary *ProductSummary `json:"productSummary"`
}

// BuildDocument converts accumulated partial state into the published
// document. The summary is recomputed from the current items on every call;
// quantities are never incrementally accumulated, so replays cannot
// double-count. Items are emitted sorted by product id so the published
// content is identical for every arrival interleaving.
func BuildDocument(st PartialOrderState) OrderDocument {
	src := append([]EnrichedItem(nil), st.Items...)
	sort.Slice(src, func(i, j int) bool { return src[i].ProductID < src[j].ProductID })
	items := make([]OrderItem, 0, len(src))
	ids := make([]int64, 0, len(src))
	var totalQty int64
	for _, it := range src {
		items = append(items, OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Qty:       it.Quantity,
		})
		ids = append(ids, it.ProductID)
		totalQty += it.Quantity
	}
	return OrderDocument{
		OrderID:    st.OrderID,
		UserID:     st.UserID,
		Status:     st.Status,
		TotalPrice: st.TotalPrice,
		Items:      items,
		OrderedAt:  st.OrderedAt,
		ProductSummary: &ProductSummary{
			UniqueProductCount: len(ids),
			ProductIDs:         ids,
			TotalQuantity:      totalQty,
		},
	}
}
