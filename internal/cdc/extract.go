package cdc

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Event is the closed union of decoded change events. Exactly the three
// concrete types below implement it.
type Event interface {
	EventKind() Kind
}

// OrderRow is the after-image of one row of the orders table.
type OrderRow struct {
	ID         int64           `json:"id"`
	UserID     *int64          `json:"user_id"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OrderedAt  *int64          `json:"ordered_at"`
	UpdatedAt  *int64          `json:"updated_at"`
}

// OrderItemRow is the after-image of one row of the order_items table.
type OrderItemRow struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt *int64          `json:"created_at"`
}

// ProductRow is the after-image of one row of the products table.
type ProductRow struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	CreatedAt   *int64          `json:"created_at"`
	UpdatedAt   *int64          `json:"updated_at"`
}

// OrderEvent is a decoded orders change. Row is nil on delete; OrderID is
// always set (from before on delete, after otherwise).
type OrderEvent struct {
	Op      Operation
	TsMs    int64
	OrderID int64
	Row     *OrderRow
}

func (OrderEvent) EventKind() Kind { return KindOrder }

// OrderItemEvent is a decoded order_items change. Row is nil on delete.
type OrderItemEvent struct {
	Op     Operation
	TsMs   int64
	ItemID int64
	Row    *OrderItemRow
}

func (OrderItemEvent) EventKind() Kind { return KindOrderItem }

// ProductEvent is a decoded products change. Row is nil on delete.
type ProductEvent struct {
	Op        Operation
	TsMs      int64
	ProductID int64
	Row       *ProductRow
}

func (ProductEvent) EventKind() Kind { return KindProduct }

// DecodeOrderEvent decodes one orders-stream payload.
func DecodeOrderEvent(payload []byte) (OrderEvent, error) {
	env, op, err := decodeEnvelope(KindOrder, payload)
	if err != nil {
		return OrderEvent{}, err
	}
	if op == OpDelete {
		id, err := deletedID(KindOrder, env.Before)
		if err != nil {
			return OrderEvent{}, err
		}
		return OrderEvent{Op: op, TsMs: env.TsMs, OrderID: id}, nil
	}
	var row OrderRow
	if err := json.Unmarshal(env.After, &row); err != nil {
		return OrderEvent{}, &DecodeError{Kind: KindOrder, Reason: "malformed after snapshot", Err: err}
	}
	if row.ID == 0 {
		return OrderEvent{}, &DecodeError{Kind: KindOrder, Reason: "missing id in after snapshot"}
	}
	return OrderEvent{Op: op, TsMs: env.TsMs, OrderID: row.ID, Row: &row}, nil
}

// DecodeOrderItemEvent decodes one order_items-stream payload.
func DecodeOrderItemEvent(payload []byte) (OrderItemEvent, error) {
	env, op, err := decodeEnvelope(KindOrderItem, payload)
	if err != nil {
		return OrderItemEvent{}, err
	}
	if op == OpDelete {
		id, err := deletedID(KindOrderItem, env.Before)
		if err != nil {
			return OrderItemEvent{}, err
		}
		return OrderItemEvent{Op: op, TsMs: env.TsMs, ItemID: id}, nil
	}
	var row OrderItemRow
	if err := json.Unmarshal(env.After, &row); err != nil {
		return OrderItemEvent{}, &DecodeError{Kind: KindOrderItem, Reason: "malformed after snapshot", Err: err}
	}
	if row.ID == 0 || row.OrderID == 0 || row.ProductID == 0 {
		return OrderItemEvent{}, &DecodeError{Kind: KindOrderItem, Reason: "missing identity in after snapshot"}
	}
	return OrderItemEvent{Op: op, TsMs: env.TsMs, ItemID: row.ID, Row: &row}, nil
}

// DecodeProductEvent decodes one products-stream payload.
func DecodeProductEvent(payload []byte) (ProductEvent, error) {
	env, op, err := decodeEnvelope(KindProduct, payload)
	if err != nil {
		return ProductEvent{}, err
	}
	if op == OpDelete {
		id, err := deletedID(KindProduct, env.Before)
		if err != nil {
			return ProductEvent{}, err
		}
		return ProductEvent{Op: op, TsMs: env.TsMs, ProductID: id}, nil
	}
	var row ProductRow
	if err := json.Unmarshal(env.After, &row); err != nil {
		return ProductEvent{}, &DecodeError{Kind: KindProduct, Reason: "malformed after snapshot", Err: err}
	}
	if row.ID == 0 {
		return ProductEvent{}, &DecodeError{Kind: KindProduct, Reason: "missing id in after snapshot"}
	}
	return ProductEvent{Op: op, TsMs: env.TsMs, ProductID: row.ID, Row: &row}, nil
}

// deletedID pulls the row identity out of the before snapshot of a delete.
func deletedID(kind Kind, before json.RawMessage) (int64, error) {
	var row struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(before, &row); err != nil {
		return 0, &DecodeError{Kind: kind, Reason: "malformed before snapshot", Err: err}
	}
	if row.ID == 0 {
		return 0, &DecodeError{Kind: kind, Reason: "missing id in before snapshot"}
	}
	return row.ID, nil
}

// EpochMillis converts an epoch-millisecond wire timestamp to time.Time.
// Absent stays absent.
func EpochMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms).UTC()
	return &t
}
