package cdc

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodeOrderEvent_Create(t *testing.T) {
	payload := []byte(`{
		"before": null,
		"after": {"id": 100, "user_id": 200, "status": "PENDING", "total_price": "999.99", "ordered_at": 1700000000000, "updated_at": 1700000000000},
		"op": "c",
		"ts_ms": 1700000000123
	}`)
	ev, err := DecodeOrderEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Op != OpCreate || ev.OrderID != 100 || ev.TsMs != 1700000000123 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Row == nil || ev.Row.UserID == nil || *ev.Row.UserID != 200 {
		t.Fatalf("unexpected row: %+v", ev.Row)
	}
	if !ev.Row.TotalPrice.Equal(decimal.RequireFromString("999.99")) {
		t.Fatalf("unexpected total price: %s", ev.Row.TotalPrice)
	}
	if ev.Row.OrderedAt == nil || *ev.Row.OrderedAt != 1700000000000 {
		t.Fatalf("unexpected ordered_at: %v", ev.Row.OrderedAt)
	}
}

func TestDecodeOrderEvent_AbsentTimestampStaysAbsent(t *testing.T) {
	payload := []byte(`{"after": {"id": 100, "user_id": 200, "status": "PENDING", "total_price": 10, "ordered_at": null}, "op": "u", "ts_ms": 1}`)
	ev, err := DecodeOrderEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Row.OrderedAt != nil {
		t.Fatalf("absent timestamp should stay absent, got %v", *ev.Row.OrderedAt)
	}
}

func TestDecodeOrderEvent_DeleteUsesBefore(t *testing.T) {
	payload := []byte(`{"before": {"id": 103, "user_id": 1}, "after": null, "op": "d", "ts_ms": 2}`)
	ev, err := DecodeOrderEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Op != OpDelete || ev.OrderID != 103 || ev.Row != nil {
		t.Fatalf("unexpected delete event: %+v", ev)
	}
}

func TestDecodeOrderEvent_Errors(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"op": "c", "after":`},
		{"unrecognized op", `{"op": "x", "after": {"id": 1}}`},
		{"create without after", `{"op": "c", "after": null}`},
		{"delete without before", `{"op": "d", "before": null}`},
		{"missing id", `{"op": "c", "after": {"user_id": 5}}`},
		{"delete missing id", `{"op": "d", "before": {"user_id": 5}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeOrderEvent([]byte(tc.payload))
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Fatalf("want *DecodeError, got %v", err)
			}
			if derr.Kind != KindOrder {
				t.Fatalf("want kind order, got %s", derr.Kind)
			}
		})
	}
}

func TestDecodeOrderItemEvent(t *testing.T) {
	payload := []byte(`{"after": {"id": 7, "order_id": 100, "product_id": 1, "quantity": 2, "unit_price": "49.50", "created_at": 1700000000000}, "op": "c", "ts_ms": 3}`)
	ev, err := DecodeOrderItemEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ItemID != 7 || ev.Row.OrderID != 100 || ev.Row.ProductID != 1 || ev.Row.Quantity != 2 {
		t.Fatalf("unexpected event: %+v", ev.Row)
	}
	if !ev.Row.UnitPrice.Equal(decimal.RequireFromString("49.50")) {
		t.Fatalf("unexpected unit price: %s", ev.Row.UnitPrice)
	}

	if _, err := DecodeOrderItemEvent([]byte(`{"op": "c", "after": {"id": 7, "order_id": 100}}`)); err == nil {
		t.Fatalf("expected error for missing product_id")
	}
}

func TestDecodeProductEvent(t *testing.T) {
	payload := []byte(`{"after": {"id": 1, "name": "Laptop", "price": "999.99", "description": "x"}, "op": "u", "ts_ms": 4}`)
	ev, err := DecodeProductEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.ProductID != 1 || ev.Row.Name != "Laptop" {
		t.Fatalf("unexpected event: %+v", ev.Row)
	}

	del, err := DecodeProductEvent([]byte(`{"before": {"id": 9}, "op": "d"}`))
	if err != nil {
		t.Fatalf("decode delete: %v", err)
	}
	if del.Op != OpDelete || del.ProductID != 9 {
		t.Fatalf("unexpected delete: %+v", del)
	}
}

func TestEpochMillis(t *testing.T) {
	if EpochMillis(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	ms := int64(1700000000000)
	got := EpochMillis(&ms)
	if got == nil || got.UnixMilli() != ms {
		t.Fatalf("bad conversion: %v", got)
	}
}
