// Package product maintains the materialized reference table of current
// product attributes, fed by the products CDC stream.
package product

import (
	"encoding/json"
	"fmt"
	"strconv"

	"orderdocs/internal/model"
	"orderdocs/internal/state"
)

const keyPrefix = "product:"

// Table is a keyed current-state view of product id -> (name, price).
// Last write for a given id wins; there is no versioning.
type Table struct {
	kv state.KV
}

func NewTable(kv state.KV) *Table {
	return &Table{kv: kv}
}

func key(productID int64) string {
	return keyPrefix + strconv.FormatInt(productID, 10)
}

func (t *Table) Upsert(p model.ProductRecord) error {
	b, err := json.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshal product %d: %w", p.ID, err)
	}
	if err := t.kv.Put(key(p.ID), b); err != nil {
		return fmt.Errorf("put product %d: %w", p.ID, err)
	}
	return nil
}

func (t *Table) Remove(productID int64) error {
	if err := t.kv.Delete(key(productID)); err != nil {
		return fmt.Errorf("delete product %d: %w", productID, err)
	}
	return nil
}

func (t *Table) Get(productID int64) (model.ProductRecord, bool, error) {
	b, ok, err := t.kv.Get(key(productID))
	if err != nil {
		return model.ProductRecord{}, false, fmt.Errorf("get product %d: %w", productID, err)
	}
	if !ok {
		return model.ProductRecord{}, false, nil
	}
	var p model.ProductRecord
	if err := json.Unmarshal(b, &p); err != nil {
		return model.ProductRecord{}, false, fmt.Errorf("unmarshal product %d: %w", productID, err)
	}
	return p, true, nil
}
