package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"orderdocs/internal/state"
)

// Key prefixes inside the state store. Pending documents, seen-item sets and
// the product-to-orders index share one KV behind distinct prefixes, the same
// flat layout the document pipeline uses for the product reference table.
func pendingKey(orderID int64) string { return "pending:" + strconv.FormatInt(orderID, 10) }
func seenKey(orderID int64) string    { return "seen:" + strconv.FormatInt(orderID, 10) }
func indexKey(productID int64) string { return "byproduct:" + strconv.FormatInt(productID, 10) }

// loadIDSet reads a sorted id set stored as a JSON array. Absent means empty.
func loadIDSet(kv state.KV, key string) ([]int64, error) {
	b, ok, err := kv.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("unmarshal id set %s: %w", key, err)
	}
	return ids, nil
}

// addToIDSet inserts id into the stored set. Re-adding an existing id leaves
// the set untouched, which keeps replays idempotent.
func addToIDSet(kv state.KV, key string, id int64) error {
	ids, err := loadIDSet(kv, key)
	if err != nil {
		return err
	}
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal id set %s: %w", key, err)
	}
	return kv.Put(key, b)
}

// removeFromIDSet drops id from the stored set, deleting the key when the set
// empties.
func removeFromIDSet(kv state.KV, key string, id int64) error {
	ids, err := loadIDSet(kv, key)
	if err != nil {
		return err
	}
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i >= len(ids) || ids[i] != id {
		return nil
	}
	ids = append(ids[:i], ids[i+1:]...)
	if len(ids) == 0 {
		return kv.Delete(key)
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal id set %s: %w", key, err)
	}
	return kv.Put(key, b)
}
