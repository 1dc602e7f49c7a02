// Package engine is the denormalization core: it folds order, order-item and
// product change events into per-order partial state, decides when an order
// document is complete enough to publish, repairs already-emitted documents
// when a product arrives late, and cascades order deletions.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"orderdocs/internal/cdc"
	"orderdocs/internal/docstore"
	"orderdocs/internal/enrich"
	"orderdocs/internal/metrics"
	"orderdocs/internal/model"
	"orderdocs/internal/notify"
	"orderdocs/internal/product"
	"orderdocs/internal/state"
)

type Engine struct {
	kv       state.KV
	products *product.Table
	enricher *enrich.Enricher
	sink     docstore.Store
	mreg     *metrics.Registry
	notifier notify.Writer
	locks    keyedLocks
}

func New(kv state.KV, products *product.Table, sink docstore.Store, mreg *metrics.Registry) *Engine {
	return &Engine{
		kv:       kv,
		products: products,
		enricher: enrich.New(products),
		sink:     sink,
		mreg:     mreg,
	}
}

// SetNotifier attaches an optional lifecycle notification writer. Notification
// failures are logged and never affect aggregation state.
func (g *Engine) SetNotifier(w notify.Writer) { g.notifier = w }

// Apply routes one decoded change event to its handler. Errors returned here
// are state-backend failures; per-event semantic conditions (unknown product,
// delete of untracked order) are not errors.
func (g *Engine) Apply(ctx context.Context, ev cdc.Event) error {
	switch e := ev.(type) {
	case cdc.OrderEvent:
		return g.handleOrder(ctx, e)
	case cdc.OrderItemEvent:
		return g.handleOrderItem(ctx, e)
	case cdc.ProductEvent:
		return g.handleProduct(ctx, e)
	default:
		return fmt.Errorf("unhandled event kind %q", ev.EventKind())
	}
}

func (g *Engine) handleOrder(ctx context.Context, ev cdc.OrderEvent) error {
	g.mreg.OrderEvents.Inc()
	if ev.Op == cdc.OpDelete {
		return g.deleteOrder(ctx, ev.OrderID)
	}

	unlock := g.locks.lock(ev.OrderID)
	defer unlock()

	st, existed, err := g.loadPending(ev.OrderID)
	if err != nil {
		return err
	}
	st.UserID = ev.Row.UserID
	st.Status = ev.Row.Status
	st.TotalPrice = ev.Row.TotalPrice
	st.OrderedAt = cdc.EpochMillis(ev.Row.OrderedAt)
	if err := g.savePending(st); err != nil {
		return err
	}
	if !existed {
		g.mreg.PendingOrders.Inc()
	}
	g.finalize(ctx, st)
	return nil
}

func (g *Engine) handleOrderItem(ctx context.Context, ev cdc.OrderItemEvent) error {
	g.mreg.ItemEvents.Inc()
	if ev.Op == cdc.OpDelete {
		// Item deletions do not retract previously aggregated items;
		// the stream is consumed append-only at this stage.
		return nil
	}

	// Point-in-time read of the reference table, outside the order lock.
	item, resolved, err := g.enricher.Enrich(*ev.Row)
	if err != nil {
		return err
	}
	if !resolved {
		g.mreg.EnrichmentMisses.Inc()
		log.Printf("product not found for enrichment productId=%d orderId=%d", ev.Row.ProductID, ev.Row.OrderID)
	}

	unlock := g.locks.lock(item.OrderID)
	defer unlock()

	st, existed, err := g.loadPending(item.OrderID)
	if err != nil {
		return err
	}
	st.UpsertItem(item)
	if err := g.savePending(st); err != nil {
		return err
	}
	if err := addToIDSet(g.kv, seenKey(item.OrderID), item.OrderItemID); err != nil {
		return err
	}
	if err := addToIDSet(g.kv, indexKey(item.ProductID), item.OrderID); err != nil {
		return err
	}
	if !existed {
		g.mreg.PendingOrders.Inc()
	}
	g.finalize(ctx, st)
	return nil
}

func (g *Engine) handleProduct(ctx context.Context, ev cdc.ProductEvent) error {
	g.mreg.ProductEvents.Inc()
	if ev.Op == cdc.OpDelete {
		// Eviction only: items enriched earlier keep their last-resolved
		// name until a future item event re-enriches them.
		return g.products.Remove(ev.ProductID)
	}

	if err := g.products.Upsert(model.ProductRecord{
		ID:    ev.ProductID,
		Name:  ev.Row.Name,
		Price: ev.Row.Price,
	}); err != nil {
		return err
	}
	return g.correctName(ctx, ev.ProductID, ev.Row.Name)
}

// correctName retroactively rewrites the resolved name on every pending state
// and published document whose items reference productID. Pending states are
// found through the product-to-orders index; published documents are walked
// through the sink so documents that predate this process's index are still
// repaired. Name corrections never flip a pending order to published.
func (g *Engine) correctName(ctx context.Context, productID int64, name string) error {
	orderIDs, err := loadIDSet(g.kv, indexKey(productID))
	if err != nil {
		return err
	}
	for _, orderID := range orderIDs {
		if err := g.patchPending(orderID, productID, name); err != nil {
			return err
		}
	}

	docs, err := g.sink.FindAll(ctx)
	if err != nil {
		g.mreg.SinkFailures.Inc()
		log.Printf("sink scan failed during correction productId=%d: %v", productID, err)
		return nil
	}
	for _, doc := range docs {
		if !needsNameFix(doc, productID, name) {
			continue
		}
		unlock := g.locks.lock(doc.OrderID)
		applied, err := g.republishCorrected(ctx, doc.OrderID, productID, name)
		unlock()
		if err != nil {
			g.mreg.SinkFailures.Inc()
			log.Printf("correction failed orderId=%d: %v", doc.OrderID, err)
			continue
		}
		if applied {
			g.mreg.CorrectionsApplied.Inc()
		}
	}
	return nil
}

func needsNameFix(doc model.OrderDocument, productID int64, name string) bool {
	for _, it := range doc.Items {
		if it.ProductID == productID && it.Name != name {
			return true
		}
	}
	return false
}

// republishCorrected rewrites one published document under the order's lock.
// The FindAll snapshot may be stale by the time the lock is held, so the
// document is rebuilt from pending state when it exists (already patched by
// the index pass) and re-read from the sink otherwise; a header or item
// signal landing between the scan and the upsert is never erased.
func (g *Engine) republishCorrected(ctx context.Context, orderID, productID int64, name string) (bool, error) {
	st, existed, err := g.loadPending(orderID)
	if err != nil {
		return false, err
	}
	if existed && st.Ready() {
		return true, g.sink.Upsert(ctx, model.BuildDocument(st))
	}
	doc, ok, err := g.sink.FindByID(ctx, orderID)
	if err != nil || !ok {
		return false, err
	}
	patched := false
	for i := range doc.Items {
		if doc.Items[i].ProductID == productID && doc.Items[i].Name != name {
			doc.Items[i].Name = name
			patched = true
		}
	}
	if !patched {
		return false, nil
	}
	return true, g.sink.Upsert(ctx, doc)
}

func (g *Engine) patchPending(orderID, productID int64, name string) error {
	unlock := g.locks.lock(orderID)
	defer unlock()

	st, existed, err := g.loadPending(orderID)
	if err != nil {
		return err
	}
	if !existed {
		return nil // deleted since it was indexed
	}
	patched := false
	for i := range st.Items {
		if st.Items[i].ProductID == productID && st.Items[i].Name != name {
			st.Items[i].Name = name
			patched = true
		}
	}
	if !patched {
		return nil
	}
	if err := g.savePending(st); err != nil {
		return err
	}
	g.mreg.CorrectionsApplied.Inc()
	return nil
}

// deleteOrder removes every trace of an order: pending state, seen-item set,
// index entries and the published document. Deleting an untracked order is a
// no-op, not an error.
func (g *Engine) deleteOrder(ctx context.Context, orderID int64) error {
	unlock := g.locks.lock(orderID)
	defer unlock()

	st, existed, err := g.loadPending(orderID)
	if err != nil {
		return err
	}
	if existed {
		for _, it := range st.Items {
			if err := removeFromIDSet(g.kv, indexKey(it.ProductID), orderID); err != nil {
				return err
			}
		}
		if err := g.kv.Delete(pendingKey(orderID)); err != nil {
			return err
		}
		if err := g.kv.Delete(seenKey(orderID)); err != nil {
			return err
		}
		g.mreg.PendingOrders.Dec()
	}

	if err := g.sink.Delete(ctx, orderID); err != nil {
		g.mreg.SinkFailures.Inc()
		log.Printf("sink delete failed orderId=%d: %v", orderID, err)
		return nil
	}
	g.mreg.DocumentsDeleted.Inc()
	g.notify(notify.Notification{OrderID: orderID, Action: notify.ActionDeleted, TS: time.Now().UTC().Unix()})
	log.Printf("deleted order document orderId=%d", orderID)
	return nil
}

// finalize re-evaluates the publish gate after a header or item mutation.
// Caller holds the order's lock. A sink failure is logged and swallowed;
// state is not rolled back, so the next triggering signal retries the upsert.
func (g *Engine) finalize(ctx context.Context, st model.PartialOrderState) {
	if !st.Ready() {
		return
	}
	doc := model.BuildDocument(st)
	t0 := time.Now()
	if err := g.sink.Upsert(ctx, doc); err != nil {
		g.mreg.SinkFailures.Inc()
		log.Printf("sink upsert failed orderId=%d: %v", doc.OrderID, err)
		return
	}
	g.mreg.DocumentsPublished.Inc()
	g.mreg.PublishLatencySec.Observe(time.Since(t0).Seconds())
	g.notify(notify.Notification{OrderID: doc.OrderID, Action: notify.ActionPublished, TS: time.Now().UTC().Unix()})
	log.Printf("finalized order document orderId=%d items=%d", doc.OrderID, len(doc.Items))
}

func (g *Engine) notify(n notify.Notification) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(n); err != nil {
		log.Printf("notify failed orderId=%d action=%s: %v", n.OrderID, n.Action, err)
	}
}

func (g *Engine) loadPending(orderID int64) (model.PartialOrderState, bool, error) {
	b, ok, err := g.kv.Get(pendingKey(orderID))
	if err != nil {
		return model.PartialOrderState{}, false, err
	}
	if !ok {
		return model.PartialOrderState{OrderID: orderID}, false, nil
	}
	var st model.PartialOrderState
	if err := json.Unmarshal(b, &st); err != nil {
		return model.PartialOrderState{}, false, fmt.Errorf("unmarshal pending state %d: %w", orderID, err)
	}
	return st, true, nil
}

func (g *Engine) savePending(st model.PartialOrderState) error {
	b, err := json.Marshal(&st)
	if err != nil {
		return fmt.Errorf("marshal pending state %d: %w", st.OrderID, err)
	}
	return g.kv.Put(pendingKey(st.OrderID), b)
}
