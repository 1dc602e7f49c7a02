package httpx

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"orderdocs/internal/docstore"
	"orderdocs/internal/metrics"
	"orderdocs/internal/model"
)

func testServer(t *testing.T) (*httptest.Server, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	srv := httptest.NewServer(NewRouter(store, metrics.NewRegistry()))
	t.Cleanup(srv.Close)
	return srv, store
}

func seed(t *testing.T, store *docstore.MemoryStore, orderID int64) {
	t.Helper()
	userID := int64(200)
	err := store.Upsert(context.Background(), model.OrderDocument{
		OrderID:    orderID,
		UserID:     &userID,
		Status:     "PENDING",
		TotalPrice: decimal.RequireFromString("10.00"),
		Items:      []model.OrderItem{{ProductID: 1, Name: "Laptop", UnitPrice: decimal.RequireFromString("10.00"), Qty: 1}},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetDocument(t *testing.T) {
	srv, store := testServer(t)
	seed(t, store, 100)

	resp, err := srv.Client().Get(srv.URL + "/api/documents/100")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var doc model.OrderDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.OrderID != 100 || doc.Items[0].Name != "Laptop" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	resp, err := srv.Client().Get(srv.URL + "/api/documents/404")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func TestGetDocument_BadID(t *testing.T) {
	srv, _ := testServer(t)
	resp, err := srv.Client().Get(srv.URL + "/api/documents/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 400 {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

func TestListAndStats(t *testing.T) {
	srv, store := testServer(t)
	seed(t, store, 100)
	seed(t, store, 101)

	resp, err := srv.Client().Get(srv.URL + "/api/documents/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer resp.Body.Close()
	var docs []model.OrderDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("want 2 documents, got %d", len(docs))
	}

	resp2, err := srv.Client().Get(srv.URL + "/api/documents/stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	defer resp2.Body.Close()
	var stats map[string]int64
	if err := json.NewDecoder(resp2.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats["totalDocuments"] != 2 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
