package state

import "testing"

func TestInMemoryKV_PutGetDelete(t *testing.T) {
	s := NewInMemoryKV()

	if _, ok, err := s.Get("pending:1"); err != nil || ok {
		t.Fatalf("get on empty store: ok=%v err=%v", ok, err)
	}

	if err := s.Put("pending:1", []byte(`{"orderId":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := s.Get("pending:1")
	if err != nil || !ok {
		t.Fatalf("get after put: ok=%v err=%v", ok, err)
	}
	if string(v) != `{"orderId":1}` {
		t.Fatalf("unexpected value: %s", v)
	}

	// overwrite wins
	if err := s.Put("pending:1", []byte(`{"orderId":1,"status":"PAID"}`)); err != nil {
		t.Fatalf("put overwrite: %v", err)
	}
	v, _, _ = s.Get("pending:1")
	if string(v) != `{"orderId":1,"status":"PAID"}` {
		t.Fatalf("overwrite not applied: %s", v)
	}

	if err := s.Delete("pending:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get("pending:1"); ok {
		t.Fatalf("key survived delete")
	}

	// deleting an absent key is not an error
	if err := s.Delete("pending:404"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}

func TestInMemoryKV_ScanPrefix(t *testing.T) {
	s := NewInMemoryKV()
	_ = s.Put("product:1", []byte("a"))
	_ = s.Put("product:2", []byte("b"))
	_ = s.Put("pending:1", []byte("c"))

	got := map[string]string{}
	if err := s.Scan("product:", func(k string, v []byte) error {
		got[k] = string(v)
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got["product:1"] != "a" || got["product:2"] != "b" {
		t.Fatalf("unexpected scan result: %v", got)
	}
}

func TestInMemoryKV_GetCopiesValue(t *testing.T) {
	s := NewInMemoryKV()
	_ = s.Put("k", []byte("abc"))
	v, _, _ := s.Get("k")
	v[0] = 'z'
	v2, _, _ := s.Get("k")
	if string(v2) != "abc" {
		t.Fatalf("stored value mutated through returned slice: %s", v2)
	}
}
