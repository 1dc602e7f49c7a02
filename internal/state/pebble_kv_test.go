package state

import "testing"

func TestPebbleKV_PutGetDelete(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleKV(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if _, ok, err := st.Get("pending:1"); err != nil || ok {
		t.Fatalf("get on empty store: ok=%v err=%v", ok, err)
	}
	if err := st.Put("pending:1", []byte("doc")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := st.Get("pending:1")
	if err != nil || !ok || string(v) != "doc" {
		t.Fatalf("get after put: %q ok=%v err=%v", v, ok, err)
	}
	if err := st.Delete("pending:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.Get("pending:1"); ok {
		t.Fatalf("key survived delete")
	}
}

func TestPebbleKV_ScanStaysInsidePrefix(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleKV(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	_ = st.Put("pending:1", []byte("a"))
	_ = st.Put("pending:2", []byte("b"))
	_ = st.Put("product:1", []byte("x"))
	_ = st.Put("seen:1", []byte("y"))

	var keys []string
	if err := st.Scan("pending:", func(k string, v []byte) error {
		keys = append(keys, k)
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 2 || keys[0] != "pending:1" || keys[1] != "pending:2" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
