package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestFileWriter_Notify(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir, "notifications.jsonl")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}

	n1 := Notification{OrderID: 100, Action: ActionPublished, TS: 1}
	n2 := Notification{OrderID: 100, Action: ActionDeleted, TS: 2}
	if err := w.Notify(n1); err != nil {
		t.Fatalf("notify1: %v", err)
	}
	if err := w.Notify(n2); err != nil {
		t.Fatalf("notify2: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "notifications.jsonl"))
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	var got []Notification
	for s.Scan() {
		var n Notification
		if err := json.Unmarshal(s.Bytes(), &n); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, n)
	}
	if err := s.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != n1 || got[1] != n2 {
		t.Fatalf("mismatch: %+v", got)
	}
}

// fakeKafkaWriter implements kafkaMessageWriter for tests
type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaWriter_Notify_Success(t *testing.T) {
	fk := &fakeKafkaWriter{}
	kw := NewKafkaWriterWith(fk)
	if err := kw.Notify(Notification{OrderID: 100, Action: ActionPublished, TS: 1}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "100" {
		t.Fatalf("bad key: %s", string(fk.msgs[0].Key))
	}
}

func TestKafkaWriter_Notify_Fail(t *testing.T) {
	fk := &fakeKafkaWriter{fail: true}
	kw := NewKafkaWriterWith(fk)
	if err := kw.Notify(Notification{OrderID: 1, Action: ActionDeleted, TS: 1}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMultiWriter_FansOut(t *testing.T) {
	a := &fakeKafkaWriter{}
	b := &fakeKafkaWriter{}
	mw := NewMultiWriter(NewKafkaWriterWith(a), NewKafkaWriterWith(b))
	if err := mw.Notify(Notification{OrderID: 7, Action: ActionPublished, TS: 3}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(a.msgs) != 1 || len(b.msgs) != 1 {
		t.Fatalf("fan-out incomplete: %d/%d", len(a.msgs), len(b.msgs))
	}
}
