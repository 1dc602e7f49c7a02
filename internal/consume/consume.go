// Package consume reads one CDC topic and feeds decoded payloads to the
// engine through a pool of key-sharded workers: messages sharing a Kafka key
// (the source row's primary key) always land on the same worker, so per-row
// order is preserved while distinct rows process in parallel. Offsets commit
// through a per-partition contiguous watermark, never past an unhandled
// message.
package consume

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Handler must return nil only when the payload was fully handled (or
// deliberately dropped) and its offset may be committed.
type Handler func(ctx context.Context, payload []byte) error

type Consumer struct {
	c       *ck.Consumer
	topic   string
	workers int
}

func New(bootstrap, groupID, topic string, workers int) (*Consumer, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"enable.auto.commit": false,
		"isolation.level":    "read_committed",
		"auto.offset.reset":  "earliest",
	})
	if err != nil {
		return nil, err
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{c: c, topic: topic, workers: workers}, nil
}

// committer tracks in-flight offsets per partition and yields commit
// positions only for the contiguous prefix of handled messages. Workers
// finish out of order, but a commit never moves past an offset that is still
// in flight or whose handler failed, so a restart redelivers from the first
// unhandled message.
type committer struct {
	mu   sync.Mutex
	next map[int32]ck.Offset
	done map[int32]map[ck.Offset]struct{}
}

func newCommitter() *committer {
	return &committer{
		next: make(map[int32]ck.Offset),
		done: make(map[int32]map[ck.Offset]struct{}),
	}
}

// track registers a dispatched message. The reader sees each partition's
// offsets in order, so the first tracked offset is the commit floor.
func (c *committer) track(m *ck.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := m.TopicPartition.Partition
	if _, ok := c.next[p]; !ok {
		c.next[p] = m.TopicPartition.Offset
		c.done[p] = make(map[ck.Offset]struct{})
	}
}

// complete marks one offset handled. It returns the new watermark for the
// partition when the contiguous prefix advanced, and ok=false while an
// earlier offset is still outstanding.
func (c *committer) complete(m *ck.Message) (ck.TopicPartition, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := m.TopicPartition.Partition
	c.done[p][m.TopicPartition.Offset] = struct{}{}
	advanced := false
	for {
		if _, ok := c.done[p][c.next[p]]; !ok {
			break
		}
		delete(c.done[p], c.next[p])
		c.next[p]++
		advanced = true
	}
	if !advanced {
		return ck.TopicPartition{}, false
	}
	tp := m.TopicPartition
	tp.Offset = c.next[p]
	return tp, true
}

// Run dispatches messages until ctx is cancelled. A handler error stalls the
// partition's commit watermark, so the failed message and everything after it
// on that partition are redelivered after a restart; other partitions and
// other keys keep processing.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	defer c.c.Close()

	cmt := newCommitter()
	shards := make([]chan *ck.Message, c.workers)
	done := make(chan struct{})
	for i := range shards {
		shards[i] = make(chan *ck.Message, 64)
		go func(jobs <-chan *ck.Message) {
			for m := range jobs {
				if err := h(ctx, m.Value); err != nil {
					log.Printf("handler error topic=%s partition=%d offset=%v: %v",
						c.topic, m.TopicPartition.Partition, m.TopicPartition.Offset, err)
					continue
				}
				if tp, ok := cmt.complete(m); ok {
					if _, err := c.c.CommitOffsets([]ck.TopicPartition{tp}); err != nil {
						log.Printf("commit error topic=%s: %v", c.topic, err)
					}
				}
			}
			done <- struct{}{}
		}(shards[i])
	}

	stop := func() {
		for _, ch := range shards {
			close(ch)
		}
		for range shards {
			<-done
		}
	}

	for {
		if ctx.Err() != nil {
			stop()
			return nil
		}
		m, err := c.c.ReadMessage(time.Second)
		if err != nil {
			if kerr, ok := err.(ck.Error); ok && kerr.IsTimeout() {
				continue
			}
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		cmt.track(m)
		select {
		case shards[c.shardOf(m.Key)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) shardOf(key []byte) int {
	if len(key) == 0 {
		return 0
	}
	hsh := fnv.New32a()
	_, _ = hsh.Write(key)
	return int(hsh.Sum32() % uint32(c.workers))
}
