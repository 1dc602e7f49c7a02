// gencdc generates Debezium-shaped change events for the three source tables,
// either as JSONL files (one per topic) or produced straight to Kafka.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type envelope struct {
	Before any    `json:"before"`
	After  any    `json:"after"`
	Op     string `json:"op"`
	TsMs   int64  `json:"ts_ms"`
}

type orderRow struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Status     string `json:"status"`
	TotalPrice string `json:"total_price"`
	OrderedAt  int64  `json:"ordered_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

type orderItemRow struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	CreatedAt int64  `json:"created_at"`
}

type productRow struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

func main() {
	var (
		orders    int
		products  int
		outputDir string
		bootstrap string
		prefix    string
	)
	flag.IntVar(&orders, "orders", 100, "number of orders to generate")
	flag.IntVar(&products, "products", 10, "number of products to generate")
	flag.StringVar(&outputDir, "output-dir", ".", "directory for JSONL output")
	flag.StringVar(&bootstrap, "kafka-bootstrap", "", "produce to Kafka instead of files")
	flag.StringVar(&prefix, "topic-prefix", "dbserver1.public", "CDC topic prefix")
	flag.Parse()

	if err := generate(orders, products, outputDir, bootstrap, prefix); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
}

type emitter func(topic string, key int64, env envelope) error

func generate(orders, products int, outputDir, bootstrap, prefix string) error {
	topicOrders := prefix + ".orders"
	topicItems := prefix + ".order_items"
	topicProducts := prefix + ".products"

	var emit emitter
	var finish func() error
	if bootstrap != "" {
		emit, finish = kafkaEmitter(bootstrap)
	} else {
		var err error
		emit, finish, err = fileEmitter(outputDir)
		if err != nil {
			return err
		}
	}

	names := []string{"Laptop", "Phone", "Tablet", "Monitor", "Keyboard", "Mouse", "Headset", "Webcam", "Dock", "Charger"}
	now := time.Now().UTC().UnixMilli()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	for p := 1; p <= products; p++ {
		row := productRow{
			ID:          int64(p),
			Name:        names[(p-1)%len(names)],
			Price:       fmt.Sprintf("%d.99", 10+rnd.Intn(990)),
			Description: "generated fixture",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := emit(topicProducts, row.ID, envelope{After: row, Op: "c", TsMs: now}); err != nil {
			return err
		}
	}

	itemID := int64(0)
	for o := 1; o <= orders; o++ {
		order := orderRow{
			ID:         int64(o),
			UserID:     int64(200 + rnd.Intn(50)),
			Status:     "PENDING",
			TotalPrice: fmt.Sprintf("%d.00", 100+rnd.Intn(900)),
			OrderedAt:  now + int64(o*10_000),
			UpdatedAt:  now + int64(o*10_000),
		}
		if err := emit(topicOrders, order.ID, envelope{After: order, Op: "c", TsMs: order.OrderedAt}); err != nil {
			return err
		}
		for n := 0; n < 1+rnd.Intn(3); n++ {
			itemID++
			item := orderItemRow{
				ID:        itemID,
				OrderID:   order.ID,
				ProductID: int64(1 + rnd.Intn(products)),
				Quantity:  int64(1 + rnd.Intn(5)),
				UnitPrice: fmt.Sprintf("%d.99", 10+rnd.Intn(990)),
				CreatedAt: order.OrderedAt,
			}
			if err := emit(topicItems, item.ID, envelope{After: item, Op: "c", TsMs: order.OrderedAt}); err != nil {
				return err
			}
		}
	}

	if err := finish(); err != nil {
		return err
	}
	log.Printf("generated %d products, %d orders (%d items)", products, orders, itemID)
	return nil
}

func fileEmitter(dir string) (emitter, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("mkdir: %w", err)
	}
	files := map[string]*os.File{}
	emit := func(topic string, key int64, env envelope) error {
		f, ok := files[topic]
		if !ok {
			var err error
			f, err = os.Create(filepath.Join(dir, topic+".jsonl"))
			if err != nil {
				return fmt.Errorf("create %s: %w", topic, err)
			}
			files[topic] = f
		}
		return json.NewEncoder(f).Encode(&env)
	}
	finish := func() error {
		for _, f := range files {
			if err := f.Close(); err != nil {
				return err
			}
		}
		return nil
	}
	return emit, finish, nil
}

func kafkaEmitter(bootstrap string) (emitter, func() error) {
	addrs := strings.Split(bootstrap, ",")
	w := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	emit := func(topic string, key int64, env envelope) error {
		b, err := json.Marshal(&env)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		return w.WriteMessages(context.Background(), kafka.Message{
			Topic: topic,
			Key:   []byte(strconv.FormatInt(key, 10)),
			Value: b,
		})
	}
	return emit, w.Close
}
