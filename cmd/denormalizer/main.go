package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"orderdocs/internal/cdc"
	"orderdocs/internal/config"
	"orderdocs/internal/consume"
	"orderdocs/internal/docstore"
	"orderdocs/internal/engine"
	"orderdocs/internal/httpx"
	"orderdocs/internal/metrics"
	"orderdocs/internal/notify"
	"orderdocs/internal/product"
	"orderdocs/internal/state"
)

func main() {
	var (
		stateBackend string // memory|pebble
		sinkBackend  string // memory|redis
		workers      int
		notifyFile   string
	)
	flag.StringVar(&stateBackend, "state-backend", "pebble", "state backend: memory|pebble")
	flag.StringVar(&sinkBackend, "sink-backend", "redis", "document sink backend: memory|redis")
	flag.IntVar(&workers, "workers", 4, "workers per CDC topic")
	flag.StringVar(&notifyFile, "notify-file", "", "also append notifications to this JSONL file")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if err := run(cfg, stateBackend, sinkBackend, workers, notifyFile); err != nil {
		log.Fatalf("denormalizer failed: %v", err)
	}
}

func run(cfg config.Config, stateBackend, sinkBackend string, workers int, notifyFile string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var kv state.KV
	if stateBackend == "pebble" {
		pk, err := state.NewPebbleKV(cfg.PebbleDir)
		if err != nil {
			return err
		}
		defer pk.Close()
		kv = pk
	} else {
		kv = state.NewInMemoryKV()
	}

	var sink docstore.Store
	if sinkBackend == "redis" {
		rs := docstore.NewRedisStore(cfg.RedisAddr)
		defer rs.Close()
		sink = rs
	} else {
		sink = docstore.NewMemoryStore()
	}

	mreg := metrics.NewRegistry()
	eng := engine.New(kv, product.NewTable(kv), sink, mreg)

	var writers []notify.Writer
	if cfg.TopicNotify != "" {
		writers = append(writers, notify.NewKafkaWriter(cfg.KafkaBootstrap, cfg.TopicNotify))
	}
	if notifyFile != "" {
		fw, err := notify.NewFileWriter(".", notifyFile)
		if err != nil {
			return err
		}
		writers = append(writers, fw)
	}
	if len(writers) == 1 {
		eng.SetNotifier(writers[0])
	} else if len(writers) > 1 {
		eng.SetNotifier(notify.NewMultiWriter(writers...))
	}

	topics := []struct {
		topic   string
		handler consume.Handler
	}{
		{cfg.TopicOrders, func(ctx context.Context, payload []byte) error {
			ev, err := cdc.DecodeOrderEvent(payload)
			if err != nil {
				return drop(mreg, err)
			}
			return eng.Apply(ctx, ev)
		}},
		{cfg.TopicOrderItems, func(ctx context.Context, payload []byte) error {
			ev, err := cdc.DecodeOrderItemEvent(payload)
			if err != nil {
				return drop(mreg, err)
			}
			return eng.Apply(ctx, ev)
		}},
		{cfg.TopicProducts, func(ctx context.Context, payload []byte) error {
			ev, err := cdc.DecodeProductEvent(payload)
			if err != nil {
				return drop(mreg, err)
			}
			return eng.Apply(ctx, ev)
		}},
	}

	for _, t := range topics {
		cons, err := consume.New(cfg.KafkaBootstrap, cfg.GroupID, t.topic, workers)
		if err != nil {
			return err
		}
		topic, handler := t.topic, t.handler
		go func() {
			log.Printf("consumer started topic=%s group=%s workers=%d", topic, cfg.GroupID, workers)
			if err := cons.Run(ctx, handler); err != nil {
				log.Printf("consumer exit topic=%s: %v", topic, err)
				cancel()
			}
		}()
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpx.NewRouter(sink, mreg)}
	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down...")
	case <-ctx.Done():
	}
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	time.Sleep(500 * time.Millisecond) // let consumers drain
	return nil
}

// drop records a malformed payload and commits past it; decode failures are
// non-fatal to the pipeline.
func drop(mreg *metrics.Registry, err error) error {
	var derr *cdc.DecodeError
	if errors.As(err, &derr) {
		mreg.DecodeErrors.Inc()
		log.Printf("dropping event: %v", err)
		return nil
	}
	return err
}
