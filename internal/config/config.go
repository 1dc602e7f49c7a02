package config

import (
	"os"
)

type Config struct {
	HTTPAddr        string
	KafkaBootstrap  string
	RedisAddr       string
	GroupID         string
	TopicOrders     string
	TopicOrderItems string
	TopicProducts   string
	TopicNotify     string
	PebbleDir       string
}

func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		KafkaBootstrap:  getenv("KAFKA_BOOTSTRAP", "localhost:9092"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		GroupID:         getenv("CONSUMER_GROUP", "cdc-consumer-group"),
		TopicOrders:     getenv("TOPIC_ORDERS", "dbserver1.public.orders"),
		TopicOrderItems: getenv("TOPIC_ORDER_ITEMS", "dbserver1.public.order_items"),
		TopicProducts:   getenv("TOPIC_PRODUCTS", "dbserver1.public.products"),
		TopicNotify:     getenv("TOPIC_NOTIFY", ""),
		PebbleDir:       getenv("PEBBLE_DIR", "./data/state"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
