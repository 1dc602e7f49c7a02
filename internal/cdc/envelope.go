// Package cdc decodes change-data-capture envelopes from the three source
// table streams (orders, order_items, products) into typed change events.
// Decoding is pure; malformed payloads yield a *DecodeError and nothing else.
package cdc

import (
	"encoding/json"
	"fmt"
)

// Operation is the change kind carried in the envelope's "op" field.
type Operation string

const (
	OpCreate Operation = "c"
	OpUpdate Operation = "u"
	OpDelete Operation = "d"
)

// Kind tags which source table an event came from. Streams are per-table, so
// the kind is known from the topic, never sniffed from the payload.
type Kind string

const (
	KindOrder     Kind = "order"
	KindOrderItem Kind = "order_item"
	KindProduct   Kind = "product"
)

// Envelope is the wire shape of one change event. Before/After stay raw until
// typed by the per-kind decoders.
type Envelope struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
	Op     string          `json:"op"`
	TsMs   int64           `json:"ts_ms"`
}

// DecodeError marks a payload the pipeline must drop: not valid JSON, an
// unrecognized operation, or a snapshot missing its identity field.
type DecodeError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s event: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s event: %s", e.Kind, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decodeEnvelope parses the outer envelope and validates the operation tag.
func decodeEnvelope(kind Kind, payload []byte) (Envelope, Operation, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, "", &DecodeError{Kind: kind, Reason: "malformed envelope", Err: err}
	}
	op := Operation(env.Op)
	switch op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return Envelope{}, "", &DecodeError{Kind: kind, Reason: fmt.Sprintf("unrecognized op %q", env.Op)}
	}
	if op == OpDelete {
		if isNull(env.Before) {
			return Envelope{}, "", &DecodeError{Kind: kind, Reason: "delete without before snapshot"}
		}
	} else if isNull(env.After) {
		return Envelope{}, "", &DecodeError{Kind: kind, Reason: "missing after snapshot"}
	}
	return env, op, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
