// Package buckets splits a state snapshot into the named payloads the
// table- and hash-backed engines store side by side.
package buckets

import (
	"fmt"

	"strata/internal/codec"
	"strata/internal/infra/persistence/memory"
)

// Bucket names. Every persisted snapshot writes all of them.
const (
	Codec       = "codec"
	Transaction = "transaction"
	Resources   = "resources"
	Links       = "links"
)

// Names lists the buckets in write order.
var Names = []string{Codec, Transaction, Resources, Links}

// Encode renders snap as one payload per bucket. The codec bucket holds the
// codec name so a store written with one codec is not misread with another.
func Encode(c codec.Codec, snap memory.Snapshot) (map[string][]byte, error) {
	out := map[string][]byte{Codec: []byte(c.Name())}
	parts := map[string]any{
		Transaction: snap.Transaction,
		Resources:   snap.Resources,
		Links:       snap.Links,
	}
	for name, v := range parts {
		data, err := c.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		out[name] = data
	}
	return out, nil
}

// Decode rebuilds a snapshot from payloads. found is false when payloads
// holds no buckets at all, which is how an engine recognises a fresh store.
func Decode(c codec.Codec, payloads map[string][]byte) (snap memory.Snapshot, found bool, err error) {
	if len(payloads) == 0 {
		return memory.Snapshot{}, false, nil
	}
	name, ok := payloads[Codec]
	if !ok {
		return memory.Snapshot{}, true, fmt.Errorf("bucket %s missing", Codec)
	}
	if string(name) != c.Name() {
		return memory.Snapshot{}, true, fmt.Errorf("state was written with codec %q, configured codec is %q", name, c.Name())
	}
	targets := map[string]any{
		Transaction: &snap.Transaction,
		Resources:   &snap.Resources,
		Links:       &snap.Links,
	}
	for name, target := range targets {
		data, ok := payloads[name]
		if !ok {
			return memory.Snapshot{}, true, fmt.Errorf("bucket %s missing", name)
		}
		if err := c.Unmarshal(data, target); err != nil {
			return memory.Snapshot{}, true, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return snap, true, nil
}
