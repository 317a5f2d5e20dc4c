package memory

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// IDSource mints identifiers for new resources.
type IDSource interface {
	NewID() (uuid.UUID, error)
}

// IDSourceFunc adapts a function to IDSource.
type IDSourceFunc func() (uuid.UUID, error)

// NewID calls f.
func (f IDSourceFunc) NewID() (uuid.UUID, error) { return f() }

// RandomIDs returns a source of random (version 4) UUIDs.
func RandomIDs() IDSource { return IDSourceFunc(uuid.NewRandom) }

// SequentialIDs yields name-based UUIDs derived from a namespace and a counter,
// so a run with the same namespace produces the same identifiers.
type SequentialIDs struct {
	mu        sync.Mutex
	namespace uuid.UUID
	next      uint64
}

// NewSequentialIDs returns a deterministic source rooted at namespace.
func NewSequentialIDs(namespace uuid.UUID) *SequentialIDs {
	return &SequentialIDs{namespace: namespace}
}

// NewID returns the identifier for the next counter value.
func (s *SequentialIDs) NewID() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], s.next)
	s.next++
	return uuid.NewSHA1(s.namespace, b[:]), nil
}
