// Package domain defines the versioned resource model shared by every strata
// store: transactions, per-resource versions, typed resource handles, links,
// the resource type catalog and the error taxonomy surfaced by stores.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Transaction identifies one logical commit point. The empty store is at
// transaction zero and every successful mutation advances it exactly once.
type Transaction uint64

// InitTransaction returns the transaction of an empty store.
func InitTransaction() Transaction { return 0 }

// Next returns the strictly greater successor transaction.
func (t Transaction) Next() Transaction { return t + 1 }

// After reports whether t was committed later than other.
func (t Transaction) After(other Transaction) bool { return t > other }

// String renders the transaction as tx:<n>.
func (t Transaction) String() string { return "tx:" + strconv.FormatUint(uint64(t), 10) }

// ParseTransaction parses the tx:<n> form produced by String. A bare integer
// is accepted as well.
func ParseTransaction(s string) (Transaction, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "tx:"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse transaction %q: %w", s, err)
	}
	return Transaction(n), nil
}

// Version is a revision stamp on one resource's lifeline. Versions of
// different resources are not comparable; ordering is only exposed through
// Resource.IsLaterVersionOf and Resource.IsEarlierVersionOf.
type Version struct {
	tx  Transaction
	seq uint64
}

// InitVersion returns the version of a resource created in tx.
func InitVersion(tx Transaction) Version { return Version{tx: tx} }

// NewVersion assembles a version from its parts, e.g. when restoring a
// snapshot.
func NewVersion(tx Transaction, seq uint64) Version { return Version{tx: tx, seq: seq} }

// Transaction returns the transaction the version is anchored at.
func (v Version) Transaction() Transaction { return v.tx }

// Sequence returns the per-resource sequence number.
func (v Version) Sequence() uint64 { return v.seq }

// Next returns the successor version anchored at tx. The sequence is strictly
// monotonic per resource, so the successor orders after v even when tx equals
// v's own transaction.
func (v Version) Next(tx Transaction) Version {
	if tx < v.tx {
		tx = v.tx
	}
	return Version{tx: tx, seq: v.seq + 1}
}

// String renders the version as tx:<n>/seq:<m>.
func (v Version) String() string {
	return v.tx.String() + "/seq:" + strconv.FormatUint(v.seq, 10)
}

func (v Version) compare(other Version) int {
	switch {
	case v.tx < other.tx:
		return -1
	case v.tx > other.tx:
		return 1
	case v.seq < other.seq:
		return -1
	case v.seq > other.seq:
		return 1
	default:
		return 0
	}
}
