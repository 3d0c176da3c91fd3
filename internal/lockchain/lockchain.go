// Package lockchain implements the append-only blake3-chained receipt log
// (C9). It is a direct Go rendering of the original kernel's
// rdf::lockchain::Lockchain: a mutex-guarded Vec<LockchainEntry> plus a
// head pointer, with chain_hash = blake3(invocation_hash || result_hash
// || prev_hash?) computed at append time.
package lockchain

import (
	"sync"
	"time"

	"lukechampine.com/blake3"
)

// Hash is a lowercase-hex-renderable blake3-256 digest.
type Hash [32]byte

// ReceiptMetadata carries the agent identity and wall-clock time attached
// to a receipt.
type ReceiptMetadata struct {
	AgentID   string
	TraceID   string
	Timestamp int64
}

// Receipt is the payload appended to the chain: the hashes of the
// canonicalized invocation and its result, plus metadata.
type Receipt struct {
	InvocationHash Hash
	ResultHash     Hash
	Metadata       ReceiptMetadata
}

// Entry is one link in the chain.
type Entry struct {
	Receipt   Receipt
	PrevHash  *Hash
	ChainHash Hash
	Timestamp int64
	Index     uint64
}

// Lockchain is the process-wide append-only receipt log.
type Lockchain struct {
	mu      sync.Mutex
	entries []Entry
	head    *Hash
}

// New creates an empty Lockchain.
func New() *Lockchain {
	return &Lockchain{}
}

// Append computes chain_hash for the receipt against the current head,
// pushes a new entry, and advances head. Returns the new chain hash.
func (l *Lockchain) Append(r Receipt) Hash {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := uint64(len(l.entries))
	chainHash := computeChainHash(r, l.head)

	entry := Entry{
		Receipt:   r,
		PrevHash:  l.head,
		ChainHash: chainHash,
		Timestamp: time.Now().Unix(),
		Index:     index,
	}
	l.entries = append(l.entries, entry)
	h := chainHash
	l.head = &h
	return chainHash
}

// Verify walks every entry recomputing chain_hash and confirming
// prev_hash equals the predecessor's chain_hash. Any mismatch anywhere in
// the chain fails the whole verification.
func (l *Lockchain) Verify() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var prev *Hash
	for _, entry := range l.entries {
		expected := computeChainHash(entry.Receipt, prev)
		if expected != entry.ChainHash {
			return false
		}
		if !hashPtrEqual(entry.PrevHash, prev) {
			return false
		}
		h := entry.ChainHash
		prev = &h
	}
	return true
}

// Entries returns a defensive copy of every entry in append order.
func (l *Lockchain) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// GetEntry returns the entry at index, or false if out of range.
func (l *Lockchain) GetEntry(index uint64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index >= uint64(len(l.entries)) {
		return Entry{}, false
	}
	return l.entries[index], true
}

// Latest returns the most recently appended entry, or false if empty.
func (l *Lockchain) Latest() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Head returns the current head hash, or nil if the chain is empty.
func (l *Lockchain) Head() *Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Len returns the chain length.
func (l *Lockchain) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// IsEmpty reports whether the chain has zero entries.
func (l *Lockchain) IsEmpty() bool { return l.Len() == 0 }

func computeChainHash(r Receipt, prev *Hash) Hash {
	h := blake3.New(32, nil)
	h.Write(r.InvocationHash[:])
	h.Write(r.ResultHash[:])
	if prev != nil {
		h.Write(prev[:])
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashPtrEqual(a, b *Hash) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
