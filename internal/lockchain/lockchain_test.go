package lockchain

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testReceipt(seed byte) Receipt {
	var inv, res Hash
	for i := range inv {
		inv[i] = seed
		res[i] = seed + 1
	}
	return Receipt{
		InvocationHash: inv,
		ResultHash:     res,
		Metadata:       ReceiptMetadata{AgentID: "agent", Timestamp: 1000 + int64(seed)},
	}
}

func TestEmptyChain(t *testing.T) {
	c := New()
	if c.Len() != 0 || !c.IsEmpty() {
		t.Fatal("new chain should be empty")
	}
	if c.Head() != nil {
		t.Fatal("empty chain should have nil head")
	}
	if _, ok := c.Latest(); ok {
		t.Fatal("empty chain should have no latest entry")
	}
	if !c.Verify() {
		t.Fatal("empty chain should verify true")
	}
}

func TestAppendSingle(t *testing.T) {
	c := New()
	hash := c.Append(testReceipt(1))
	if c.Len() != 1 {
		t.Fatalf("expected length 1, got %d", c.Len())
	}
	entry, ok := c.Latest()
	if !ok {
		t.Fatal("expected latest entry")
	}
	if entry.Index != 0 || entry.PrevHash != nil || entry.ChainHash != hash {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestAppendMultipleLinksPrevHash(t *testing.T) {
	c := New()
	h1 := c.Append(testReceipt(1))
	h2 := c.Append(testReceipt(2))
	h3 := c.Append(testReceipt(3))

	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[1].PrevHash == nil || *entries[1].PrevHash != h1 {
		t.Error("entry 1 prev_hash should equal hash of entry 0")
	}
	if entries[2].PrevHash == nil || *entries[2].PrevHash != h2 {
		t.Error("entry 2 prev_hash should equal hash of entry 1")
	}
	if entries[2].ChainHash != h3 {
		t.Error("entry 2 chain hash mismatch")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	c := New()
	c.Append(testReceipt(1))
	c.Append(testReceipt(2))
	if !c.Verify() {
		t.Fatal("untampered chain should verify")
	}
	c.entries[1].ChainHash = Hash{99}
	if c.Verify() {
		t.Fatal("tampered chain should not verify")
	}
}

func TestGetEntryOutOfRange(t *testing.T) {
	c := New()
	c.Append(testReceipt(1))
	if _, ok := c.GetEntry(1); ok {
		t.Fatal("expected GetEntry(1) to miss on a 1-entry chain")
	}
	if _, ok := c.GetEntry(0); !ok {
		t.Fatal("expected GetEntry(0) to hit")
	}
}

func TestDeterministicHashing(t *testing.T) {
	c1, c2 := New(), New()
	r := testReceipt(42)
	h1 := c1.Append(r)
	h2 := c2.Append(r)
	if h1 != h2 {
		t.Error("identical receipts on empty chains should produce identical hashes")
	}
}

func TestOrderAffectsHash(t *testing.T) {
	c1, c2 := New(), New()
	r1, r2 := testReceipt(1), testReceipt(2)

	c1.Append(r1)
	hash1 := c1.Append(r2)

	c2.Append(r2)
	hash2 := c2.Append(r1)

	if hash1 == hash2 {
		t.Error("different append orders should produce different chain hashes")
	}
}
