package contracts

import "testing"

func TestJournaledStorage_SetGetRemove(t *testing.T) {
	base := ContractState{Quota: 10, Used: 1, KV: map[string][]byte{"a": []byte("1")}}
	j := newJournaledStorage(base)

	if v, ok := j.get([]byte("a")); !ok || string(v) != "1" {
		t.Fatalf("expected to read base value, got %q ok=%v", v, ok)
	}

	if code := j.set([]byte("b"), []byte("2")); code != 0 {
		t.Fatalf("set b: code=%d", code)
	}
	if v, ok := j.get([]byte("b")); !ok || string(v) != "2" {
		t.Fatalf("expected journaled value for b, got %q ok=%v", v, ok)
	}
	if len(j.journal) != 1 || string(j.journal[0].Key) != "b" {
		t.Fatalf("expected one journaled change for b, got %+v", j.journal)
	}

	if code := j.remove([]byte("a")); code != 0 {
		t.Fatalf("remove a: code=%d", code)
	}
	if _, ok := j.get([]byte("a")); ok {
		t.Fatalf("expected a to be gone after remove")
	}
	if code := j.remove([]byte("a")); code != 1 {
		t.Fatalf("expected not-found removing a twice, got %d", code)
	}
}

func TestJournaledStorage_ValueTooLarge(t *testing.T) {
	j := newJournaledStorage(ContractState{Quota: 10, KV: map[string][]byte{}})
	big := make([]byte, MaxValueBytes+1)
	if code := j.set([]byte("k"), big); code != -3 {
		t.Fatalf("expected -3 for oversized value, got %d", code)
	}
	if len(j.journal) != 0 {
		t.Fatalf("oversized set must not be journaled")
	}
}

// TestJournaledStorage_QuotaViolationDiscardsFailingChange exercises spec
// §8 scenario 6: quota=2, two inserts succeed, a third new key is
// rejected and never journaled, and storage stays byte-equal to its
// post-first-call state.
func TestJournaledStorage_QuotaViolationDiscardsFailingChange(t *testing.T) {
	base := ContractState{Quota: 2, KV: map[string][]byte{}}
	first := newJournaledStorage(base)
	if code := first.set([]byte("k1"), []byte("v1")); code != 0 {
		t.Fatalf("set k1: code=%d", code)
	}
	if code := first.set([]byte("k2"), []byte("v2")); code != 0 {
		t.Fatalf("set k2: code=%d", code)
	}

	afterFirstCall := ContractState{
		Quota: 2,
		Used:  2,
		KV:    map[string][]byte{"k1": []byte("v1"), "k2": []byte("v2")},
	}

	second := newJournaledStorage(afterFirstCall)
	if code := second.set([]byte("k3"), []byte("v3")); code != -2 {
		t.Fatalf("expected -2 quota exceeded inserting third key, got %d", code)
	}
	if len(second.journal) != 0 {
		t.Fatalf("failing set must not be journaled, got %+v", second.journal)
	}
	if _, ok := second.get([]byte("k3")); ok {
		t.Fatalf("k3 must not be visible after a rejected set")
	}

	// Removing k1 frees a slot; a fresh set should now succeed.
	if code := second.remove([]byte("k1")); code != 0 {
		t.Fatalf("remove k1: code=%d", code)
	}
	if code := second.set([]byte("k3"), []byte("v3")); code != 0 {
		t.Fatalf("expected set k3 to succeed after freeing a slot, got %d", code)
	}
}

func TestUsedAfterOverrides(t *testing.T) {
	base := ContractState{Quota: 10, Used: 1, KV: map[string][]byte{"a": []byte("1")}}
	j := newJournaledStorage(base)
	if got := j.usedAfterOverrides(); got != 1 {
		t.Fatalf("used=%d, want 1", got)
	}
	j.set([]byte("b"), []byte("2"))
	if got := j.usedAfterOverrides(); got != 2 {
		t.Fatalf("used=%d, want 2", got)
	}
	j.remove([]byte("a"))
	if got := j.usedAfterOverrides(); got != 1 {
		t.Fatalf("used=%d, want 1", got)
	}
}
