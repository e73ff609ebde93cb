package contracts

// StorageChange is one journaled storage mutation (spec §4.7): either an
// update (Removed=false, Value set) or a delete (Removed=true). Handed to
// the chain state as part of a successful call's delta; discarded
// wholesale on any failure.
type StorageChange struct {
	Key     []byte
	Value   []byte
	Removed bool
}

// ContractState is the read-only snapshot of a contract's quota-bounded
// key/value store a call begins from (spec §4.6/§4.7). The sandbox never
// mutates it directly — all mutations are journaled and applied by the
// caller only once a call has fully succeeded.
type ContractState struct {
	Quota uint64
	Used  uint64
	KV    map[string][]byte
}

// journaledStorage is the per-call storage view the host ABI functions
// operate against: reads see base.KV overlaid with this call's pending
// writes/deletes; writes never touch base until the caller applies a
// successful call's Journal.
type journaledStorage struct {
	base      ContractState
	overrides map[string]*StorageChange
	journal   []StorageChange
}

func newJournaledStorage(base ContractState) *journaledStorage {
	return &journaledStorage{
		base:      base,
		overrides: make(map[string]*StorageChange),
	}
}

func (j *journaledStorage) get(key []byte) ([]byte, bool) {
	k := string(key)
	if ch, ok := j.overrides[k]; ok {
		if ch.Removed {
			return nil, false
		}
		return ch.Value, true
	}
	v, ok := j.base.KV[k]
	return v, ok
}

// usedAfterOverrides returns storage_used as it would stand given every
// override applied so far (spec I6: storage_used == count of occupied
// slots).
func (j *journaledStorage) usedAfterOverrides() uint64 {
	used := j.base.Used
	for k, ch := range j.overrides {
		_, inBase := j.base.KV[k]
		if ch.Removed {
			if inBase {
				used--
			}
		} else if !inBase {
			used++
		}
	}
	return used
}

// set implements storage_set's contract: 0=ok, -2=slot quota exceeded
// (only for genuinely new keys), -3=value too large. A failing set is
// never added to the journal, so a failed call's journal never touches
// chain state (spec §8 scenario 6).
func (j *journaledStorage) set(key, value []byte) int32 {
	if uint64(len(value)) > MaxValueBytes {
		return -3
	}
	_, existed := j.get(key)
	if !existed && j.usedAfterOverrides() >= j.base.Quota {
		return -2
	}
	keyCopy := append([]byte(nil), key...)
	valCopy := append([]byte(nil), value...)
	j.overrides[string(key)] = &StorageChange{Key: keyCopy, Value: valCopy}
	j.journal = append(j.journal, StorageChange{Key: keyCopy, Value: valCopy})
	return 0
}

// remove implements storage_remove's contract: 0=removed, 1=not found.
func (j *journaledStorage) remove(key []byte) int32 {
	if _, existed := j.get(key); !existed {
		return 1
	}
	keyCopy := append([]byte(nil), key...)
	j.overrides[string(key)] = &StorageChange{Key: keyCopy, Removed: true}
	j.journal = append(j.journal, StorageChange{Key: keyCopy, Removed: true})
	return 0
}
