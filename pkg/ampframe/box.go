package ampframe

// Box is an ordered multimap from byte-string key to byte-string value,
// the payload of a single AMP frame. Key order carries no meaning beyond
// producing deterministic emission; duplicate keys are never produced by
// this package, and Set resolves them last-write-wins in place.
type Box struct {
	entries []boxEntry
	index   map[string]int
}

type boxEntry struct {
	key   string
	value []byte
	live  bool
}

// NewBox returns an empty Box ready for Set calls.
func NewBox() *Box {
	return &Box{index: make(map[string]int)}
}

// Set stores value under key, preserving key's original position if it
// was already present (last-write-wins), or appending it otherwise.
func (b *Box) Set(key string, value []byte) {
	if i, ok := b.index[key]; ok {
		b.entries[i].value = value
		b.entries[i].live = true
		return
	}
	b.index[key] = len(b.entries)
	b.entries = append(b.entries, boxEntry{key: key, value: value, live: true})
}

// Get returns the value stored under key, and whether it was present.
func (b *Box) Get(key string) ([]byte, bool) {
	i, ok := b.index[key]
	if !ok {
		return nil, false
	}
	return b.entries[i].value, true
}

// Delete removes key from the box. Later Range/Keys/Len calls will not
// see it, though its slot is left in place (tombstoned) to avoid
// reshuffling the positions of the other entries.
func (b *Box) Delete(key string) {
	if i, ok := b.index[key]; ok {
		b.entries[i].live = false
		b.entries[i].value = nil
		delete(b.index, key)
	}
}

// Len reports the number of live keys.
func (b *Box) Len() int {
	return len(b.index)
}

// Keys returns the live keys in insertion order.
func (b *Box) Keys() []string {
	keys := make([]string, 0, len(b.index))
	for _, e := range b.entries {
		if e.live {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Range calls fn for each live (key, value) pair in insertion order,
// stopping early if fn returns false.
func (b *Box) Range(fn func(key string, value []byte) bool) {
	for _, e := range b.entries {
		if !e.live {
			continue
		}
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Equal reports whether b and other hold the same live key/value pairs,
// irrespective of insertion order.
func (b *Box) Equal(other *Box) bool {
	if b.Len() != other.Len() {
		return false
	}
	equal := true
	b.Range(func(key string, value []byte) bool {
		ov, ok := other.Get(key)
		if !ok || string(ov) != string(value) {
			equal = false
			return false
		}
		return true
	})
	return equal
}
