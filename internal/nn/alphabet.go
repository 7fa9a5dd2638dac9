package nn

import (
	"sort"
)

// UnknownKey is the alphabet entry used for strings never seen in training.
const UnknownKey = "-unknown-"

// Alphabet is a bidirectional mapping between strings and dense ids.
//
// Alphabets are built from training data and then frozen; a frozen alphabet
// never grows, lookups of unseen strings fall back to the unknown entry when
// the alphabet has one.
type Alphabet struct {
	ids     map[string]int
	names   []string
	frozen  bool
	unknown int // -1 when the alphabet has no unknown entry
}

// NewAlphabet creates an empty, growable alphabet without an unknown entry.
func NewAlphabet() *Alphabet {
	return &Alphabet{
		ids:     make(map[string]int),
		unknown: -1,
	}
}

// NewAlphabetFromNames creates a frozen alphabet with the given entries in order.
// If names contains UnknownKey it becomes the unknown entry.
func NewAlphabetFromNames(names []string) *Alphabet {
	a := NewAlphabet()
	for _, n := range names {
		a.Add(n)
	}
	if id, ok := a.ids[UnknownKey]; ok {
		a.unknown = id
	}
	a.Freeze()
	return a
}

// BuildAlphabet builds a frozen alphabet from frequency counts.
//
// Entries with count <= cutoff are dropped. Remaining entries are ordered by
// descending frequency, ties broken lexicographically, so that building is
// deterministic. When withUnknown is set the unknown entry gets id 0.
func BuildAlphabet(counts map[string]int, cutoff int, withUnknown bool) *Alphabet {
	keys := make([]string, 0, len(counts))
	for k, c := range counts {
		if c > cutoff && k != UnknownKey {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := counts[keys[i]], counts[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})

	a := NewAlphabet()
	if withUnknown {
		a.unknown = a.Add(UnknownKey)
	}
	for _, k := range keys {
		a.Add(k)
	}
	a.Freeze()
	return a
}

// Add inserts s if absent and returns its id. Frozen alphabets return the
// existing id or the unknown id (-1 without an unknown entry).
func (a *Alphabet) Add(s string) int {
	if id, ok := a.ids[s]; ok {
		return id
	}
	if a.frozen {
		return a.unknown
	}
	id := len(a.names)
	a.ids[s] = id
	a.names = append(a.names, s)
	return id
}

// Index returns the id of s and whether it is present.
func (a *Alphabet) Index(s string) (int, bool) {
	id, ok := a.ids[s]
	return id, ok
}

// IndexOrUnknown returns the id of s, falling back to the unknown entry.
// Returns -1 when s is absent and the alphabet has no unknown entry.
func (a *Alphabet) IndexOrUnknown(s string) int {
	if id, ok := a.ids[s]; ok {
		return id
	}
	return a.unknown
}

// Name returns the string for id.
func (a *Alphabet) Name(id int) string {
	return a.names[id]
}

// Names returns all entries in id order.
func (a *Alphabet) Names() []string {
	return append([]string(nil), a.names...)
}

// Size returns the number of entries.
func (a *Alphabet) Size() int {
	return len(a.names)
}

// Freeze stops the alphabet from growing.
func (a *Alphabet) Freeze() {
	a.frozen = true
}

// Frozen reports whether the alphabet is frozen.
func (a *Alphabet) Frozen() bool {
	return a.frozen
}

// UnknownID returns the id of the unknown entry, or -1.
func (a *Alphabet) UnknownID() int {
	return a.unknown
}
