// Package stringbank interns the small set of often-repeated strings in the
// telemetry corpus -- hostnames, usernames, and commands -- giving each a
// compact handle. Adapted from analysis/string_bank.go's stringBank in the
// teacher repo, which does the same for scheduler command names; generalized
// here to any of the corpus's high-repetition identity fields, per spec.md
// §4.1's "strings should be interned (single-instance storage) for host,
// user, command" and §5's note that the intern table is the one piece of
// process-wide mutable state.
package stringbank

import "sync"

// ID identifies a unique interned string. The zero ID is reserved for the
// empty string: Bank.Intern("") returns it, and every non-empty string gets
// an ID of 1 or more, so zero is useful as an "unset" sentinel.
type ID int32

// Bank compacts a set of often-repeated strings by handing each a unique,
// stable ID. Intern (insertion-or-lookup) and String (lookup) are both
// safe for concurrent use: Intern takes a read-only fast path under RLock
// and only upgrades to a write Lock for strings not yet seen, mirroring
// stringBank.stringIDByString in the teacher.
type Bank struct {
	mu      sync.RWMutex
	table   []string
	idByStr map[string]ID
}

// New returns an empty Bank. The zero ID is pre-reserved so real entries
// start at 1.
func New() *Bank {
	return &Bank{
		table:   []string{""},
		idByStr: map[string]ID{"": 0},
	}
}

// Intern returns the ID for s, assigning a new one if s has not been seen
// before.
func (b *Bank) Intern(s string) ID {
	if id, ok := b.lookup(s); ok {
		return id
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// Someone may have inserted s while we waited for the write lock.
	if id, ok := b.idByStr[s]; ok {
		return id
	}
	id := ID(len(b.table))
	b.table = append(b.table, s)
	b.idByStr[s] = id
	return id
}

func (b *Bank) lookup(s string) (ID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	id, ok := b.idByStr[s]
	return id, ok
}

// String returns the string for id, or "" and false if id is not known to
// this Bank.
func (b *Bank) String(id ID) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if id < 0 || int(id) >= len(b.table) {
		return "", false
	}
	return b.table[id], true
}

// MustString is String, panicking on an unknown ID. Safe to use once an ID
// is known to have come from this Bank (e.g. immediately after Intern).
func (b *Bank) MustString(id ID) string {
	s, ok := b.String(id)
	if !ok {
		panic("stringbank: unknown ID")
	}
	return s
}

// Len returns the number of distinct strings interned, excluding the
// reserved zero entry.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.table) - 1
}
