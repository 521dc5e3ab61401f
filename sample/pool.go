package sample

import "github.com/hpctrace/clustertrace/stringbank"

// Pool owns the flat vector of ingested LogEntry records together with the
// stringbank.Bank their Host/User/Command fields are interned into. This
// mirrors the teacher's Collection, which owns both a stringBank and the
// flat per-thread record vectors it resolves identities against
// (analysis/sched_collection.go).
//
// The pipeline stages downstream of ingest (reconstruct, merge, jobs,
// uptime) operate on a *Pool so it can resolve Host/User/Command back to
// strings when needed (hostname compression, zombie/defunct filters,
// formatted reports) without re-interning or copying record data.
type Pool struct {
	Bank    *stringbank.Bank
	Entries []*LogEntry
}

// NewPool returns an empty Pool with a fresh Bank.
func NewPool() *Pool {
	return &Pool{Bank: stringbank.New()}
}

// Host resolves e.Host through p's Bank.
func (p *Pool) Host(e *LogEntry) string { return p.Bank.MustString(e.Host) }

// User resolves e.User through p's Bank.
func (p *Pool) User(e *LogEntry) string { return p.Bank.MustString(e.User) }

// Command resolves e.Command through p's Bank.
func (p *Pool) Command(e *LogEntry) string { return p.Bank.MustString(e.Command) }

// Add interns host/user/command into p's Bank and appends e to p's Entries.
// host/user/command must be the strings e.Host/e.User/e.Command are meant to
// resolve to; Add sets those fields itself.
func (p *Pool) Add(e *LogEntry, host, user, command string) {
	e.Host = p.Bank.Intern(host)
	e.User = p.Bank.Intern(user)
	e.Command = p.Bank.Intern(command)
	p.Entries = append(p.Entries, e)
}

// Stream is a non-empty, time-ordered run of LogEntry belonging to the same
// sample stream (spec.md §3). Reconstruct, merge, and fold all operate on
// Streams built from a Pool's Entries; a Stream never owns a Bank of its
// own, since its entries' Host/User/Command IDs remain valid against the
// Pool they were built from.
type Stream []*LogEntry

// Key returns the stream key shared by every entry in s. Panics if s is
// empty; callers are expected to only construct non-empty Streams.
func (s Stream) Key() Key { return KeyOf(s[0]) }

// First returns the earliest entry.
func (s Stream) First() *LogEntry { return s[0] }

// Last returns the latest entry.
func (s Stream) Last() *LogEntry { return s[len(s)-1] }
