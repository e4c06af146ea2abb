// Package dedup persists the set of record IDs that have already produced
// a notification, so the same real-world event is never alerted twice.
package dedup

import (
	"context"
	"time"
)

// Store is the persisted alerted-ID set. The set is monotonic: IDs are
// never removed automatically, only by an operator reset.
//
// Load failures must not be fatal to the caller: a store that cannot read
// its backing medium starts empty and warns, since losing dedup state only
// risks re-notifying, never dropping a real alert. Persist failures leave
// the in-memory set intact.
type Store interface {
	// Load reads the persisted set. Missing or corrupt storage yields an
	// empty set with a logged warning, not an error.
	Load(ctx context.Context) error

	// Contains reports whether the ID has already been alerted, including
	// IDs added earlier in the current run.
	Contains(id string) bool

	// Add marks an ID as alerted in memory. Persist writes it out.
	Add(id string)

	// Len returns the number of tracked IDs.
	Len() int

	// Persist writes the set to the backing medium.
	Persist(ctx context.Context) error

	Close() error
}

// Entry is one sent-notification history row, kept alongside the dedup
// set for status output and export.
type Entry struct {
	RecordID       string    `json:"record_id"`
	Category       string    `json:"category"`
	DistanceMeters float64   `json:"distance_meters"`
	Agency         string    `json:"agency,omitempty"`
	Headline       string    `json:"headline,omitempty"`
	NotifiedAt     time.Time `json:"notified_at"`
}

// History records and lists sent notifications. The SQLite and Postgres
// backends implement it; the flat-file backend tracks only the ID set.
type History interface {
	AppendHistory(ctx context.Context, e Entry) error
	ListHistory(ctx context.Context, limit int) ([]Entry, error)
}

// Reset clears persisted state. Implemented by backends that support the
// manual operator reset.
type Resetter interface {
	Reset(ctx context.Context) error
}
