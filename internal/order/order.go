// Package order defines the running order of a single ordering session and
// the append-only history of completed orders that feeds the recommender.
//
// An [Order] is owned by exactly one session and mutated only by it. A
// [History] is the wholesale snapshot of past orders read from a [Store]
// before recommendations are computed. Stores are the one mutable resource
// shared across sessions; every implementation serialises appends behind a
// single writer so that a concurrent Load always observes whole orders.
package order

import (
	"errors"
	"slices"
	"time"

	"github.com/MrWong99/ordervox/internal/vocab"
)

// ErrOrderFrozen is returned by [Order.Append] once the order has been
// finalised.
var ErrOrderFrozen = errors.New("order: order is frozen")

// Order is the ordered sequence of distinct phrases selected during one
// session. The zero value is an empty, open order. Order is not safe for
// concurrent use; each session owns its own.
type Order struct {
	items  []vocab.Phrase
	frozen bool
}

// Append adds every phrase from ps that is not already part of the order,
// preserving first-recognition order. It returns the phrases that were newly
// added.
func (o *Order) Append(ps ...vocab.Phrase) ([]vocab.Phrase, error) {
	if o.frozen {
		return nil, ErrOrderFrozen
	}
	var added []vocab.Phrase
	for _, p := range ps {
		if p == "" || slices.Contains(o.items, p) {
			continue
		}
		o.items = append(o.items, p)
		added = append(added, p)
	}
	return added, nil
}

// Freeze finalises the order. Subsequent calls to Append fail.
func (o *Order) Freeze() { o.frozen = true }

// Frozen reports whether [Order.Freeze] has been called.
func (o *Order) Frozen() bool { return o.frozen }

// Items returns a copy of the order's phrases.
func (o *Order) Items() []vocab.Phrase { return slices.Clone(o.items) }

// Len returns the number of distinct phrases in the order.
func (o *Order) Len() int { return len(o.items) }

// Contains reports whether p is part of the order.
func (o *Order) Contains(p vocab.Phrase) bool { return slices.Contains(o.items, p) }

// Record is one completed order as persisted in a [Store].
type Record struct {
	// SessionID identifies the session that produced the order. May be empty
	// for imported history.
	SessionID string `json:"session_id,omitempty"`

	// Items lists the phrases of the order. Items are stored as plain strings
	// so that history survives menu changes; phrases that have since left the
	// menu are skipped when the co-occurrence matrix is built.
	Items []string `json:"items"`

	// CreatedAt is when the order was completed.
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord converts a finalised order into a [Record].
func NewRecord(sessionID string, o *Order, now time.Time) Record {
	items := make([]string, len(o.items))
	for i, p := range o.items {
		items[i] = string(p)
	}
	return Record{SessionID: sessionID, Items: items, CreatedAt: now.UTC()}
}

// History is an unordered collection of past orders. Each entry is the item
// list of one order.
type History [][]string

// HistoryOf extracts the item lists from records.
func HistoryOf(records []Record) History {
	h := make(History, 0, len(records))
	for _, r := range records {
		h = append(h, slices.Clone(r.Items))
	}
	return h
}
