package usage

import (
	"context"
	"sync"
)

// Ledger accumulates usage records for a single run. It is safe for
// concurrent use; the tax and sentiment branches append at the same time.
type Ledger struct {
	mu      sync.Mutex
	records []Record
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends r to the ledger.
func (l *Ledger) Record(r Record) {
	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()
}

// Records returns a snapshot of the records appended so far.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Clear drops all records.
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}

type ledgerKey struct{}

// WithLedger returns a context carrying l. Provider calls made with the
// returned context append their usage to l.
func WithLedger(ctx context.Context, l *Ledger) context.Context {
	return context.WithValue(ctx, ledgerKey{}, l)
}

// FromContext returns the ledger carried by ctx, or nil.
func FromContext(ctx context.Context) *Ledger {
	l, _ := ctx.Value(ledgerKey{}).(*Ledger)
	return l
}

// RecordTo appends r to the ledger in ctx, if any. It reports whether a
// ledger was present.
func RecordTo(ctx context.Context, r Record) bool {
	l := FromContext(ctx)
	if l == nil {
		return false
	}
	l.Record(r)
	return true
}
