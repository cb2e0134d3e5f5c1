package domain

// Roster is one generation of the durable identity store, keyed by entity id.
//
// It keeps insertion order so the persisted document is stable between
// identical cycles. A Roster is built once and then treated as read-only.
type Roster struct {
	order   []string
	records map[string]EntityRecord
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{records: make(map[string]EntityRecord)}
}

// Put inserts or replaces a record. Replacing keeps the original position.
func (r *Roster) Put(rec EntityRecord) {
	if _, ok := r.records[rec.ID]; !ok {
		r.order = append(r.order, rec.ID)
	}
	r.records[rec.ID] = rec
}

// Get returns the record for id.
func (r *Roster) Get(id string) (EntityRecord, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

// IDs returns ids in insertion order.
func (r *Roster) IDs() []string {
	return append([]string(nil), r.order...)
}

// Records returns the records in insertion order.
func (r *Roster) Records() []EntityRecord {
	out := make([]EntityRecord, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out
}

// Len returns the number of records.
func (r *Roster) Len() int {
	return len(r.order)
}

// OnlineCount returns the number of records currently online.
func (r *Roster) OnlineCount() int {
	n := 0
	for _, rec := range r.records {
		if rec.IsOnline {
			n++
		}
	}
	return n
}
