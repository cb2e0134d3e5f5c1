package domain

// EntityRecord is the durable identity of one entity ever observed.
type EntityRecord struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is the unique key, persisted as "name".
	ID string `json:"name"`

	// ─────────────────────────────
	// Presence (rewritten every cycle)
	// ─────────────────────────────

	IsOnline bool `json:"isOnline"`

	// CurrentServices is empty, never nil, while offline.
	CurrentServices []string `json:"currentServers"`

	// LastServer is the last known primary service. It survives offline periods.
	LastServer string `json:"lastServer"`

	LastSeen string `json:"lastSeen"`

	// FirstSeen is set once at first observation and never overwritten.
	FirstSeen string `json:"firstSeen"`

	// ─────────────────────────────
	// Externally owned attributes
	// ─────────────────────────────

	// Role and Tags are edited by hand; the reconciler only defaults them.
	Role string   `json:"role"`
	Tags []string `json:"tags"`
}

// Clone returns a deep copy of the record.
func (r EntityRecord) Clone() EntityRecord {
	out := r
	out.CurrentServices = cloneStrings(r.CurrentServices)
	out.Tags = cloneStrings(r.Tags)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
