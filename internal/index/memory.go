package index

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/presence/internal/domain"
)

// Cycle is the outcome of one reconciliation cycle.
type Cycle struct {
	ID        string        `json:"id"`
	Trigger   string        `json:"trigger"`
	Result    string        `json:"result"`
	AsOf      string        `json:"asOf,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// MemoryIndex keeps the last persisted roster generation and the last cycle
// outcome in memory for the ops endpoints.
// Generations are replaced wholesale and never mutated after UpdateRoster.
type MemoryIndex struct {
	mu         sync.RWMutex
	roster     *domain.Roster
	services   []domain.ServiceSnapshot
	asOf       string
	lastReload time.Time // Timestamp of last persisted generation
	lastCycle  *Cycle
	cycles     int
}

// NewMemoryIndex creates a new memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		roster: domain.NewRoster(),
	}
}

// UpdateRoster replaces the current generation and the snapshot it came from
func (idx *MemoryIndex) UpdateRoster(roster *domain.Roster, snap *domain.Snapshot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.roster = roster
	idx.services = snap.ServiceList()
	idx.asOf = snap.AsOf
	idx.lastReload = time.Now()
}

// RecordCycle stores the outcome of a finished cycle
func (idx *MemoryIndex) RecordCycle(c Cycle) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.lastCycle = &c
	idx.cycles++
}

// LastCycle returns the most recent cycle outcome
func (idx *MemoryIndex) LastCycle() (Cycle, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.lastCycle == nil {
		return Cycle{}, false
	}
	return *idx.lastCycle, true
}

// Ready reports whether at least one cycle has finished
func (idx *MemoryIndex) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.cycles > 0
}

// CycleCount returns how many cycles have finished
func (idx *MemoryIndex) CycleCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.cycles
}

// GetRecord retrieves an entity record by ID
func (idx *MemoryIndex) GetRecord(id string) (domain.EntityRecord, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rec, ok := idx.roster.Get(id)
	if !ok {
		return domain.EntityRecord{}, false
	}
	return rec.Clone(), true
}

// OnlineIDs returns the online entities of the current generation in roster order
func (idx *MemoryIndex) OnlineIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]string, 0, idx.roster.OnlineCount())
	for _, rec := range idx.roster.Records() {
		if rec.IsOnline {
			ids = append(ids, rec.ID)
		}
	}
	return ids
}

// Services returns the services of the snapshot behind the current generation
func (idx *MemoryIndex) Services() []domain.ServiceSnapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]domain.ServiceSnapshot, len(idx.services))
	copy(out, idx.services)
	return out
}

// Count returns the number of entities in the current generation
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.roster.Len()
}

// OnlineCount returns the number of online entities in the current generation
func (idx *MemoryIndex) OnlineCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.roster.OnlineCount()
}

// AsOf returns the check time of the current generation
func (idx *MemoryIndex) AsOf() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.asOf
}

// GetLastReload returns when the current generation was persisted
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.lastReload
}
