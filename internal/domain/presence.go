package domain

// PresenceIndex maps an entity to the services currently hosting it.
//
// Service order follows parse order; the first service is the entity's
// primary service for the cycle. Entity order is first-appearance order.
type PresenceIndex struct {
	order    []string
	services map[string][]string
}

// NewPresenceIndex creates an empty index.
func NewPresenceIndex() *PresenceIndex {
	return &PresenceIndex{services: make(map[string][]string)}
}

// Add records that id is present on service. Repeated pairs are ignored.
func (p *PresenceIndex) Add(id, service string) {
	list, ok := p.services[id]
	if !ok {
		p.order = append(p.order, id)
	}
	for _, s := range list {
		if s == service {
			return
		}
	}
	p.services[id] = append(list, service)
}

// Services returns a copy of the services hosting id.
func (p *PresenceIndex) Services(id string) ([]string, bool) {
	list, ok := p.services[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), list...), true
}

// Has reports whether id is online anywhere.
func (p *PresenceIndex) Has(id string) bool {
	_, ok := p.services[id]
	return ok
}

// IDs returns entity ids in first-appearance order.
func (p *PresenceIndex) IDs() []string {
	return append([]string(nil), p.order...)
}

// Len returns the number of distinct online entities.
func (p *PresenceIndex) Len() int {
	return len(p.order)
}
