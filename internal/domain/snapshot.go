package domain

// ServiceSnapshot is one service block of a status report.
//
// It is rebuilt from scratch every cycle and never persisted.
type ServiceSnapshot struct {
	// Name is the human label, everything before the first " (" of the header.
	Name string `json:"name"`

	// Address is the host:port between the parentheses of the header.
	Address string `json:"address"`

	// Version is the reported server version, empty when unknown.
	Version string `json:"version"`

	// OnlineEntities is the sampled roster in report order.
	// The producer may cap the sample, so its length can differ from CurrentCount.
	OnlineEntities []string `json:"onlineEntities"`

	CurrentCount int `json:"currentCount"`
	Capacity     int `json:"capacity"`

	// Reachable is set once a version line was seen for the block.
	Reachable bool `json:"reachable"`

	// Status and Error carry the producer's diagnostics for unreachable services.
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the parsed form of one status report.
type Snapshot struct {
	// AsOf is the report's own timestamp, used only as a de-duplication token.
	AsOf string

	// Services maps service name to its block. Order keeps report order.
	Services map[string]ServiceSnapshot
	Order    []string

	Presence *PresenceIndex
}

// ServiceList returns the services in report order.
func (s *Snapshot) ServiceList() []ServiceSnapshot {
	out := make([]ServiceSnapshot, 0, len(s.Order))
	for _, name := range s.Order {
		out = append(out, s.Services[name])
	}
	return out
}
