package domain

// TransitionKind names a presence change between two roster generations.
type TransitionKind string

const (
	TransitionFirstSeen TransitionKind = "first_seen"
	TransitionJoined    TransitionKind = "joined"
	TransitionLeft      TransitionKind = "left"
	TransitionMoved     TransitionKind = "moved"
)

// Transition is one entry of the presence history.
type Transition struct {
	EntityID string         `json:"entity"`
	Kind     TransitionKind `json:"kind"`
	// Server is the primary service after the change, or the last one for "left".
	Server   string   `json:"server"`
	Services []string `json:"services"`
	At       string   `json:"at"`
}
