package reconcile

import "github.com/MrSnakeDoc/presence/internal/domain"

// Transitions lists the presence changes from prior to next, in next's order.
func Transitions(prior, next *domain.Roster, at string) []domain.Transition {
	if prior == nil {
		prior = domain.NewRoster()
	}

	var out []domain.Transition
	for _, rec := range next.Records() {
		before, known := prior.Get(rec.ID)

		var kind domain.TransitionKind
		switch {
		case !known:
			kind = domain.TransitionFirstSeen
		case !before.IsOnline && rec.IsOnline:
			kind = domain.TransitionJoined
		case before.IsOnline && !rec.IsOnline:
			kind = domain.TransitionLeft
		case before.IsOnline && rec.IsOnline && before.LastServer != rec.LastServer:
			kind = domain.TransitionMoved
		default:
			continue
		}

		out = append(out, domain.Transition{
			EntityID: rec.ID,
			Kind:     kind,
			Server:   rec.LastServer,
			Services: append([]string(nil), rec.CurrentServices...),
			At:       at,
		})
	}
	return out
}
