package reconcile

import (
	"strings"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/logger"
)

// Reconciler merges a presence index into the previous roster generation.
type Reconciler struct {
	labels domain.Labels
	logger logger.Logger
}

// New creates a reconciler. labels supply the defaults for new records.
func New(labels domain.Labels, log logger.Logger) *Reconciler {
	return &Reconciler{
		labels: labels,
		logger: log,
	}
}

// Reconcile builds the next roster generation.
//
// Entities in presence come first, in presence order, followed by every
// prior entity that is now offline, in prior order. No prior id is dropped.
// prior is not modified.
func (r *Reconciler) Reconcile(prior *domain.Roster, presence *domain.PresenceIndex, now string) *domain.Roster {
	if prior == nil {
		prior = domain.NewRoster()
	}
	if presence == nil {
		presence = domain.NewPresenceIndex()
	}

	next := domain.NewRoster()

	for _, id := range presence.IDs() {
		services, _ := presence.Services(id)
		existing, known := prior.Get(id)
		if !known {
			r.logger.Info("new entity",
				logger.String("entity", id),
				logger.Strings("services", services))
		}
		next.Put(r.online(id, existing, known, services, now))
		r.logger.Debug("entity online",
			logger.String("entity", id),
			logger.String("services", strings.Join(services, ", ")))
	}

	offline := lo.Filter(prior.IDs(), func(id string, _ int) bool {
		return !presence.Has(id)
	})
	for _, id := range offline {
		existing, _ := prior.Get(id)
		next.Put(r.offline(existing))
	}

	return next
}

func (r *Reconciler) online(id string, prior domain.EntityRecord, known bool, services []string, now string) domain.EntityRecord {
	rec := domain.EntityRecord{
		ID:              id,
		IsOnline:        true,
		CurrentServices: services,
		LastServer:      services[0],
		LastSeen:        now,
		FirstSeen:       now,
		Role:            r.labels.Role,
		Tags:            r.labels.DefaultTags(),
	}
	if !known {
		return rec
	}
	if prior.FirstSeen != "" {
		rec.FirstSeen = prior.FirstSeen
	}
	r.keepAttributes(&rec, prior)
	return rec
}

func (r *Reconciler) offline(prior domain.EntityRecord) domain.EntityRecord {
	rec := prior.Clone()
	rec.IsOnline = false
	rec.CurrentServices = []string{}
	if rec.LastSeen == "" {
		rec.LastSeen = r.labels.Unknown
	}
	if rec.FirstSeen == "" {
		rec.FirstSeen = r.labels.Unknown
	}
	rec.Role = r.labels.Role
	rec.Tags = r.labels.DefaultTags()
	r.keepAttributes(&rec, prior)
	return rec
}

// keepAttributes copies the externally owned role and tags from prior.
// Only a missing role or tag list falls back to the defaults; an explicit
// empty tag list is kept.
func (r *Reconciler) keepAttributes(rec *domain.EntityRecord, prior domain.EntityRecord) {
	if prior.Role != "" {
		rec.Role = prior.Role
	}
	if prior.Tags != nil {
		rec.Tags = append(make([]string, 0, len(prior.Tags)), prior.Tags...)
	}
}
