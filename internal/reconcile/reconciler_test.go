package reconcile

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/logger"
)

var testLabels = domain.Labels{Role: "player", Tags: []string{"player"}, Unknown: "unknown"}

func newTestReconciler() *Reconciler {
	return New(testLabels, logger.New("error", false))
}

func presenceOf(pairs ...string) *domain.PresenceIndex {
	p := domain.NewPresenceIndex()
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Add(pairs[i], pairs[i+1])
	}
	return p
}

func TestReconcileFirstCycle(t *testing.T) {
	const now = "2024-01-01 10:00:00"
	next := newTestReconciler().Reconcile(domain.NewRoster(), presenceOf("steve", "Alpha", "alex", "Alpha"), now)

	require.Equal(t, []string{"steve", "alex"}, next.IDs())
	for _, id := range next.IDs() {
		rec, _ := next.Get(id)
		assert.Equal(t, domain.EntityRecord{
			ID:              id,
			IsOnline:        true,
			CurrentServices: []string{"Alpha"},
			LastServer:      "Alpha",
			LastSeen:        now,
			FirstSeen:       now,
			Role:            "player",
			Tags:            []string{"player"},
		}, rec)
	}
}

func TestReconcileEntityGoesOffline(t *testing.T) {
	r := newTestReconciler()
	first := r.Reconcile(nil, presenceOf("steve", "Alpha", "alex", "Alpha"), "2024-01-01 10:00:00")
	second := r.Reconcile(first, presenceOf("steve", "Alpha"), "2024-01-01 10:01:01")

	alex, ok := second.Get("alex")
	require.True(t, ok)
	assert.False(t, alex.IsOnline)
	assert.Equal(t, []string{}, alex.CurrentServices)
	assert.Equal(t, "Alpha", alex.LastServer)
	assert.Equal(t, "2024-01-01 10:00:00", alex.LastSeen)
	assert.Equal(t, "2024-01-01 10:00:00", alex.FirstSeen)

	steve, _ := second.Get("steve")
	assert.True(t, steve.IsOnline)
	assert.Equal(t, "2024-01-01 10:01:01", steve.LastSeen)
	assert.Equal(t, "2024-01-01 10:00:00", steve.FirstSeen)
}

func TestReconcilePrimaryServiceIsFirstListed(t *testing.T) {
	next := newTestReconciler().Reconcile(nil, presenceOf("steve", "Beta", "steve", "Alpha"), "t1")
	steve, _ := next.Get("steve")
	assert.Equal(t, []string{"Beta", "Alpha"}, steve.CurrentServices)
	assert.Equal(t, "Beta", steve.LastServer)
}

func TestReconcileKeepsExternalAttributes(t *testing.T) {
	prior := domain.NewRoster()
	prior.Put(domain.EntityRecord{ID: "op", FirstSeen: "t0", LastSeen: "t0", LastServer: "Alpha", Role: "admin", Tags: []string{"staff", "builder"}})
	prior.Put(domain.EntityRecord{ID: "quiet", FirstSeen: "t0", LastSeen: "t0", Role: "guest", Tags: []string{}})

	next := newTestReconciler().Reconcile(prior, presenceOf("op", "Beta"), "t1")

	op, _ := next.Get("op")
	assert.Equal(t, "admin", op.Role)
	assert.Equal(t, []string{"staff", "builder"}, op.Tags)
	assert.Equal(t, "Beta", op.LastServer)

	quiet, _ := next.Get("quiet")
	assert.Equal(t, "guest", quiet.Role)
	assert.Equal(t, []string{}, quiet.Tags, "explicit empty tags are kept")
}

func TestReconcileRepairsHandEditedRecords(t *testing.T) {
	prior := domain.NewRoster()
	prior.Put(domain.EntityRecord{ID: "broken"})

	next := newTestReconciler().Reconcile(prior, domain.NewPresenceIndex(), "t1")
	rec, _ := next.Get("broken")
	assert.Equal(t, "unknown", rec.LastSeen)
	assert.Equal(t, "unknown", rec.FirstSeen)
	assert.Equal(t, "player", rec.Role)
	assert.Equal(t, []string{"player"}, rec.Tags)
	assert.Equal(t, "", rec.LastServer)
}

func TestReconcileDoesNotMutatePrior(t *testing.T) {
	prior := domain.NewRoster()
	prior.Put(domain.EntityRecord{ID: "a", IsOnline: true, CurrentServices: []string{"Alpha"}, LastServer: "Alpha", FirstSeen: "t0", LastSeen: "t0", Role: "player", Tags: []string{"player"}})

	_ = newTestReconciler().Reconcile(prior, domain.NewPresenceIndex(), "t1")

	a, _ := prior.Get("a")
	assert.True(t, a.IsOnline)
	assert.Equal(t, []string{"Alpha"}, a.CurrentServices)
}

// randomRoster builds a prior roster over a small id space so that presence
// and prior overlap often.
func randomRoster(rng *rand.Rand) *domain.Roster {
	r := domain.NewRoster()
	for i := 0; i < 8; i++ {
		if rng.Intn(2) == 0 {
			continue
		}
		id := fmt.Sprintf("e%d", i)
		online := rng.Intn(2) == 0
		rec := domain.EntityRecord{
			ID:              id,
			IsOnline:        online,
			CurrentServices: []string{},
			LastServer:      fmt.Sprintf("S%d", rng.Intn(3)),
			LastSeen:        fmt.Sprintf("seen-%d", i),
			FirstSeen:       fmt.Sprintf("first-%d", i),
			Role:            fmt.Sprintf("role-%d", i),
			Tags:            []string{fmt.Sprintf("tag-%d", i)},
		}
		if online {
			rec.CurrentServices = []string{rec.LastServer}
		}
		r.Put(rec)
	}
	return r
}

func randomPresence(rng *rand.Rand) *domain.PresenceIndex {
	p := domain.NewPresenceIndex()
	for i := 0; i < 8; i++ {
		if rng.Intn(2) == 0 {
			continue
		}
		p.Add(fmt.Sprintf("e%d", i), fmt.Sprintf("S%d", rng.Intn(3)))
	}
	return p
}

func TestReconcileProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	r := New(testLabels, logger.Nop())

	for iter := 0; iter < 200; iter++ {
		prior := randomRoster(rng)
		presence := randomPresence(rng)
		next := r.Reconcile(prior, presence, "later")

		for _, id := range prior.IDs() {
			before, _ := prior.Get(id)
			after, ok := next.Get(id)
			require.True(t, ok, "id %s vanished", id)
			assert.Equal(t, before.FirstSeen, after.FirstSeen, "firstSeen of %s changed", id)

			if !presence.Has(id) {
				want := before.Clone()
				want.IsOnline = false
				want.CurrentServices = []string{}
				assert.Equal(t, want, after, "offline carry-forward of %s", id)
			}
		}

		for _, id := range presence.IDs() {
			after, _ := next.Get(id)
			services, _ := presence.Services(id)
			assert.True(t, after.IsOnline)
			assert.Equal(t, services, after.CurrentServices)
			assert.Equal(t, services[0], after.LastServer)
			assert.Equal(t, "later", after.LastSeen)
		}

		// Re-running on identical inputs is idempotent.
		assert.Equal(t, next.Records(), r.Reconcile(prior, presence, "later").Records())
	}
}

func TestTransitions(t *testing.T) {
	prior := domain.NewRoster()
	prior.Put(domain.EntityRecord{ID: "leaver", IsOnline: true, LastServer: "Alpha", CurrentServices: []string{"Alpha"}})
	prior.Put(domain.EntityRecord{ID: "returner", LastServer: "Alpha", CurrentServices: []string{}})
	prior.Put(domain.EntityRecord{ID: "mover", IsOnline: true, LastServer: "Alpha", CurrentServices: []string{"Alpha"}})
	prior.Put(domain.EntityRecord{ID: "stayer", IsOnline: true, LastServer: "Alpha", CurrentServices: []string{"Alpha"}})

	presence := presenceOf("returner", "Beta", "mover", "Beta", "stayer", "Alpha", "newbie", "Alpha")
	next := newTestReconciler().Reconcile(prior, presence, "t1")

	got := map[string]domain.TransitionKind{}
	for _, tr := range Transitions(prior, next, "t1") {
		got[tr.EntityID] = tr.Kind
		assert.Equal(t, "t1", tr.At)
	}

	assert.Equal(t, map[string]domain.TransitionKind{
		"returner": domain.TransitionJoined,
		"mover":    domain.TransitionMoved,
		"newbie":   domain.TransitionFirstSeen,
		"leaver":   domain.TransitionLeft,
	}, got)
}
