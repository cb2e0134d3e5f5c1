package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/presence/internal/domain"
	"github.com/MrSnakeDoc/presence/internal/index"
	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/metrics"
	"github.com/MrSnakeDoc/presence/internal/reconcile"
	"github.com/MrSnakeDoc/presence/internal/sources/status"
	filestore "github.com/MrSnakeDoc/presence/internal/store/file"
)

const firstReport = `检查时间: 2024-01-01 10:00:00
Alpha (host:1):
服务器版本: 1.20
在线玩家: steve, alex
玩家数: 2/20
`

const secondReport = `检查时间: 2024-01-01 10:01:00
Alpha (host:1):
服务器版本: 1.20
在线玩家: steve
玩家数: 1/20
`

type fixture struct {
	tracker      *Tracker
	index        *index.MemoryIndex
	snapshotPath string
	rosterPath   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.New("error", false)

	snapshotPath := filepath.Join(dir, "server_status.txt")
	rosterPath := filepath.Join(dir, "player_data.json")

	reader := status.NewReader(snapshotPath, 3, time.Millisecond, log)
	source := status.NewSource(reader, status.NewParser(""), log)
	store := filestore.NewStore(rosterPath, log)
	labels := domain.Labels{Role: "player", Tags: []string{"player"}, Unknown: "unknown"}
	idx := index.NewMemoryIndex()

	tracker := NewTracker(source, store, reconcile.New(labels, log), idx, log).
		WithStamp(SnapshotStamp())

	return &fixture{
		tracker:      tracker,
		index:        idx,
		snapshotPath: snapshotPath,
		rosterPath:   rosterPath,
	}
}

func (f *fixture) writeReport(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.snapshotPath, []byte(content), 0o644))
}

func (f *fixture) roster(t *testing.T) *domain.Roster {
	t.Helper()
	data, err := os.ReadFile(f.rosterPath)
	require.NoError(t, err)
	r, skipped, err := filestore.Decode(data)
	require.NoError(t, err)
	require.Zero(t, skipped)
	return r
}

func TestTrackerFirstCycle(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, firstReport)

	result := f.tracker.Run(context.Background(), TriggerStart)
	require.Equal(t, metrics.ResultUpdated, result)

	r := f.roster(t)
	assert.Equal(t, []string{"steve", "alex"}, r.IDs())
	for _, id := range []string{"steve", "alex"} {
		rec, _ := r.Get(id)
		assert.True(t, rec.IsOnline, id)
		assert.Equal(t, []string{"Alpha"}, rec.CurrentServices, id)
		assert.Equal(t, "Alpha", rec.LastServer, id)
		assert.Equal(t, "2024-01-01 10:00:00", rec.FirstSeen, id)
		assert.Equal(t, "2024-01-01 10:00:00", rec.LastSeen, id)
		assert.Equal(t, "player", rec.Role, id)
		assert.Equal(t, []string{"player"}, rec.Tags, id)
	}

	assert.Equal(t, "2024-01-01 10:00:00", f.tracker.LastAsOf())
	assert.Equal(t, 2, f.index.OnlineCount())
	last, ok := f.index.LastCycle()
	require.True(t, ok)
	assert.Equal(t, metrics.ResultUpdated, last.Result)
	assert.NotEmpty(t, last.ID)
}

func TestTrackerEntityGoesOffline(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, firstReport)
	require.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerStart))

	f.writeReport(t, secondReport)
	require.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerTick))

	r := f.roster(t)
	alex, ok := r.Get("alex")
	require.True(t, ok)
	assert.False(t, alex.IsOnline)
	assert.Empty(t, alex.CurrentServices)
	assert.Equal(t, "Alpha", alex.LastServer)
	assert.Equal(t, "2024-01-01 10:00:00", alex.LastSeen)

	steve, _ := r.Get("steve")
	assert.True(t, steve.IsOnline)
	assert.Equal(t, "2024-01-01 10:01:00", steve.LastSeen)
	assert.Equal(t, "2024-01-01 10:00:00", steve.FirstSeen)
}

func TestTrackerSkipsDuplicateReport(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, firstReport)
	require.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerStart))

	before, err := os.ReadFile(f.rosterPath)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.rosterPath, past, past))

	// Same content, then different content carrying the same check time.
	assert.Equal(t, metrics.ResultStale, f.tracker.Run(context.Background(), TriggerTick))
	f.writeReport(t, firstReport+"\nBeta (host:2):\n在线玩家: herobrine\n")
	assert.Equal(t, metrics.ResultStale, f.tracker.Run(context.Background(), TriggerTick))

	after, err := os.ReadFile(f.rosterPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	info, err := os.Stat(f.rosterPath)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past), "roster was rewritten")
}

func TestTrackerMalformedReportLeavesRosterUntouched(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, firstReport)
	require.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerStart))
	before, err := os.ReadFile(f.rosterPath)
	require.NoError(t, err)

	f.writeReport(t, "检查时间: 2024-01-01 10:01:00\nAlpha (host:1):\n玩家数: two/20\n")
	assert.Equal(t, metrics.ResultMalformed, f.tracker.Run(context.Background(), TriggerTick))

	after, err := os.ReadFile(f.rosterPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "2024-01-01 10:00:00", f.tracker.LastAsOf())

	last, _ := f.index.LastCycle()
	assert.Equal(t, metrics.ResultMalformed, last.Result)
	assert.NotEmpty(t, last.Error)
}

func TestTrackerMissingReport(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, metrics.ResultUnavailable, f.tracker.Run(context.Background(), TriggerStart))
	assert.NoFileExists(t, f.rosterPath)
	assert.True(t, f.index.Ready())
}

func TestTrackerRetriesAfterSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.writeReport(t, firstReport)

	// A non-empty directory in place of the roster makes the rename fail.
	require.NoError(t, os.MkdirAll(filepath.Join(f.rosterPath, "blocker"), 0o755))
	assert.Equal(t, metrics.ResultSaveFailed, f.tracker.Run(context.Background(), TriggerStart))
	assert.Empty(t, f.tracker.LastAsOf())
	assert.NoFileExists(t, f.rosterPath+".tmp")

	// The same report is processed again once the store recovers.
	require.NoError(t, os.RemoveAll(f.rosterPath))
	assert.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerTick))
	assert.Equal(t, 2, f.roster(t).Len())
}

type fakeMirror struct {
	err   error
	calls int
}

func (m *fakeMirror) SaveRoster(context.Context, *domain.Roster, *domain.Snapshot) error {
	m.calls++
	return m.err
}

type fakeJournal struct {
	cycleIDs    []string
	transitions []domain.Transition
}

func (j *fakeJournal) Record(_ context.Context, cycleID string, ts []domain.Transition) error {
	j.cycleIDs = append(j.cycleIDs, cycleID)
	j.transitions = append(j.transitions, ts...)
	return nil
}

func TestTrackerPublishesToCollaborators(t *testing.T) {
	f := newFixture(t)
	mirror := &fakeMirror{err: errors.New("connection refused")}
	journal := &fakeJournal{}
	f.tracker.WithMirror(mirror).WithJournal(journal)

	f.writeReport(t, firstReport)
	require.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerStart))
	f.writeReport(t, secondReport)
	require.Equal(t, metrics.ResultUpdated, f.tracker.Run(context.Background(), TriggerTick))

	assert.Equal(t, 2, mirror.calls, "mirror failures must not fail the cycle")
	require.Len(t, journal.cycleIDs, 2)
	assert.NotEqual(t, journal.cycleIDs[0], journal.cycleIDs[1])

	kinds := make([]domain.TransitionKind, 0, len(journal.transitions))
	for _, tr := range journal.transitions {
		kinds = append(kinds, tr.Kind)
	}
	assert.Equal(t, []domain.TransitionKind{
		domain.TransitionFirstSeen,
		domain.TransitionFirstSeen,
		domain.TransitionLeft,
	}, kinds)
}

func TestClockStamp(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	stamp := ClockStamp("2006-01-02 15:04:05", func() time.Time { return at })
	assert.Equal(t, "2024-01-01 10:00:00", stamp(&domain.Snapshot{AsOf: "ignored"}))
}
