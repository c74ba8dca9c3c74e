package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/GoIngest/internal/config"
	"github.com/akolanti/GoIngest/internal/domain/docModel"
	"github.com/akolanti/GoIngest/internal/domain/ragErrors"
	"github.com/akolanti/GoIngest/internal/rag/vectorDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdmin struct {
	collections []docModel.Collection
	stats       map[string]vectorDB.Stats
	compactFunc func(ctx context.Context, id string) (int, error)
	compacted   []string
}

func (m *mockAdmin) Collections(ctx context.Context) ([]docModel.Collection, error) {
	return m.collections, nil
}

func (m *mockAdmin) CollectionStats(ctx context.Context, id string) (vectorDB.Stats, error) {
	s, ok := m.stats[id]
	if !ok {
		return vectorDB.Stats{}, ragErrors.NewVectorStoreError(ragErrors.CollectionNotFound, "missing "+id, nil)
	}
	return s, nil
}

func (m *mockAdmin) Compact(ctx context.Context, id string) (int, error) {
	m.compacted = append(m.compacted, id)
	if m.compactFunc != nil {
		return m.compactFunc(ctx, id)
	}
	return m.stats[id].Tombstones, nil
}

type persistingStore struct {
	vectorDB.Store
	persisted int32
	err       error
}

func (p *persistingStore) Persist(ctx context.Context) error {
	atomic.AddInt32(&p.persisted, 1)
	return p.err
}

type plainStore struct {
	vectorDB.Store
}

type stores map[string]vectorDB.Store

func (s stores) Each(fn func(id string, s vectorDB.Store)) {
	for id, st := range s {
		fn(id, st)
	}
}

func TestCompactJobHonoursRatio(t *testing.T) {
	admin := &mockAdmin{
		collections: []docModel.Collection{
			{Id: "dirty", IsActive: true},
			{Id: "clean", IsActive: true},
			{Id: "empty", IsActive: true},
			{Id: "inactive", IsActive: false},
		},
		stats: map[string]vectorDB.Stats{
			"dirty":    {Count: 6, Tombstones: 4},
			"clean":    {Count: 95, Tombstones: 5},
			"empty":    {Count: 10},
			"inactive": {Count: 1, Tombstones: 9},
		},
	}

	err := (&CompactJob{Admin: admin, Ratio: 0.2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"dirty"}, admin.compacted)
}

func TestCompactJobSkipsUnsupportedAndCollectsErrors(t *testing.T) {
	admin := &mockAdmin{
		collections: []docModel.Collection{
			{Id: "remote", IsActive: true},
			{Id: "broken", IsActive: true},
			{Id: "gone", IsActive: true},
		},
		stats: map[string]vectorDB.Stats{
			"remote": {Count: 1, Tombstones: 1},
			"broken": {Count: 1, Tombstones: 1},
		},
		compactFunc: func(ctx context.Context, id string) (int, error) {
			if id == "remote" {
				return 0, ragErrors.NewVectorStoreError(ragErrors.NotImplemented, "compaction is not supported", nil)
			}
			return 0, errors.New("disk full")
		},
	}

	err := (&CompactJob{Admin: admin}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.True(t, ragErrors.HasCode(err, ragErrors.CollectionNotFound))
	assert.NotContains(t, err.Error(), "compaction is not supported")
	assert.ElementsMatch(t, []string{"remote", "broken"}, admin.compacted)
}

func TestPersistJob(t *testing.T) {
	ok := &persistingStore{}
	failing := &persistingStore{err: errors.New("read-only")}
	job := &PersistJob{Stores: stores{"faiss": ok, "broken": failing, "qdrant": &plainStore{}}}

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
	assert.EqualValues(t, 1, atomic.LoadInt32(&ok.persisted))
	assert.EqualValues(t, 1, atomic.LoadInt32(&failing.persisted))
}

type countingJob struct {
	runs  int32
	block chan struct{}
}

func (c *countingJob) Name() string { return "counting" }

func (c *countingJob) Run(ctx context.Context) error {
	atomic.AddInt32(&c.runs, 1)
	<-c.block
	return nil
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler()
	job := &countingJob{block: make(chan struct{})}
	run := s.wrap(job)

	go run()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) == 1 }, time.Second, 5*time.Millisecond)
	run()
	assert.EqualValues(t, 1, atomic.LoadInt32(&job.runs))

	close(job.block)
}

func TestStart(t *testing.T) {
	s, err := Start(context.Background(), config.MaintenanceSettings{Enabled: false}, &mockAdmin{}, stores{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Start(context.Background(), config.MaintenanceSettings{Enabled: true, CompactSchedule: "not a schedule", PersistSchedule: "*/5 * * * *"}, &mockAdmin{}, stores{})
	assert.Error(t, err)

	s, err = Start(context.Background(), config.MaintenanceSettings{Enabled: true, CompactSchedule: "*/30 * * * *", PersistSchedule: "*/5 * * * *"}, &mockAdmin{}, stores{})
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Len(t, s.entries, 2)
	s.Stop()
}
