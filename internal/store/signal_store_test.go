package store

import (
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []models.StoreEvent
}

func (r *recorder) OnStoreEvent(event models.StoreEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) all() []models.StoreEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.StoreEvent(nil), r.events...)
}

func record(index int, name string) models.SignalRecord {
	return models.SignalRecord{
		Index:  index,
		Name:   name,
		Type:   models.SignalAnalogical,
		Period: time.Second,
		State:  models.StateNeverUpdated,
	}
}

func newStore(observer Observer) *SignalStore {
	return NewSignalStore(1, observer, zerolog.Nop())
}

func TestReplaceAll_SortsByIndex(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(2, "c"), record(0, "a"), record(1, "b")})

	assert.Equal(t, []int{0, 1, 2}, s.Indices())
	names := []string{}
	for _, r := range s.Records() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestReplaceAll_Idempotent(t *testing.T) {
	snapshot := []models.SignalRecord{record(3, "d"), record(1, "b")}

	s := newStore(nil)
	s.ReplaceAll(snapshot)
	first := s.Records()
	s.ReplaceAll(snapshot)

	assert.Equal(t, first, s.Records())
	assert.Equal(t, 2, s.Len())
}

func TestReplaceAll_DiscardsPreviousKeys(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "a"), record(1, "b")})
	s.ReplaceAll([]models.SignalRecord{record(5, "f")})

	assert.Equal(t, []int{5}, s.Indices())
	_, ok := s.Get(0)
	assert.False(t, ok)
}

func TestReplaceAll_Empty(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "a")})
	s.ReplaceAll(nil)

	assert.Zero(t, s.Len())
	assert.Empty(t, s.Visible())
}

func TestReplaceAll_DuplicateIndexKeepsLast(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(1, "first"), record(0, "a"), record(1, "second")})

	assert.Equal(t, 2, s.Len())
	r, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "second", r.Name)
}

func TestReplaceAll_DoesNotAliasInput(t *testing.T) {
	input := []models.SignalRecord{record(1, "b"), record(0, "a")}
	s := newStore(nil)
	s.ReplaceAll(input)

	assert.Equal(t, 1, input[0].Index)
}

func TestApplyDelta_UpdatesMeasurementOnly(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "a")})

	count := s.ApplyDelta([]models.PartialSignal{{Index: 0, Value: 12.5, State: models.StateOK, Timestamp: 99}})
	assert.Equal(t, 1, count.Applied)
	assert.Zero(t, count.Skipped)

	r, _ := s.Get(0)
	assert.Equal(t, 12.5, r.Value)
	assert.Equal(t, models.StateOK, r.State)
	assert.Equal(t, int64(99), r.Timestamp)
	assert.Equal(t, "a", r.Name)
	assert.Equal(t, models.SignalAnalogical, r.Type)
	assert.Equal(t, time.Second, r.Period)
}

func TestApplyDelta_DanglingIsolated(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "a"), record(1, "b")})

	count := s.ApplyDelta([]models.PartialSignal{
		{Index: 0, Value: 1, State: models.StateOK, Timestamp: 1},
		{Index: 7, Value: 2, State: models.StateOK, Timestamp: 1},
		{Index: 1, Value: 3, State: models.StateBad, Timestamp: 1},
	})

	assert.Equal(t, 2, count.Applied)
	assert.Equal(t, 1, count.Skipped)
	assert.Equal(t, []int{7}, count.SkippedIndices)
	assert.Equal(t, []int{0, 1}, s.Indices())

	r, _ := s.Get(1)
	assert.Equal(t, 3.0, r.Value)
}

func TestApplyDelta_LatestWins(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "a")})

	s.ApplyDelta([]models.PartialSignal{
		{Index: 0, Value: 1, State: models.StateOK, Timestamp: 1},
		{Index: 0, Value: 2, State: models.StateBad, Timestamp: 2},
	})

	r, _ := s.Get(0)
	assert.Equal(t, 2.0, r.Value)
	assert.Equal(t, models.StateBad, r.State)
}

func TestApplySingle(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(4, "e")})

	assert.True(t, s.ApplySingle(models.PartialSignal{Index: 4, Value: 8, State: models.StateOK, Timestamp: 5}))
	assert.False(t, s.ApplySingle(models.PartialSignal{Index: 5, Value: 8, State: models.StateOK, Timestamp: 5}))
	assert.Equal(t, 1, s.Len())
}

func TestApply_BeforeSnapshotIsDangling(t *testing.T) {
	s := newStore(nil)
	assert.False(t, s.ApplySingle(models.PartialSignal{Index: 0}))
	assert.Zero(t, s.Len())
}

func TestVisible_DisplayBound(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(150, "hidden"), record(5, "shown"), record(99, "edge"), record(100, "limit")})

	visible := s.Visible()
	require.Len(t, visible, 2)
	assert.Equal(t, 5, visible[0].Index)
	assert.Equal(t, 99, visible[1].Index)

	r, ok := s.Get(150)
	require.True(t, ok)
	assert.Equal(t, "hidden", r.Name)
	assert.Equal(t, 4, s.Len())
}

func TestEvents_Replaced(t *testing.T) {
	rec := &recorder{}
	s := NewSignalStore(3, rec, zerolog.Nop())
	s.ReplaceAll([]models.SignalRecord{record(150, "x"), record(5, "y")})

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventReplaced, events[0].Kind)
	assert.Equal(t, uint64(3), events[0].Generation)
	assert.Equal(t, 2, events[0].Total)
	require.Len(t, events[0].Visible, 1)
	assert.Equal(t, 5, events[0].Visible[0].Index)
}

func TestEvents_UpdatedOnlyForVisible(t *testing.T) {
	rec := &recorder{}
	s := newStore(rec)
	s.ReplaceAll([]models.SignalRecord{record(5, "y"), record(150, "x")})

	s.ApplyDelta([]models.PartialSignal{
		{Index: 5, Value: 1, State: models.StateOK, Timestamp: 1},
		{Index: 150, Value: 2, State: models.StateOK, Timestamp: 1},
		{Index: 6, Value: 3, State: models.StateOK, Timestamp: 1},
	})

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventUpdated, events[1].Kind)
	assert.Equal(t, 5, events[1].Update.Index)
	assert.Equal(t, 1.0, events[1].Update.Value)

	r, _ := s.Get(150)
	assert.Equal(t, 2.0, r.Value)
}

func TestConcurrentReads(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "a"), record(1, "b")})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Visible()
				_, _ = s.Get(1)
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.ApplySingle(models.PartialSignal{Index: 1, Value: float64(j), State: models.StateOK, Timestamp: int64(j)})
	}
	wg.Wait()

	r, _ := s.Get(1)
	assert.Equal(t, 99.0, r.Value)
}

func TestGet_WaitsForReplaceAll(t *testing.T) {
	s := newStore(nil)
	s.ReplaceAll([]models.SignalRecord{record(0, "old")})

	// Hold the lock the way ReplaceAll does while it swaps key sets.
	s.mu.Lock()
	got := make(chan models.SignalRecord, 1)
	go func() {
		r, _ := s.Get(0)
		got <- r
	}()

	select {
	case <-got:
		t.Fatal("Get returned while the key set was being replaced")
	case <-time.After(20 * time.Millisecond):
	}
	s.records.Set(0, record(0, "new"))
	s.mu.Unlock()

	select {
	case r := <-got:
		assert.Equal(t, "new", r.Name)
	case <-time.After(time.Second):
		t.Fatal("Get did not return")
	}
}
