package store

import (
	"cmp"
	"slices"
	"sync"

	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// Observer receives store change events. It is called synchronously from
// the goroutine that mutates the store and must not block.
type Observer interface {
	OnStoreEvent(event models.StoreEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event models.StoreEvent)

// OnStoreEvent calls f(event).
func (f ObserverFunc) OnStoreEvent(event models.StoreEvent) { f(event) }

// SignalStore is the indexed collection of signal records for one channel
// generation. Its key set is defined by the last full snapshot; updates only
// mutate existing records.
//
// Mutations must come from a single goroutine. Reads are safe from any
// goroutine.
type SignalStore struct {
	generation uint64
	records    cmap.ConcurrentMap[int, models.SignalRecord]

	mu    sync.RWMutex
	order []int // sorted indices of records

	observer Observer
	logger   zerolog.Logger
}

// NewSignalStore creates an empty store. observer may be nil. logger is
// expected to carry the generation.
func NewSignalStore(generation uint64, observer Observer, logger zerolog.Logger) *SignalStore {
	return &SignalStore{
		generation: generation,
		records:    cmap.NewWithCustomShardingFunction[int, models.SignalRecord](shardIndex),
		observer:   observer,
		logger:     logger,
	}
}

func shardIndex(index int) uint32 {
	return uint32(index)
}

// ReplaceAll replaces the whole key set with records, sorted by index.
func (s *SignalStore) ReplaceAll(records []models.SignalRecord) {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.SignalRecord) int {
		return cmp.Compare(a.Index, b.Index)
	})

	// The later of two records sharing an index wins, matching map semantics.
	deduped := sorted[:0]
	for _, r := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Index == r.Index {
			s.logger.Warn().Int("index", r.Index).Msg("Duplicate index in full signal list, keeping the last one")
			deduped[n-1] = r
			continue
		}
		deduped = append(deduped, r)
	}

	next := make(map[int]models.SignalRecord, len(deduped))
	order := make([]int, len(deduped))
	for i, r := range deduped {
		next[r.Index] = r
		order[i] = r.Index
	}

	s.mu.Lock()
	s.records.MSet(next)
	for _, index := range s.order {
		if _, keep := next[index]; !keep {
			s.records.Remove(index)
		}
	}
	s.order = order
	s.mu.Unlock()

	s.logger.Debug().Int("total", len(order)).Msg("Signal store replaced")

	s.emit(models.StoreEvent{
		Kind:    models.EventReplaced,
		Visible: visibleOf(deduped),
		Total:   len(order),
	})
}

// ApplyDelta applies every update that names an existing record. Updates
// naming an unknown index are skipped and reported; they never add records.
func (s *SignalStore) ApplyDelta(updates []models.PartialSignal) models.AppliedCount {
	var count models.AppliedCount
	for _, u := range updates {
		if s.apply(u) {
			count.Applied++
			continue
		}
		count.Skipped++
		count.SkippedIndices = append(count.SkippedIndices, u.Index)
	}

	if count.Skipped > 0 {
		s.logger.Warn().
			Int("applied", count.Applied).
			Int("skipped", count.Skipped).
			Ints("indices", count.SkippedIndices).
			Msg("Delta referenced signals missing from the store")
	}
	return count
}

// ApplySingle applies one update. It reports false for a dangling reference.
func (s *SignalStore) ApplySingle(update models.PartialSignal) bool {
	if s.apply(update) {
		return true
	}
	s.logger.Warn().Int("index", update.Index).Msg("Update referenced a signal missing from the store")
	return false
}

func (s *SignalStore) apply(u models.PartialSignal) bool {
	record, ok := s.records.Get(u.Index)
	if !ok {
		return false
	}
	record.Value = u.Value
	record.State = u.State
	record.Timestamp = u.Timestamp
	s.records.Set(u.Index, record)

	if isVisible(u.Index) {
		s.emit(models.StoreEvent{
			Kind:   models.EventUpdated,
			Update: u,
			Total:  s.Len(),
		})
	}
	return true
}

// Get returns the record stored at index, visible or not. It never observes
// a half-applied ReplaceAll.
func (s *SignalStore) Get(index int) (models.SignalRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Get(index)
}

// Len returns the number of records.
func (s *SignalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Indices returns the stored indices in ascending order.
func (s *SignalStore) Indices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Records returns every record in index order.
func (s *SignalStore) Records() []models.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SignalRecord, 0, len(s.order))
	for _, index := range s.order {
		if r, ok := s.records.Get(index); ok {
			out = append(out, r)
		}
	}
	return out
}

// Visible returns the records the presentation layer may render, in index order.
func (s *SignalStore) Visible() []models.SignalRecord {
	return visibleOf(s.Records())
}

// Generation returns the channel generation this store belongs to.
func (s *SignalStore) Generation() uint64 {
	return s.generation
}

func (s *SignalStore) emit(event models.StoreEvent) {
	if s.observer == nil {
		return
	}
	event.Generation = s.generation
	s.observer.OnStoreEvent(event)
}

func isVisible(index int) bool {
	return index < constants.DisplayIndexLimit
}

// visibleOf filters records already sorted by index.
func visibleOf(sorted []models.SignalRecord) []models.SignalRecord {
	out := make([]models.SignalRecord, 0, len(sorted))
	for _, r := range sorted {
		if !isVisible(r.Index) {
			break
		}
		out = append(out, r)
	}
	return out
}
