package core

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// TriggerSet is the concurrent event-to-action dispatch engine. It shards
// triggers by event category into four maps, keeps a reverse index from
// TriggerId to the shard that owns it, and buffers matches produced by
// Handle* calls for a later, explicit execution pass.
//
// Concurrency model: each shard is guarded by its own RWMutex so reads
// (iteration during Handle*) don't block each other; insert/remove take
// the owning shard's lock plus the ids index's lock within one logical
// operation, so ids and shards never observe a mismatched state from the
// outside. The match buffer has its own RWMutex; execution takes the write
// lock only long enough to snapshot-and-clear it, then works off the
// snapshot without holding any lock, so a Handle* call issued from inside
// a trigger body (e.g. ExecuteTrigger) cannot deadlock against execution.
type TriggerSet struct {
	dataMu     sync.RWMutex
	data       map[TriggerId]LoadedAction

	pipelineMu sync.RWMutex
	pipeline   map[TriggerId]LoadedAction

	timeMu     sync.RWMutex
	time       map[TriggerId]LoadedAction

	byCallMu   sync.RWMutex
	byCall     map[TriggerId]LoadedAction

	idsMu sync.RWMutex
	ids   map[TriggerId]EventType

	matchMu sync.RWMutex
	matched []matchedEntry

	engine    *WasmEngine
	logger    *log.Logger
	completed func(TriggerCompletedEvent)
}

type matchedEntry struct {
	event Event
	id    TriggerId
}

// NewTriggerSet constructs an empty TriggerSet sharing the given WASM
// engine handle.
func NewTriggerSet(engine *WasmEngine) *TriggerSet {
	return &TriggerSet{
		data:     make(map[TriggerId]LoadedAction),
		pipeline: make(map[TriggerId]LoadedAction),
		time:     make(map[TriggerId]LoadedAction),
		byCall:   make(map[TriggerId]LoadedAction),
		ids:      make(map[TriggerId]EventType),
		engine:   engine,
		logger:   Logger,
	}
}

// SetLogger replaces the set's logger; nil restores the package default.
func (s *TriggerSet) SetLogger(l *log.Logger) {
	if l == nil {
		l = Logger
	}
	s.logger = l
}

// OnTriggerCompleted registers an observer for trigger-completion events:
// InspectMatched emits one per executed entry, successful or not. Observers
// typically forward into an event stream after filtering with
// NewTriggerCompletedFilter. The callback runs on the executing goroutine
// and must not block.
func (s *TriggerSet) OnTriggerCompleted(fn func(TriggerCompletedEvent)) {
	s.completed = fn
}

func (s *TriggerSet) notifyCompleted(id TriggerId, succeeded bool) {
	if s.completed == nil {
		return
	}
	s.completed(TriggerCompletedEvent{TriggerId: id, Succeeded: succeeded})
}

func (s *TriggerSet) shard(ty EventType) (*sync.RWMutex, map[TriggerId]LoadedAction) {
	switch ty {
	case EventTypeData:
		return &s.dataMu, s.data
	case EventTypePipeline:
		return &s.pipelineMu, s.pipeline
	case EventTypeTime:
		return &s.timeMu, s.time
	case EventTypeExecuteTrigger:
		return &s.byCallMu, s.byCall
	default:
		panic(fmt.Sprintf("%v: unknown event type %d", ErrStructural, ty))
	}
}

// Contains reports whether id is present in any shard.
func (s *TriggerSet) Contains(id TriggerId) bool {
	s.idsMu.RLock()
	defer s.idsMu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *TriggerSet) addTo(id TriggerId, trigger Trigger, ty EventType) (bool, error) {
	if s.Contains(id) {
		return false, nil
	}
	loaded, err := loadAction(trigger.Action, s.engine)
	if err != nil {
		return false, err
	}

	mu, m := s.shard(ty)
	s.idsMu.Lock()
	mu.Lock()
	if _, exists := s.ids[id]; exists {
		mu.Unlock()
		s.idsMu.Unlock()
		return false, nil
	}
	m[id] = loaded
	s.ids[id] = ty
	mu.Unlock()
	s.idsMu.Unlock()
	return true, nil
}

// AddDataTrigger inserts a data-event trigger. Returns false without error
// if id already exists in any shard.
func (s *TriggerSet) AddDataTrigger(t Trigger) (bool, error) {
	return s.addTo(t.Id, t, EventTypeData)
}

// AddPipelineTrigger inserts a pipeline-event trigger.
func (s *TriggerSet) AddPipelineTrigger(t Trigger) (bool, error) {
	return s.addTo(t.Id, t, EventTypePipeline)
}

// AddTimeTrigger inserts a time-event trigger.
func (s *TriggerSet) AddTimeTrigger(t Trigger) (bool, error) {
	return s.addTo(t.Id, t, EventTypeTime)
}

// AddByCallTrigger inserts an ExecuteTrigger-event trigger.
func (s *TriggerSet) AddByCallTrigger(t Trigger) (bool, error) {
	return s.addTo(t.Id, t, EventTypeExecuteTrigger)
}

// Remove deletes the trigger identified by id from both the ids index and
// its owning shard, atomically with respect to other Remove/add calls.
// Returns false if id was not present.
func (s *TriggerSet) Remove(id TriggerId) bool {
	s.idsMu.Lock()
	defer s.idsMu.Unlock()
	ty, ok := s.ids[id]
	if !ok {
		return false
	}

	mu, m := s.shard(ty)
	mu.Lock()
	delete(m, id)
	mu.Unlock()
	delete(s.ids, id)
	return true
}

// InspectById applies f to the typed action for id, returning its result
// and true, or the zero value and false if id is absent.
func (s *TriggerSet) InspectById(id TriggerId, f func(LoadedAction) any) (any, bool) {
	s.idsMu.RLock()
	ty, ok := s.ids[id]
	s.idsMu.RUnlock()
	if !ok {
		return nil, false
	}
	mu, m := s.shard(ty)
	mu.RLock()
	defer mu.RUnlock()
	a, ok := m[id]
	if !ok {
		panic(fmt.Sprintf("%v: ids has %s but owning shard does not", ErrStructural, id))
	}
	return f(a), true
}

// InspectByDomainId applies f to every trigger whose TriggerId carries the
// given domain, in unspecified order across shards.
func (s *TriggerSet) InspectByDomainId(domain DomainId, f func(TriggerId, LoadedAction) any) []any {
	s.idsMu.RLock()
	type hit struct {
		id TriggerId
		ty EventType
	}
	var hits []hit
	for id, ty := range s.ids {
		if id.HasDomain() && id.DomainId.Equal(domain) {
			hits = append(hits, hit{id, ty})
		}
	}
	s.idsMu.RUnlock()

	results := make([]any, 0, len(hits))
	for _, h := range hits {
		mu, m := s.shard(h.ty)
		mu.RLock()
		a, ok := m[h.id]
		mu.RUnlock()
		if !ok {
			continue
		}
		results = append(results, f(h.id, a))
	}
	return results
}

// ModRepeats applies f to the Exactly-variant repeat count of id's action,
// storing the result back. Fails with ErrTriggerNotFound if id is absent,
// or ErrRepeatsOverflow if the trigger's Repeats is Indefinitely (f has
// nothing to mutate) or if applying f would overflow uint32.
func (s *TriggerSet) ModRepeats(id TriggerId, f func(uint32) (uint32, error)) error {
	s.idsMu.RLock()
	ty, ok := s.ids[id]
	s.idsMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTriggerNotFound, id)
	}
	mu, m := s.shard(ty)
	mu.RLock()
	a, ok := m[id]
	mu.RUnlock()
	if !ok {
		return fmt.Errorf("%v: ids has %s but owning shard does not", ErrStructural, id)
	}
	if a.Repeats.Kind() != RepeatsExactly {
		return fmt.Errorf("%w: %s is not Exactly(_)", ErrRepeatsOverflow, id)
	}
	cur := a.Repeats.Count()
	next, err := f(cur)
	if err != nil {
		return err
	}
	if next >= cur {
		return a.Repeats.Add(next - cur)
	}
	for i := uint32(0); i < cur-next; i++ {
		a.Repeats.Decrement()
	}
	return nil
}

// ModMetadata applies f to id's action metadata, storing the result back in
// the owning shard. Fails with ErrTriggerNotFound if id is absent. Used by
// SetKeyValue/RemoveKeyValue when their object is a Trigger.
func (s *TriggerSet) ModMetadata(id TriggerId, f func(Metadata) (Metadata, error)) error {
	s.idsMu.RLock()
	ty, ok := s.ids[id]
	s.idsMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTriggerNotFound, id)
	}
	mu, m := s.shard(ty)
	mu.Lock()
	defer mu.Unlock()
	a, ok := m[id]
	if !ok {
		return fmt.Errorf("%v: ids has %s but owning shard does not", ErrStructural, id)
	}
	next, err := f(a.Metadata)
	if err != nil {
		return err
	}
	a.Metadata = next
	m[id] = a
	return nil
}

func (s *TriggerSet) matchAndInsert(event Event, id TriggerId, a LoadedAction) {
	if !a.Filter.Matches(event) {
		return
	}
	if a.Repeats.Kind() == RepeatsExactly && a.Repeats.Count() == 0 {
		return
	}
	s.matchMu.Lock()
	s.matched = append(s.matched, matchedEntry{event: event, id: id})
	s.matchMu.Unlock()
}

// HandleDataEvent matches every data trigger whose filter has no domain
// restriction, or whose domain restriction equals the event's domain.
func (s *TriggerSet) HandleDataEvent(evt DataEvent) {
	s.dataMu.RLock()
	snapshot := make(map[TriggerId]LoadedAction, len(s.data))
	for id, a := range s.data {
		snapshot[id] = a
	}
	s.dataMu.RUnlock()

	// The filter's domain restriction (a *DomainId id matcher) is checked
	// by Filter.Matches inside matchAndInsert.
	event := NewDataEvent(evt)
	for id, a := range snapshot {
		s.matchAndInsert(event, id, a)
	}
}

// HandlePipelineEvent matches every pipeline trigger against evt.
func (s *TriggerSet) HandlePipelineEvent(evt PipelineEvent) {
	s.pipelineMu.RLock()
	snapshot := make(map[TriggerId]LoadedAction, len(s.pipeline))
	for id, a := range s.pipeline {
		snapshot[id] = a
	}
	s.pipelineMu.RUnlock()

	event := NewPipelineEvent(evt)
	for id, a := range snapshot {
		s.matchAndInsert(event, id, a)
	}
}

// HandleTimeEvent computes, for every time trigger, how many scheduled
// instants fall in evt's interval (clamped to the trigger's remaining
// Exactly count, if any) and appends that many copies of (Time(evt), id)
// to the match buffer.
func (s *TriggerSet) HandleTimeEvent(evt TimeEvent) error {
	s.timeMu.RLock()
	snapshot := make(map[TriggerId]LoadedAction, len(s.time))
	for id, a := range s.time {
		snapshot[id] = a
	}
	s.timeMu.RUnlock()

	event := NewTimeEvent(evt)
	for id, a := range snapshot {
		count, err := a.Filter.TimeExecution.CountMatches(evt)
		if err != nil {
			return fmt.Errorf("handle time event for %s: %w", id, err)
		}
		if a.Repeats.Kind() == RepeatsExactly {
			if n := a.Repeats.Count(); n < count {
				count = n
			}
		}
		if count == 0 {
			continue
		}
		entries := make([]matchedEntry, count)
		for i := range entries {
			entries[i] = matchedEntry{event: event, id: id}
		}
		s.matchMu.Lock()
		s.matched = append(s.matched, entries...)
		s.matchMu.Unlock()
	}
	return nil
}

// HandleExecuteTriggerEvent routes evt to the by_call trigger named in
// evt.TriggerId, if present.
func (s *TriggerSet) HandleExecuteTriggerEvent(evt ExecuteTriggerEvent) {
	s.byCallMu.RLock()
	a, ok := s.byCall[evt.TriggerId]
	s.byCallMu.RUnlock()
	if !ok {
		return
	}
	s.matchAndInsert(NewExecuteTriggerEvent(evt), evt.TriggerId, a)
}

// ExecFunc executes one matched trigger action in response to one event.
type ExecFunc func(id TriggerId, engine *WasmEngine, action LoadedAction, event Event) error

// InspectMatched drains the match buffer (snapshot-and-clear, so a Handle*
// call issued from inside exec is appended to the *next* cycle rather than
// deadlocking here), calls exec for every entry whose action is still
// present and not already exhausted, decrements the repeat count of every
// entry that succeeded, and finally sweeps any trigger that reached
// Exactly(0) from all four shards. Returns the ids that executed
// successfully — exactly the ones whose repeats decremented — alongside the
// accumulated errors; a non-empty error list does not mean every entry
// failed.
func (s *TriggerSet) InspectMatched(exec ExecFunc) ([]TriggerId, []error) {
	succeeded, errs := s.mapMatched(exec)

	for _, id := range succeeded {
		_ = s.ModRepeats(id, func(n uint32) (uint32, error) {
			if n == 0 {
				return 0, nil
			}
			return n - 1, nil
		})
	}

	s.removeZeros(&s.dataMu, s.data)
	s.removeZeros(&s.pipelineMu, s.pipeline)
	s.removeZeros(&s.timeMu, s.time)
	s.removeZeros(&s.byCallMu, s.byCall)

	return succeeded, errs
}

func (s *TriggerSet) mapMatched(exec ExecFunc) ([]TriggerId, []error) {
	s.matchMu.Lock()
	snapshot := s.matched
	s.matched = nil
	s.matchMu.Unlock()

	var succeeded []TriggerId
	var errs []error

	for _, entry := range snapshot {
		var mu *sync.RWMutex
		var m map[TriggerId]LoadedAction
		switch entry.event.Type {
		case EventTypeData:
			mu, m = &s.dataMu, s.data
		case EventTypePipeline:
			mu, m = &s.pipelineMu, s.pipeline
		case EventTypeTime:
			mu, m = &s.timeMu, s.time
		case EventTypeExecuteTrigger:
			mu, m = &s.byCallMu, s.byCall
		default:
			continue
		}

		mu.RLock()
		action, ok := m[entry.id]
		mu.RUnlock()
		if !ok {
			// Action was removed between match and execute; skip silently.
			continue
		}
		if action.Repeats.Kind() == RepeatsExactly && action.Repeats.Count() == 0 {
			continue
		}

		if err := exec(entry.id, s.engine, action, entry.event); err != nil {
			errs = append(errs, err)
			s.notifyCompleted(entry.id, false)
			continue
		}
		succeeded = append(succeeded, entry.id)
		s.notifyCompleted(entry.id, true)
	}

	return succeeded, errs
}

func (s *TriggerSet) removeZeros(mu *sync.RWMutex, m map[TriggerId]LoadedAction) {
	s.idsMu.Lock()
	mu.Lock()
	var toRemove []TriggerId
	for id, a := range m {
		if a.Repeats.Kind() == RepeatsExactly && a.Repeats.Count() == 0 {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(m, id)
		delete(s.ids, id)
	}
	mu.Unlock()
	s.idsMu.Unlock()

	for _, id := range toRemove {
		s.logger.WithField("trigger", id.String()).Debug("swept exhausted trigger")
	}
}

// Ids returns every registered trigger id, in unspecified order.
func (s *TriggerSet) Ids() []TriggerId {
	s.idsMu.RLock()
	defer s.idsMu.RUnlock()
	out := make([]TriggerId, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

// ShardCounts reports how many triggers live in each of the four shards,
// read off the ids reverse index. Exposed for inspection tooling; the core
// itself never needs aggregate counts.
func (s *TriggerSet) ShardCounts() map[EventType]int {
	s.idsMu.RLock()
	defer s.idsMu.RUnlock()
	counts := map[EventType]int{
		EventTypeData:           0,
		EventTypePipeline:       0,
		EventTypeTime:           0,
		EventTypeExecuteTrigger: 0,
	}
	for _, ty := range s.ids {
		counts[ty]++
	}
	return counts
}
