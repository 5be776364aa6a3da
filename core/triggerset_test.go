package core

import (
	"errors"
	"testing"
)

func testEngine(t *testing.T) *WasmEngine {
	t.Helper()
	engine, err := NewWasmEngine(8)
	if err != nil {
		t.Fatalf("NewWasmEngine: %v", err)
	}
	return engine
}

func testAuthority(t *testing.T) AccountId {
	t.Helper()
	domain, _ := ParseDomainId("wonderland")
	return AccountId{Signatory: NewPublicKey([]byte("alice")), Domain: domain}
}

func mustTriggerId(t *testing.T, name string) TriggerId {
	t.Helper()
	id, err := ParseTriggerId(name)
	if err != nil {
		t.Fatalf("ParseTriggerId(%q): %v", name, err)
	}
	return id
}

func mustAction(t *testing.T, repeats *Repeats, filter Filter) Action {
	t.Helper()
	a, err := NewAction(InstructionsExecutable([]Instruction{NewLog(LogInfo, "noop")}), repeats, testAuthority(t), filter, Metadata{})
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	return a
}

func TestTriggerSetAddContainsRemoveCoherence(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	id := mustTriggerId(t, "t1")
	filter := NewDataFilter(nil, DataEventSetOf(DataEventAsset))

	ok, err := ts.AddDataTrigger(Trigger{Id: id, Action: mustAction(t, Exactly(3), filter)})
	if err != nil || !ok {
		t.Fatalf("AddDataTrigger: ok=%v err=%v", ok, err)
	}
	if !ts.Contains(id) {
		t.Fatal("expected trigger to be present after add")
	}
	counts := ts.ShardCounts()
	if counts[EventTypeData] != 1 {
		t.Fatalf("expected 1 trigger in data shard, got %d", counts[EventTypeData])
	}

	// Re-adding the same id is a no-op, not an error.
	ok, err = ts.AddDataTrigger(Trigger{Id: id, Action: mustAction(t, Exactly(3), filter)})
	if err != nil {
		t.Fatalf("re-add returned error: %v", err)
	}
	if ok {
		t.Fatal("expected re-add of existing id to return false")
	}

	if removed := ts.Remove(id); !removed {
		t.Fatal("expected Remove to report true for a present id")
	}
	if ts.Contains(id) {
		t.Fatal("expected trigger to be absent after Remove")
	}
	if removed := ts.Remove(id); removed {
		t.Fatal("expected second Remove to report false")
	}
}

func TestTriggerSetHandleDataEventDomainScoping(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	wonderland, _ := ParseDomainId("wonderland")
	other, _ := ParseDomainId("otherland")

	unrestricted := mustTriggerId(t, "any")
	scoped := mustTriggerId(t, "scoped$wonderland")

	okUnres, err := ts.AddDataTrigger(Trigger{
		Id:     unrestricted,
		Action: mustAction(t, Indefinitely(), NewDataFilter(nil, DataEventSetOf(DataEventAsset))),
	})
	if err != nil || !okUnres {
		t.Fatalf("add unrestricted: ok=%v err=%v", okUnres, err)
	}
	okScoped, err := ts.AddDataTrigger(Trigger{
		Id:     scoped,
		Action: mustAction(t, Indefinitely(), NewDataFilter(&wonderland, DataEventSetOf(DataEventAsset))),
	})
	if err != nil || !okScoped {
		t.Fatalf("add scoped: ok=%v err=%v", okScoped, err)
	}

	evt := DataEvent{Kind: DataEventAsset, Change: DataChangeCreated, OriginDomain: &other}
	ts.HandleDataEvent(evt)

	// Unrestricted matches regardless of domain; the wonderland-scoped
	// trigger must not match an otherland-originated event.
	matched := drainMatchedIds(ts)
	if len(matched) != 1 || matched[0] != unrestricted {
		t.Fatalf("expected only the unrestricted trigger to match, got %v", matched)
	}
}

// drainMatchedIds runs InspectMatched with an always-OK exec_fn and returns
// the ids that were executed, in buffer order.
func drainMatchedIds(ts *TriggerSet) []TriggerId {
	var ids []TriggerId
	ts.InspectMatched(func(id TriggerId, engine *WasmEngine, action LoadedAction, event Event) error {
		ids = append(ids, id)
		return nil
	})
	return ids
}

func TestTriggerSetExecuteTriggerEventRouting(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	tID := mustTriggerId(t, "T")

	ok, err := ts.AddByCallTrigger(Trigger{
		Id:     tID,
		Action: mustAction(t, Indefinitely(), NewExecuteTriggerFilter(nil)),
	})
	if err != nil || !ok {
		t.Fatalf("AddByCallTrigger: ok=%v err=%v", ok, err)
	}

	ts.HandleExecuteTriggerEvent(ExecuteTriggerEvent{TriggerId: tID})
	uID := mustTriggerId(t, "U")
	ts.HandleExecuteTriggerEvent(ExecuteTriggerEvent{TriggerId: uID})

	matched := drainMatchedIds(ts)
	if len(matched) != 1 || matched[0] != tID {
		t.Fatalf("expected exactly one match for T, got %v", matched)
	}
}

func TestTimeTriggerPeriodicCountAndDecrement(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	id := mustTriggerId(t, "periodic")
	repeats := Exactly(10)

	ok, err := ts.AddTimeTrigger(Trigger{
		Id:     id,
		Action: mustAction(t, repeats, NewTimeFilter(Periodic(1000, 300))),
	})
	if err != nil || !ok {
		t.Fatalf("AddTimeTrigger: ok=%v err=%v", ok, err)
	}

	evt := TimeEvent{Interval: TimeInterval{SinceMs: 1000, LengthMs: 1000}}
	count, err := Periodic(1000, 300).CountMatches(evt)
	if err != nil {
		t.Fatalf("CountMatches: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 matching instants (1000,1300,1600,1900), got %d", count)
	}

	if err := ts.HandleTimeEvent(evt); err != nil {
		t.Fatalf("HandleTimeEvent: %v", err)
	}

	matched := drainMatchedIds(ts)
	if len(matched) != 4 {
		t.Fatalf("expected match buffer to hold 4 copies, got %d", len(matched))
	}
	for _, m := range matched {
		if m != id {
			t.Fatalf("expected every match to be for %s, got %s", id, m)
		}
	}

	if got := repeats.Count(); got != 6 {
		t.Fatalf("expected repeats to become Exactly(6) after 4 successful executions, got %d", got)
	}
}

func TestSelfBurningTriggerSweepsAfterExhaustion(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	id := mustTriggerId(t, "selfburn$wonderland")
	repeats := Exactly(1)

	ok, err := ts.AddDataTrigger(Trigger{
		Id:     id,
		Action: mustAction(t, repeats, NewDataFilter(nil, DataEventSetOf(DataEventAsset))),
	})
	if err != nil || !ok {
		t.Fatalf("AddDataTrigger: ok=%v err=%v", ok, err)
	}

	wonderland, _ := ParseDomainId("wonderland")
	evt := DataEvent{Kind: DataEventAsset, Change: DataChangeCreated, OriginDomain: &wonderland}
	ts.HandleDataEvent(evt)

	executed := 0
	succeeded, errs := ts.InspectMatched(func(id TriggerId, engine *WasmEngine, action LoadedAction, event Event) error {
		executed++
		// Simulate the trigger burning its own last repeat as a side
		// effect of execution; InspectMatched's own decrement-from-0 must
		// still be a no-op afterward.
		action.Repeats.Decrement()
		return nil
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if executed != 1 {
		t.Fatalf("expected exactly one execution, got %d", executed)
	}
	if len(succeeded) != 1 || succeeded[0] != id {
		t.Fatalf("expected success list [%s], got %v", id, succeeded)
	}

	if ts.Contains(id) {
		t.Fatal("expected exhausted trigger to be swept from ids")
	}
	counts := ts.ShardCounts()
	if counts[EventTypeData] != 0 {
		t.Fatalf("expected data shard empty after sweep, got %d", counts[EventTypeData])
	}

	// A second matching event must buffer nothing: the trigger is gone.
	ts.HandleDataEvent(evt)
	if matched := drainMatchedIds(ts); len(matched) != 0 {
		t.Fatalf("expected no matches after sweep, got %v", matched)
	}
}

func TestInspectMatchedExecutionErrorDoesNotDecrement(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	id := mustTriggerId(t, "failing")
	repeats := Exactly(2)

	ok, err := ts.AddPipelineTrigger(Trigger{
		Id:     id,
		Action: mustAction(t, repeats, NewPipelineFilter(nil, PipelineEventSetOfTx(TxApproved))),
	})
	if err != nil || !ok {
		t.Fatalf("AddPipelineTrigger: ok=%v err=%v", ok, err)
	}

	ts.HandlePipelineEvent(PipelineEvent{Kind: PipelineEventTransaction, TxStatus: TxApproved})

	wantErr := errors.New("boom")
	succeeded, errs := ts.InspectMatched(func(id TriggerId, engine *WasmEngine, action LoadedAction, event Event) error {
		return wantErr
	})
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
	if len(succeeded) != 0 {
		t.Fatalf("expected no successes, got %v", succeeded)
	}
	if repeats.Count() != 2 {
		t.Fatalf("expected repeats unchanged after execution error, got %d", repeats.Count())
	}
	if !ts.Contains(id) {
		t.Fatal("expected failing trigger to remain registered")
	}
}

func TestZeroRepeatTriggerNeverEnqueued(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	id := mustTriggerId(t, "exhausted")

	ok, err := ts.AddDataTrigger(Trigger{
		Id:     id,
		Action: mustAction(t, Exactly(0), NewDataFilter(nil, DataEventSetOf(DataEventAsset))),
	})
	if err != nil || !ok {
		t.Fatalf("AddDataTrigger: ok=%v err=%v", ok, err)
	}

	ts.HandleDataEvent(DataEvent{Kind: DataEventAsset, Change: DataChangeCreated})
	if matched := drainMatchedIds(ts); len(matched) != 0 {
		t.Fatalf("expected Exactly(0) trigger never to be enqueued, got %v", matched)
	}
}

func TestModRepeatsOverflowOnIndefinitely(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	id := mustTriggerId(t, "indef")

	ok, err := ts.AddDataTrigger(Trigger{
		Id:     id,
		Action: mustAction(t, Indefinitely(), NewDataFilter(nil, DataEventSetOf(DataEventAsset))),
	})
	if err != nil || !ok {
		t.Fatalf("AddDataTrigger: ok=%v err=%v", ok, err)
	}

	err = ts.ModRepeats(id, func(n uint32) (uint32, error) { return n + 1, nil })
	if !errors.Is(err, ErrRepeatsOverflow) {
		t.Fatalf("expected ErrRepeatsOverflow for Indefinitely trigger, got %v", err)
	}
}

func TestModRepeatsNotFound(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	absent := mustTriggerId(t, "absent")

	err := ts.ModRepeats(absent, func(n uint32) (uint32, error) { return n, nil })
	if !errors.Is(err, ErrTriggerNotFound) {
		t.Fatalf("expected ErrTriggerNotFound, got %v", err)
	}
}

func TestNewActionRejectsTriggerCompletedFilter(t *testing.T) {
	_, err := NewAction(
		InstructionsExecutable([]Instruction{NewLog(LogInfo, "noop")}),
		Indefinitely(),
		testAuthority(t),
		NewTriggerCompletedFilter(nil, TriggerOutcomeSetOf(OutcomeSuccess)),
		Metadata{},
	)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for a TriggerCompleted action filter, got %v", err)
	}
}

func TestInspectMatchedEmitsTriggerCompletedEvents(t *testing.T) {
	ts := NewTriggerSet(testEngine(t))
	good := mustTriggerId(t, "good")
	bad := mustTriggerId(t, "bad")

	filter := NewPipelineFilter(nil, PipelineEventSetOfTx(TxApproved))
	if ok, err := ts.AddPipelineTrigger(Trigger{Id: good, Action: mustAction(t, Indefinitely(), filter)}); err != nil || !ok {
		t.Fatalf("add good: ok=%v err=%v", ok, err)
	}
	if ok, err := ts.AddPipelineTrigger(Trigger{Id: bad, Action: mustAction(t, Indefinitely(), filter)}); err != nil || !ok {
		t.Fatalf("add bad: ok=%v err=%v", ok, err)
	}

	var completions []TriggerCompletedEvent
	ts.OnTriggerCompleted(func(e TriggerCompletedEvent) {
		completions = append(completions, e)
	})

	ts.HandlePipelineEvent(PipelineEvent{Kind: PipelineEventTransaction, TxStatus: TxApproved})
	ts.InspectMatched(func(id TriggerId, engine *WasmEngine, action LoadedAction, event Event) error {
		if id == bad {
			return errors.New("boom")
		}
		return nil
	})

	if len(completions) != 2 {
		t.Fatalf("expected a completion event per executed trigger, got %d", len(completions))
	}
	byId := map[TriggerId]bool{}
	for _, c := range completions {
		byId[c.TriggerId] = c.Succeeded
	}
	if !byId[good] {
		t.Fatal("expected a successful completion for the good trigger")
	}
	if succeededBad, present := byId[bad]; !present || succeededBad {
		t.Fatal("expected a failed completion for the bad trigger")
	}

	// Completion events are matchable by external observers.
	f := NewTriggerCompletedFilter(&good, TriggerOutcomeSetOf(OutcomeSuccess))
	matched := 0
	for _, c := range completions {
		if f.Matches(NewTriggerCompletedEvent(c)) {
			matched++
		}
	}
	if matched != 1 {
		t.Fatalf("expected the filter to match exactly the good trigger's completion, got %d", matched)
	}
}
