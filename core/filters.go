package core

import (
	"bytes"
	"fmt"
)

// DataEventSet is a bit-set over DataEventKind values.
type DataEventSet uint16

func DataEventSetOf(kinds ...DataEventKind) DataEventSet {
	var s DataEventSet
	for _, k := range kinds {
		s |= 1 << uint(k)
	}
	return s
}

func (s DataEventSet) Has(k DataEventKind) bool { return s&(1<<uint(k)) != 0 }

// PipelineEventSet is a bit-set over (kind, status) combinations, encoded as
// one bit per TransactionStatus plus one bit per BlockStatus, offset so the
// two don't collide.
type PipelineEventSet uint16

const blockStatusOffset = 8

func PipelineEventSetOfTx(statuses ...TransactionStatus) PipelineEventSet {
	var s PipelineEventSet
	for _, st := range statuses {
		s |= 1 << uint(st)
	}
	return s
}

func PipelineEventSetOfBlock(statuses ...BlockStatus) PipelineEventSet {
	var s PipelineEventSet
	for _, st := range statuses {
		s |= 1 << uint(blockStatusOffset+int(st))
	}
	return s
}

func (s PipelineEventSet) HasTx(st TransactionStatus) bool { return s&(1<<uint(st)) != 0 }
func (s PipelineEventSet) HasBlock(st BlockStatus) bool {
	return s&(1<<uint(blockStatusOffset+int(st))) != 0
}

// TriggerOutcome classifies how a trigger's execution ended.
type TriggerOutcome uint8

const (
	OutcomeSuccess TriggerOutcome = iota
	OutcomeFailure
)

// TriggerOutcomeSet is a bit-set over TriggerOutcome values.
type TriggerOutcomeSet uint8

func TriggerOutcomeSetOf(outcomes ...TriggerOutcome) TriggerOutcomeSet {
	var s TriggerOutcomeSet
	for _, o := range outcomes {
		s |= 1 << uint(o)
	}
	return s
}

func (s TriggerOutcomeSet) Has(o TriggerOutcome) bool { return s&(1<<uint(o)) != 0 }

// Filter is the closed union of the five category-specific filters (the four
// trigger shard categories plus the TriggerCompleted completion filter). Exactly
// one of the typed fields is meaningful, selected by EventType.
type Filter struct {
	EventType EventType

	DataIdMatcher any // *AssetId | *AccountId | *DomainId | *AssetDefinitionId | *RoleId | *TriggerId | nil (unrestricted)
	DataKinds     DataEventSet

	PipelineIdMatcher any // *Hash (tx) | nil; block filters match by status only
	PipelineKinds     PipelineEventSet

	TimeExecution ExecutionTime

	ExecuteTriggerId *TriggerId // nil means match any trigger id

	CompletedTriggerId *TriggerId // nil means match completions of any trigger
	CompletedOutcomes  TriggerOutcomeSet
}

func NewDataFilter(idMatcher any, kinds DataEventSet) Filter {
	return Filter{EventType: EventTypeData, DataIdMatcher: idMatcher, DataKinds: kinds}
}

func NewPipelineFilter(idMatcher any, kinds PipelineEventSet) Filter {
	return Filter{EventType: EventTypePipeline, PipelineIdMatcher: idMatcher, PipelineKinds: kinds}
}

func NewTimeFilter(execution ExecutionTime) Filter {
	return Filter{EventType: EventTypeTime, TimeExecution: execution}
}

func NewExecuteTriggerFilter(id *TriggerId) Filter {
	return Filter{EventType: EventTypeExecuteTrigger, ExecuteTriggerId: id}
}

// NewTriggerCompletedFilter builds a filter over trigger-completion events,
// for external observers of the trigger set's execution outcomes. An Action
// must never carry one: NewAction rejects it.
func NewTriggerCompletedFilter(id *TriggerId, outcomes TriggerOutcomeSet) Filter {
	return Filter{EventType: EventTypeTriggerCompleted, CompletedTriggerId: id, CompletedOutcomes: outcomes}
}

// Matches reports whether the filter accepts evt. A TriggerCompleted event
// is matched only by a completion filter (by trigger id and outcome), which
// is meant for external observers; Action validation forbids a trigger from
// filtering on it directly.
func (f Filter) Matches(evt Event) bool {
	if evt.Type != f.EventType {
		return false
	}
	switch f.EventType {
	case EventTypeData:
		if evt.Data == nil {
			return false
		}
		if !f.DataKinds.Has(evt.Data.Kind) {
			return false
		}
		return dataIdMatches(f.DataIdMatcher, *evt.Data)
	case EventTypePipeline:
		if evt.Pipeline == nil {
			return false
		}
		return pipelineMatches(f, *evt.Pipeline)
	case EventTypeTime:
		return evt.Time != nil
	case EventTypeExecuteTrigger:
		if evt.ExecuteTrigger == nil {
			return false
		}
		if f.ExecuteTriggerId == nil {
			return true
		}
		return f.ExecuteTriggerId.Equal(evt.ExecuteTrigger.TriggerId)
	case EventTypeTriggerCompleted:
		if evt.TriggerCompleted == nil {
			return false
		}
		outcome := OutcomeSuccess
		if !evt.TriggerCompleted.Succeeded {
			outcome = OutcomeFailure
		}
		if !f.CompletedOutcomes.Has(outcome) {
			return false
		}
		if f.CompletedTriggerId == nil {
			return true
		}
		return f.CompletedTriggerId.Equal(evt.TriggerCompleted.TriggerId)
	default:
		return false
	}
}

func dataIdMatches(matcher any, evt DataEvent) bool {
	if matcher == nil {
		return true
	}
	switch m := matcher.(type) {
	case *DomainId:
		return evt.matchesDomain(m)
	case *AssetId:
		id, ok := evt.Origin.(AssetId)
		return ok && id.Equal(*m)
	case *AccountId:
		if id, ok := evt.Origin.(AccountId); ok {
			return id.Equal(*m)
		}
		return evt.matchesDomain(&m.Domain)
	case *AssetDefinitionId:
		id, ok := evt.Origin.(AssetDefinitionId)
		return ok && id.Equal(*m)
	case *RoleId:
		id, ok := evt.Origin.(RoleId)
		return ok && id.Equal(*m)
	case *TriggerId:
		id, ok := evt.Origin.(TriggerId)
		return ok && id.Equal(*m)
	default:
		return false
	}
}

func pipelineMatches(f Filter, evt PipelineEvent) bool {
	switch evt.Kind {
	case PipelineEventTransaction:
		if !f.PipelineKinds.HasTx(evt.TxStatus) {
			return false
		}
		if h, ok := f.PipelineIdMatcher.(*Hash); ok && h != nil {
			return evt.TxHash.Equal(*h)
		}
		return true
	case PipelineEventBlock:
		return f.PipelineKinds.HasBlock(evt.BlockStatus)
	default:
		return false
	}
}

// ValidateAsActionFilter rejects a filter a trigger's Action must not
// carry: a TriggerCompleted filter (self-referential triggers are
// forbidden — a trigger observing completions could re-fire on its own) and
// a data filter with an empty event-kind set, which would match nothing.
func (f Filter) ValidateAsActionFilter() error {
	if f.EventType == EventTypeTriggerCompleted {
		return fmt.Errorf("%w: a trigger's filter must not target TriggerCompleted events", ErrInvalid)
	}
	if f.EventType == EventTypeData && f.DataKinds == 0 {
		return fmt.Errorf("%w: data filter with empty event-kind set matches nothing", ErrInvalid)
	}
	return nil
}

// CanonicalBytes encodes the filter's discriminant and the fields relevant
// to its event type, used when a Register(Trigger) instruction is hashed.
func (f Filter) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeTag(&buf, byte(f.EventType))
	switch f.EventType {
	case EventTypeData:
		if f.DataIdMatcher != nil {
			buf.WriteByte(1)
			writeLenPrefixed(&buf, []byte(idString(f.DataIdMatcher)))
		} else {
			buf.WriteByte(0)
		}
		writeU32LE(&buf, uint32(f.DataKinds))
	case EventTypePipeline:
		if h, ok := f.PipelineIdMatcher.(*Hash); ok && h != nil {
			buf.WriteByte(1)
			buf.Write(h[:])
		} else {
			buf.WriteByte(0)
		}
		writeU32LE(&buf, uint32(f.PipelineKinds))
	case EventTypeTime:
		writeTag(&buf, byte(f.TimeExecution.Kind))
		writeU64LE(&buf, f.TimeExecution.Schedule.StartMs)
		if f.TimeExecution.Schedule.PeriodMs != nil {
			buf.WriteByte(1)
			writeU64LE(&buf, *f.TimeExecution.Schedule.PeriodMs)
		} else {
			buf.WriteByte(0)
		}
	case EventTypeExecuteTrigger:
		if f.ExecuteTriggerId != nil {
			buf.WriteByte(1)
			writeLenPrefixed(&buf, []byte(f.ExecuteTriggerId.String()))
		} else {
			buf.WriteByte(0)
		}
	case EventTypeTriggerCompleted:
		if f.CompletedTriggerId != nil {
			buf.WriteByte(1)
			writeLenPrefixed(&buf, []byte(f.CompletedTriggerId.String()))
		} else {
			buf.WriteByte(0)
		}
		writeTag(&buf, byte(f.CompletedOutcomes))
	}
	return buf.Bytes()
}
