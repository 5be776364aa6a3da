package core

// EventType discriminates the event/filter categories. The first four
// double as the trigger set's shard discriminants and are the only values
// stored in its `ids` reverse index; TriggerCompleted is an event category
// with no shard — it is emitted by the trigger set after execution and can
// be observed and filtered, but a trigger can never register for it.
type EventType uint8

const (
	EventTypeData EventType = iota
	EventTypePipeline
	EventTypeTime
	EventTypeExecuteTrigger
	EventTypeTriggerCompleted
)

func (t EventType) String() string {
	switch t {
	case EventTypeData:
		return "Data"
	case EventTypePipeline:
		return "Pipeline"
	case EventTypeTime:
		return "Time"
	case EventTypeExecuteTrigger:
		return "ExecuteTrigger"
	case EventTypeTriggerCompleted:
		return "TriggerCompleted"
	default:
		return "Unknown"
	}
}

// Event is the closed union over every observable event category. Exactly
// one of the embedded pointers is non-nil, matching Type.
type Event struct {
	Type EventType

	Data           *DataEvent
	Pipeline       *PipelineEvent
	Time           *TimeEvent
	ExecuteTrigger *ExecuteTriggerEvent

	// TriggerCompleted notifications are emitted by the trigger set after
	// each execution. They are observable and filterable by external
	// subscribers, but can never be the target of a trigger's own filter —
	// NewAction rejects a TriggerCompleted filter at decode time.
	TriggerCompleted *TriggerCompletedEvent
}

func NewDataEvent(e DataEvent) Event         { return Event{Type: EventTypeData, Data: &e} }
func NewPipelineEvent(e PipelineEvent) Event { return Event{Type: EventTypePipeline, Pipeline: &e} }
func NewTimeEvent(e TimeEvent) Event         { return Event{Type: EventTypeTime, Time: &e} }
func NewExecuteTriggerEvent(e ExecuteTriggerEvent) Event {
	return Event{Type: EventTypeExecuteTrigger, ExecuteTrigger: &e}
}
func NewTriggerCompletedEvent(e TriggerCompletedEvent) Event {
	return Event{Type: EventTypeTriggerCompleted, TriggerCompleted: &e}
}

// TriggerCompletedEvent notifies observers that a trigger finished
// executing, successfully or not.
type TriggerCompletedEvent struct {
	TriggerId TriggerId
	Succeeded bool
}
