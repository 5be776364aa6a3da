package core

import "fmt"

// Action is the execution unit owned by a Trigger.
type Action struct {
	Executable Executable
	Repeats    *Repeats
	Authority  AccountId
	Filter     Filter
	Metadata   Metadata
}

// NewAction is the candidate → validate → value constructor for Action. A
// filter targeting TriggerCompleted events is rejected here: completion
// notifications are for external observers only, and a trigger watching
// them could re-fire on its own completion.
func NewAction(exe Executable, repeats *Repeats, authority AccountId, filter Filter, md Metadata) (Action, error) {
	if repeats == nil {
		return Action{}, fmt.Errorf("%w: action repeats must not be nil", ErrInvalid)
	}
	if err := filter.ValidateAsActionFilter(); err != nil {
		return Action{}, err
	}
	return Action{Executable: exe, Repeats: repeats, Authority: authority, Filter: filter, Metadata: md}, nil
}

// Trigger is a named, registered Action.
type Trigger struct {
	Id     TriggerId
	Action Action
}

// LoadedAction is an Action after its Executable has been preloaded: WASM
// bytecode becomes a compiled module handle, instructions pass through.
type LoadedAction struct {
	Executable LoadedExecutable
	Repeats    *Repeats
	Authority  AccountId
	Filter     Filter
	Metadata   Metadata
}

func loadAction(a Action, engine *WasmEngine) (LoadedAction, error) {
	loaded, err := engine.PreloadExecutable(a.Executable)
	if err != nil {
		return LoadedAction{}, err
	}
	return LoadedAction{
		Executable: loaded,
		Repeats:    a.Repeats,
		Authority:  a.Authority,
		Filter:     a.Filter,
		Metadata:   a.Metadata,
	}, nil
}
