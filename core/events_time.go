package core

import "fmt"

// TimeInterval is a half-open millisecond range [SinceMs, SinceMs+LengthMs).
type TimeInterval struct {
	SinceMs uint64
	LengthMs uint64
}

// End returns the exclusive upper bound of the interval.
func (iv TimeInterval) End() uint64 { return iv.SinceMs + iv.LengthMs }

// Contains reports whether instant t lies in [SinceMs, End()).
func (iv TimeInterval) Contains(t uint64) bool {
	return t >= iv.SinceMs && t < iv.End()
}

// TimeEvent is the single time event variant, carrying the interval that
// elapsed since the previous time event was emitted.
type TimeEvent struct {
	Interval TimeInterval
}

// ExecutionTimeKind discriminates PreCommit from a recurring Schedule.
type ExecutionTimeKind uint8

const (
	ExecutionPreCommit ExecutionTimeKind = iota
	ExecutionSchedule
)

// Schedule describes a one-shot or periodic instant series: StartMs, then
// every PeriodMs thereafter if PeriodMs is non-nil.
type Schedule struct {
	StartMs  uint64
	PeriodMs *uint64 // nil means one-shot at StartMs
}

// ExecutionTime is either PreCommit (fires once per block, unconditionally)
// or a Schedule.
type ExecutionTime struct {
	Kind     ExecutionTimeKind
	Schedule Schedule
}

func PreCommit() ExecutionTime { return ExecutionTime{Kind: ExecutionPreCommit} }

func OneShot(startMs uint64) ExecutionTime {
	return ExecutionTime{Kind: ExecutionSchedule, Schedule: Schedule{StartMs: startMs}}
}

func Periodic(startMs, periodMs uint64) ExecutionTime {
	p := periodMs
	return ExecutionTime{Kind: ExecutionSchedule, Schedule: Schedule{StartMs: startMs, PeriodMs: &p}}
}

// CountMatches computes how many scheduled instants of et fall within
// evt.Interval, per the algorithm:
//
//   - PreCommit always contributes exactly 1.
//   - A one-shot Schedule contributes 1 if StartMs lies in the interval,
//     else 0.
//   - A periodic Schedule's instants are { StartMs + k*PeriodMs : k ∈ ℕ }.
//     Rather than enumerating from k=0, jump directly to the first k whose
//     instant could fall on or after the interval's start, then count
//     forward until the instant leaves the interval. The jump avoids
//     iterating from the schedule's epoch for long-lived schedules.
//
// Returns ErrOverflow if the resulting count would not fit in a uint32.
func (et ExecutionTime) CountMatches(evt TimeEvent) (uint32, error) {
	if et.Kind == ExecutionPreCommit {
		return 1, nil
	}
	s := et.Schedule
	iv := evt.Interval

	if s.PeriodMs == nil {
		if iv.Contains(s.StartMs) {
			return 1, nil
		}
		return 0, nil
	}

	period := *s.PeriodMs
	if period == 0 {
		return 0, fmt.Errorf("%w: schedule period must be positive", ErrInvalid)
	}

	if iv.SinceMs < s.StartMs {
		// First instant at or after the interval start is StartMs itself
		// (k=0); nothing to jump.
		return countForward(s.StartMs, period, iv, 0)
	}

	elapsed := iv.SinceMs - s.StartMs
	k := elapsed / period
	instant := s.StartMs + k*period
	if instant < iv.SinceMs {
		k++
	}
	return countForward(s.StartMs, period, iv, k)
}

// countForward counts instants StartMs + k*period, k starting at k0, that
// lie in iv, stopping as soon as an instant leaves the interval (instants
// are monotonically increasing, so the first out-of-range instant ends the
// count).
func countForward(start, period uint64, iv TimeInterval, k0 uint64) (uint32, error) {
	var count uint64
	for k := k0; ; k++ {
		instant := start + k*period
		if !iv.Contains(instant) {
			if instant >= iv.End() {
				break
			}
			continue
		}
		count++
		if count > 1<<32-1 {
			return 0, fmt.Errorf("%w: time match count exceeds u32 range", ErrOverflow)
		}
	}
	return uint32(count), nil
}
