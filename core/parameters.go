package core

import (
	"bytes"
	"fmt"
	"math/bits"
)

// NonZeroU64 is a u64 guaranteed non-zero and representable in a machine
// word, enforced at construction — the decode-time validation every
// parameter field in this bundle requires.
type NonZeroU64 struct{ v uint64 }

func NewNonZeroU64(v uint64) (NonZeroU64, error) {
	if v == 0 {
		return NonZeroU64{}, fmt.Errorf("%w: parameter value must be non-zero", ErrInvalid)
	}
	if bits.UintSize < 64 && v > uint64(^uint(0)) {
		return NonZeroU64{}, fmt.Errorf("%w: parameter value %d does not fit in machine word", ErrInvalid, v)
	}
	return NonZeroU64{v: v}, nil
}

func (n NonZeroU64) Value() uint64 { return n.v }

// SumeragiParameters controls consensus timing. Opaque to the core beyond
// validation; interpreted by the consensus collaborator.
type SumeragiParameters struct {
	BlockTimeMs     uint64
	CommitTimeMs    uint64
	MaxClockDriftMs uint64
}

func DefaultSumeragiParameters() SumeragiParameters {
	return SumeragiParameters{BlockTimeMs: 2000, CommitTimeMs: 4000, MaxClockDriftMs: 1000}
}

// BlockParameters bounds a block's contents.
type BlockParameters struct {
	MaxTransactions NonZeroU64
}

func DefaultBlockParameters() BlockParameters {
	n, _ := NewNonZeroU64(1 << 9)
	return BlockParameters{MaxTransactions: n}
}

// TransactionParameters bounds a single transaction.
type TransactionParameters struct {
	MaxInstructions    NonZeroU64
	SmartContractSize  NonZeroU64 // bytes
}

func DefaultTransactionParameters() TransactionParameters {
	maxInstr, _ := NewNonZeroU64(1 << 12)
	scSize, _ := NewNonZeroU64(4 * (1 << 20))
	return TransactionParameters{MaxInstructions: maxInstr, SmartContractSize: scSize}
}

// SmartContractParameters bounds WASM trigger execution.
type SmartContractParameters struct {
	Fuel   NonZeroU64
	Memory NonZeroU64
}

func DefaultSmartContractParameters() SmartContractParameters {
	fuel, _ := NewNonZeroU64(55_000_000)
	mem, _ := NewNonZeroU64(55_000_000)
	return SmartContractParameters{Fuel: fuel, Memory: mem}
}

// ExecutorParameters bounds the active executor's own WASM execution.
type ExecutorParameters struct {
	Fuel   NonZeroU64
	Memory NonZeroU64
}

func DefaultExecutorParameters() ExecutorParameters {
	fuel, _ := NewNonZeroU64(55_000_000)
	mem, _ := NewNonZeroU64(55_000_000)
	return ExecutorParameters{Fuel: fuel, Memory: mem}
}

// CustomParameterId and CustomParameter let an executor define parameters
// the core doesn't know the shape of.
type CustomParameterId struct{ Name Name }

type CustomParameter struct {
	Id      CustomParameterId
	Payload []byte // raw JSON
}

// Parameters is the fixed aggregate of every tunable the core validates at
// decode time, plus an open map of custom parameters.
type Parameters struct {
	Sumeragi       SumeragiParameters
	Block          BlockParameters
	Transaction    TransactionParameters
	SmartContract  SmartContractParameters
	Executor       ExecutorParameters
	Custom         map[CustomParameterId]CustomParameter
}

func DefaultParameters() Parameters {
	return Parameters{
		Sumeragi:      DefaultSumeragiParameters(),
		Block:         DefaultBlockParameters(),
		Transaction:   DefaultTransactionParameters(),
		SmartContract: DefaultSmartContractParameters(),
		Executor:      DefaultExecutorParameters(),
		Custom:        map[CustomParameterId]CustomParameter{},
	}
}

// ParameterKind discriminates the SetParameter instruction's payload.
type ParameterKind uint8

const (
	ParamSumeragi ParameterKind = iota
	ParamBlock
	ParamTransaction
	ParamSmartContract
	ParamExecutor
	ParamCustom
)

// Parameter is the tagged payload of a SetParameter instruction: exactly
// one named parameter value, replacing the corresponding sub-bundle field
// or custom entry wholesale.
type Parameter struct {
	Kind ParameterKind

	Sumeragi      SumeragiParameters
	Block         BlockParameters
	Transaction   TransactionParameters
	SmartContract SmartContractParameters
	Executor      ExecutorParameters
	Custom        CustomParameter
}

// CanonicalBytes encodes the parameter's discriminant and the full value it
// carries, so a SetParameter instruction's hash covers what is being set.
func (p Parameter) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeTag(&buf, byte(p.Kind))
	switch p.Kind {
	case ParamSumeragi:
		writeU64LE(&buf, p.Sumeragi.BlockTimeMs)
		writeU64LE(&buf, p.Sumeragi.CommitTimeMs)
		writeU64LE(&buf, p.Sumeragi.MaxClockDriftMs)
	case ParamBlock:
		writeU64LE(&buf, p.Block.MaxTransactions.Value())
	case ParamTransaction:
		writeU64LE(&buf, p.Transaction.MaxInstructions.Value())
		writeU64LE(&buf, p.Transaction.SmartContractSize.Value())
	case ParamSmartContract:
		writeU64LE(&buf, p.SmartContract.Fuel.Value())
		writeU64LE(&buf, p.SmartContract.Memory.Value())
	case ParamExecutor:
		writeU64LE(&buf, p.Executor.Fuel.Value())
		writeU64LE(&buf, p.Executor.Memory.Value())
	case ParamCustom:
		writeLenPrefixed(&buf, []byte(p.Custom.Id.Name))
		writeLenPrefixed(&buf, p.Custom.Payload)
	}
	return buf.Bytes()
}

// Apply replaces the relevant sub-bundle of params with p's value,
// returning the updated Parameters.
func (p Parameter) Apply(params Parameters) Parameters {
	switch p.Kind {
	case ParamSumeragi:
		params.Sumeragi = p.Sumeragi
	case ParamBlock:
		params.Block = p.Block
	case ParamTransaction:
		params.Transaction = p.Transaction
	case ParamSmartContract:
		params.SmartContract = p.SmartContract
	case ParamExecutor:
		params.Executor = p.Executor
	case ParamCustom:
		if params.Custom == nil {
			params.Custom = map[CustomParameterId]CustomParameter{}
		}
		params.Custom[p.Custom.Id] = p.Custom
	}
	return params
}
