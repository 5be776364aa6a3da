package core

import "fmt"

// InstructionKind discriminates the closed instruction tagged union. The
// union is represented as one Go struct with a Kind discriminant and the
// union of possible payload fields, rather than an interface, so dispatch on
// the hot execution path is a switch instead of dynamic method lookup.
type InstructionKind uint8

const (
	InstructionRegister InstructionKind = iota
	InstructionUnregister
	InstructionMint
	InstructionBurn
	InstructionTransfer
	InstructionSetKeyValue
	InstructionRemoveKeyValue
	InstructionGrant
	InstructionRevoke
	InstructionExecuteTrigger
	InstructionSetParameter
	InstructionUpgrade
	InstructionLog
	InstructionCustom
)

// RegisterObjectKind enumerates the object kinds that Register/Unregister
// may target.
type RegisterObjectKind uint8

const (
	ObjectPeer RegisterObjectKind = iota
	ObjectDomain
	ObjectAccount
	ObjectAssetDefinition
	ObjectAsset
	ObjectRole
	ObjectTrigger
)

// MintBurnTarget discriminates whether a Mint/Burn targets an asset's value
// or a trigger's repeat count.
type MintBurnTarget uint8

const (
	TargetAsset MintBurnTarget = iota
	TargetTriggerRepeats
)

// TransferKind discriminates the four Transfer payload shapes.
type TransferKind uint8

const (
	TransferDomainOwnership TransferKind = iota
	TransferAssetDefinitionOwnership
	TransferAssetNumeric
	TransferAssetStore
)

// KeyValueObjectKind enumerates the object kinds SetKeyValue/RemoveKeyValue
// may target.
type KeyValueObjectKind uint8

const (
	KVDomain KeyValueObjectKind = iota
	KVAccount
	KVAssetDefinition
	KVAsset
	KVTrigger
)

// GrantRevokeObjectKind discriminates Permission vs RoleId as the granted
// object.
type GrantRevokeObjectKind uint8

const (
	GrantObjectPermission GrantRevokeObjectKind = iota
	GrantObjectRole
)

// GrantRevokeDestKind discriminates Account vs Role as the destination.
type GrantRevokeDestKind uint8

const (
	GrantDestAccount GrantRevokeDestKind = iota
	GrantDestRole
)

// LogLevel mirrors the small set of severities the Log instruction carries.
type LogLevel uint8

const (
	LogTrace LogLevel = iota
	LogDebug
	LogInfo
	LogWarn
	LogError
)

// Instruction is the closed tagged union of every state-mutating operation.
// Only the fields relevant to Kind are populated; the constructors below
// enforce that invariant. The fields are exported, so a struct literal built
// by hand is not checked.
type Instruction struct {
	Kind InstructionKind

	// Register / Unregister
	ObjectKind RegisterObjectKind
	Peer       *Peer
	Domain     *Domain
	Account    *Account
	AssetDef   *AssetDefinition
	Asset      *Asset
	Role       *Role
	Trigger    *Trigger
	UnregisterId any // one of DomainId/AccountId/AssetDefinitionId/AssetId/RoleId/TriggerId/PeerId

	// Mint / Burn
	MintBurnTarget  MintBurnTarget
	NumericValue    Numeric
	AssetDest       AssetId
	RepeatsValue    uint32
	TriggerDest     TriggerId

	// Transfer
	TransferKind      TransferKind
	TransferSrc       AccountId
	TransferDomainObj DomainId
	TransferAssetDefObj AssetDefinitionId
	TransferAssetObj  AssetId
	TransferNumeric   Numeric
	TransferMetadata  Metadata
	TransferDest      AccountId

	// SetKeyValue / RemoveKeyValue
	KVObjectKind KeyValueObjectKind
	KVObjectId   any
	KVKey        Name
	KVValue      []byte // raw JSON; nil for RemoveKeyValue

	// Grant / Revoke
	GrantObjectKind GrantRevokeObjectKind
	GrantPermission Permission
	GrantRole       RoleId
	GrantDestKind   GrantRevokeDestKind
	GrantDestAccount AccountId
	GrantDestRole    RoleId

	// ExecuteTrigger
	ExecuteTriggerId TriggerId
	ExecuteArgs      []byte // raw JSON

	// SetParameter
	Parameter Parameter

	// Upgrade
	ExecutorWasm []byte

	// Log
	LogLevel LogLevel
	LogMsg   string

	// Custom
	CustomPayload []byte // raw JSON
}

// NewRegisterDomain builds a Register(Domain) instruction.
func NewRegisterDomain(d Domain) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectDomain, Domain: &d}
}

// NewRegisterAccount builds a Register(Account) instruction.
func NewRegisterAccount(a Account) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectAccount, Account: &a}
}

// NewRegisterAssetDefinition builds a Register(AssetDefinition) instruction.
func NewRegisterAssetDefinition(d AssetDefinition) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectAssetDefinition, AssetDef: &d}
}

// NewRegisterAsset builds a Register(Asset) instruction.
func NewRegisterAsset(a Asset) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectAsset, Asset: &a}
}

// NewRegisterRole builds a Register(Role) instruction.
func NewRegisterRole(r Role) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectRole, Role: &r}
}

// NewRegisterPeer builds a Register(Peer) instruction.
func NewRegisterPeer(p Peer) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectPeer, Peer: &p}
}

// NewRegisterTrigger builds a Register(Trigger) instruction.
func NewRegisterTrigger(t Trigger) Instruction {
	return Instruction{Kind: InstructionRegister, ObjectKind: ObjectTrigger, Trigger: &t}
}

// NewUnregister builds an Unregister instruction for the given object kind
// and id (an identifier matching objectKind).
func NewUnregister(objectKind RegisterObjectKind, id any) Instruction {
	return Instruction{Kind: InstructionUnregister, ObjectKind: objectKind, UnregisterId: id}
}

// NewMintAsset builds a Mint instruction increasing an asset's value.
func NewMintAsset(value Numeric, dest AssetId) Instruction {
	return Instruction{Kind: InstructionMint, MintBurnTarget: TargetAsset, NumericValue: value, AssetDest: dest}
}

// NewMintTriggerRepeats builds a Mint instruction increasing a trigger's
// repeat count.
func NewMintTriggerRepeats(n uint32, dest TriggerId) Instruction {
	return Instruction{Kind: InstructionMint, MintBurnTarget: TargetTriggerRepeats, RepeatsValue: n, TriggerDest: dest}
}

// NewBurnAsset builds a Burn instruction decreasing an asset's value.
func NewBurnAsset(value Numeric, dest AssetId) Instruction {
	return Instruction{Kind: InstructionBurn, MintBurnTarget: TargetAsset, NumericValue: value, AssetDest: dest}
}

// NewBurnTriggerRepeats builds a Burn instruction decreasing a trigger's
// repeat count.
func NewBurnTriggerRepeats(n uint32, dest TriggerId) Instruction {
	return Instruction{Kind: InstructionBurn, MintBurnTarget: TargetTriggerRepeats, RepeatsValue: n, TriggerDest: dest}
}

// NewTransferDomainOwnership builds a Transfer instruction moving a domain's
// ownership between accounts.
func NewTransferDomainOwnership(src AccountId, domain DomainId, dest AccountId) Instruction {
	return Instruction{Kind: InstructionTransfer, TransferKind: TransferDomainOwnership, TransferSrc: src, TransferDomainObj: domain, TransferDest: dest}
}

// NewTransferAssetDefinitionOwnership builds a Transfer instruction moving
// an asset definition's ownership between accounts.
func NewTransferAssetDefinitionOwnership(src AccountId, def AssetDefinitionId, dest AccountId) Instruction {
	return Instruction{Kind: InstructionTransfer, TransferKind: TransferAssetDefinitionOwnership, TransferSrc: src, TransferAssetDefObj: def, TransferDest: dest}
}

// NewTransferAssetNumeric builds a Transfer instruction moving a numeric
// amount of an asset between accounts.
func NewTransferAssetNumeric(src AccountId, asset AssetId, amount Numeric, dest AccountId) Instruction {
	return Instruction{Kind: InstructionTransfer, TransferKind: TransferAssetNumeric, TransferSrc: src, TransferAssetObj: asset, TransferNumeric: amount, TransferDest: dest}
}

// NewTransferAssetStore builds a Transfer instruction moving a key-value
// ("store") asset between accounts.
func NewTransferAssetStore(src AccountId, asset AssetId, md Metadata, dest AccountId) Instruction {
	return Instruction{Kind: InstructionTransfer, TransferKind: TransferAssetStore, TransferSrc: src, TransferAssetObj: asset, TransferMetadata: md, TransferDest: dest}
}

// NewSetKeyValue builds a SetKeyValue instruction.
func NewSetKeyValue(objectKind KeyValueObjectKind, objectId any, key Name, value []byte) (Instruction, error) {
	if !jsonLooksValid(value) {
		return Instruction{}, fmt.Errorf("%w: SetKeyValue value is not valid JSON", ErrInvalid)
	}
	return Instruction{Kind: InstructionSetKeyValue, KVObjectKind: objectKind, KVObjectId: objectId, KVKey: key, KVValue: value}, nil
}

// NewRemoveKeyValue builds a RemoveKeyValue instruction.
func NewRemoveKeyValue(objectKind KeyValueObjectKind, objectId any, key Name) Instruction {
	return Instruction{Kind: InstructionRemoveKeyValue, KVObjectKind: objectKind, KVObjectId: objectId, KVKey: key}
}

// NewGrantPermissionToAccount builds a Grant instruction giving a permission
// to an account.
func NewGrantPermissionToAccount(p Permission, dest AccountId) Instruction {
	return Instruction{Kind: InstructionGrant, GrantObjectKind: GrantObjectPermission, GrantPermission: p, GrantDestKind: GrantDestAccount, GrantDestAccount: dest}
}

// NewGrantRoleToAccount builds a Grant instruction giving a role to an
// account.
func NewGrantRoleToAccount(r RoleId, dest AccountId) Instruction {
	return Instruction{Kind: InstructionGrant, GrantObjectKind: GrantObjectRole, GrantRole: r, GrantDestKind: GrantDestAccount, GrantDestAccount: dest}
}

// NewRevokePermissionFromAccount builds a Revoke instruction.
func NewRevokePermissionFromAccount(p Permission, dest AccountId) Instruction {
	return Instruction{Kind: InstructionRevoke, GrantObjectKind: GrantObjectPermission, GrantPermission: p, GrantDestKind: GrantDestAccount, GrantDestAccount: dest}
}

// NewRevokeRoleFromAccount builds a Revoke instruction.
func NewRevokeRoleFromAccount(r RoleId, dest AccountId) Instruction {
	return Instruction{Kind: InstructionRevoke, GrantObjectKind: GrantObjectRole, GrantRole: r, GrantDestKind: GrantDestAccount, GrantDestAccount: dest}
}

// NewGrantPermissionToRole builds a Grant instruction adding a permission to
// a role's own permission set, rather than to one account. There is no
// Role-to-Role grant: roles are not nestable here, matching the original.
func NewGrantPermissionToRole(p Permission, dest RoleId) Instruction {
	return Instruction{Kind: InstructionGrant, GrantObjectKind: GrantObjectPermission, GrantPermission: p, GrantDestKind: GrantDestRole, GrantDestRole: dest}
}

// NewRevokePermissionFromRole builds a Revoke instruction removing a
// permission from a role's own permission set.
func NewRevokePermissionFromRole(p Permission, dest RoleId) Instruction {
	return Instruction{Kind: InstructionRevoke, GrantObjectKind: GrantObjectPermission, GrantPermission: p, GrantDestKind: GrantDestRole, GrantDestRole: dest}
}

// NewExecuteTrigger builds an ExecuteTrigger instruction.
func NewExecuteTrigger(id TriggerId, args []byte) (Instruction, error) {
	if args != nil && !jsonLooksValid(args) {
		return Instruction{}, fmt.Errorf("%w: ExecuteTrigger args is not valid JSON", ErrInvalid)
	}
	return Instruction{Kind: InstructionExecuteTrigger, ExecuteTriggerId: id, ExecuteArgs: args}, nil
}

// NewSetParameter builds a SetParameter instruction.
func NewSetParameter(p Parameter) Instruction {
	return Instruction{Kind: InstructionSetParameter, Parameter: p}
}

// NewUpgrade builds an Upgrade instruction carrying the new executor's WASM
// bytecode.
func NewUpgrade(wasm []byte) Instruction {
	return Instruction{Kind: InstructionUpgrade, ExecutorWasm: wasm}
}

// NewLog builds a Log instruction.
func NewLog(level LogLevel, msg string) Instruction {
	return Instruction{Kind: InstructionLog, LogLevel: level, LogMsg: msg}
}

// NewCustom builds a Custom instruction carrying an opaque JSON payload.
func NewCustom(payload []byte) (Instruction, error) {
	if !jsonLooksValid(payload) {
		return Instruction{}, fmt.Errorf("%w: Custom payload is not valid JSON", ErrInvalid)
	}
	return Instruction{Kind: InstructionCustom, CustomPayload: payload}, nil
}
