package core

import (
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// World is the in-memory ledger state that instructions apply against: the
// map-of-maps for every entity kind, the access registry backing Grant/
// Revoke, the active Parameters bundle, and the trigger set. Apply enforces
// the structural invariants: an Account's domain must equal its AccountId's
// domain component, an AssetId's account and definition must exist,
// AssetDefinition.TotalQuantity tracks the sum of its Asset values, and so
// on. A single RWMutex guards the whole map-of-maps: one coarse lock over a
// nested map rather than one lock per entity kind — cross-entity operations
// like Transfer need several maps consistent at once, which per-kind locks
// would not give for free.
type World struct {
	mu sync.RWMutex

	domains          map[DomainId]Domain
	accounts         map[AccountId]Account
	assetDefinitions map[AssetDefinitionId]AssetDefinition
	assets           map[AssetId]Asset
	roles            map[RoleId]Role
	peers            map[PeerId]Peer

	parameters Parameters
	access     *AccessRegistry
	triggers   *TriggerSet
	logger     *log.Logger

	executorWasm []byte
}

// NewWorld constructs an empty World backed by the given WASM engine handle
// (shared with the trigger set for preloading WASM triggers and upgrades).
func NewWorld(engine *WasmEngine) *World {
	return &World{
		domains:          make(map[DomainId]Domain),
		accounts:         make(map[AccountId]Account),
		assetDefinitions: make(map[AssetDefinitionId]AssetDefinition),
		assets:           make(map[AssetId]Asset),
		roles:            make(map[RoleId]Role),
		peers:            make(map[PeerId]Peer),
		parameters:       DefaultParameters(),
		access:           NewAccessRegistry(),
		triggers:         NewTriggerSet(engine),
		logger:           Logger,
	}
}

// SetLogger replaces the World's logger; nil restores the package default.
func (w *World) SetLogger(l *log.Logger) {
	if l == nil {
		l = Logger
	}
	w.logger = l
}

func (w *World) Parameters() Parameters { w.mu.RLock(); defer w.mu.RUnlock(); return w.parameters }
func (w *World) Triggers() *TriggerSet  { return w.triggers }
func (w *World) Access() *AccessRegistry { return w.access }

// Snapshot copies the World's state, runs fn, and restores the copy if fn
// returns an error, giving callers a rollback boundary around a sequence of
// Apply calls (a whole transaction). The lock is not held while fn runs —
// fn is expected to call Apply, which takes it per instruction — so the
// rollback guarantee assumes a single writer for the duration of fn, which
// is the block-application model this package is built for. Because the
// maps are flat value maps (not pointers to mutable sub-objects), restoring
// means swapping back copied map headers, which is cheap relative to
// rebuilding state from a log. Only the entity maps and the Parameters are
// copied: the trigger set, the access registry and the executor WASM are not
// part of the copy and are not rolled back.
func (w *World) Snapshot(fn func() error) error {
	w.mu.Lock()
	before := w.copyLocked()
	w.mu.Unlock()

	if err := fn(); err != nil {
		w.mu.Lock()
		w.restoreLocked(before)
		w.mu.Unlock()
		return err
	}
	return nil
}

type worldState struct {
	domains          map[DomainId]Domain
	accounts         map[AccountId]Account
	assetDefinitions map[AssetDefinitionId]AssetDefinition
	assets           map[AssetId]Asset
	roles            map[RoleId]Role
	peers            map[PeerId]Peer
	parameters       Parameters
}

func (w *World) copyLocked() worldState {
	s := worldState{
		domains:          make(map[DomainId]Domain, len(w.domains)),
		accounts:         make(map[AccountId]Account, len(w.accounts)),
		assetDefinitions: make(map[AssetDefinitionId]AssetDefinition, len(w.assetDefinitions)),
		assets:           make(map[AssetId]Asset, len(w.assets)),
		roles:            make(map[RoleId]Role, len(w.roles)),
		peers:            make(map[PeerId]Peer, len(w.peers)),
		parameters:       w.parameters,
	}
	for k, v := range w.domains {
		s.domains[k] = v
	}
	for k, v := range w.accounts {
		s.accounts[k] = v
	}
	for k, v := range w.assetDefinitions {
		s.assetDefinitions[k] = v
	}
	for k, v := range w.assets {
		s.assets[k] = v
	}
	for k, v := range w.roles {
		s.roles[k] = v
	}
	for k, v := range w.peers {
		s.peers[k] = v
	}
	return s
}

func (w *World) restoreLocked(s worldState) {
	w.domains = s.domains
	w.accounts = s.accounts
	w.assetDefinitions = s.assetDefinitions
	w.assets = s.assets
	w.roles = s.roles
	w.peers = s.peers
	w.parameters = s.parameters
}

// Apply executes one instruction against World state without taking a
// snapshot; callers that need atomicity across several instructions (a
// whole transaction) should wrap the sequence in Snapshot themselves.
func (w *World) Apply(ins Instruction) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ins.Kind {
	case InstructionRegister:
		return w.applyRegister(ins)
	case InstructionUnregister:
		return w.applyUnregister(ins)
	case InstructionMint:
		return w.applyMint(ins)
	case InstructionBurn:
		return w.applyBurn(ins)
	case InstructionTransfer:
		return w.applyTransfer(ins)
	case InstructionSetKeyValue:
		return w.applySetKeyValue(ins)
	case InstructionRemoveKeyValue:
		return w.applyRemoveKeyValue(ins)
	case InstructionGrant:
		return w.applyGrant(ins)
	case InstructionRevoke:
		return w.applyRevoke(ins)
	case InstructionExecuteTrigger:
		w.triggers.HandleExecuteTriggerEvent(ExecuteTriggerEvent{
			TriggerId: ins.ExecuteTriggerId,
			Args:      ins.ExecuteArgs,
		})
		return nil
	case InstructionSetParameter:
		w.parameters = ins.Parameter.Apply(w.parameters)
		return nil
	case InstructionUpgrade:
		w.executorWasm = ins.ExecutorWasm
		return nil
	case InstructionLog:
		w.logInstruction(ins.LogLevel, ins.LogMsg)
		return nil // side-effect only; no core state changes
	case InstructionCustom:
		return nil // opaque to the core; interpreted by the executor
	default:
		return fmt.Errorf("%w: unknown instruction kind %d", ErrStructural, ins.Kind)
	}
}

func (w *World) applyRegister(ins Instruction) error {
	switch ins.ObjectKind {
	case ObjectDomain:
		if _, exists := w.domains[ins.Domain.Id]; exists {
			return fmt.Errorf("%w: domain %s already registered", ErrInvalid, ins.Domain.Id)
		}
		w.domains[ins.Domain.Id] = *ins.Domain
	case ObjectAccount:
		// Account carries no domain field of its own — only Id.Domain — so
		// "an account's domain equals its AccountId's domain component" holds
		// structurally and needs no separate check here.
		acc := *ins.Account
		if _, exists := w.domains[acc.Id.Domain]; !exists {
			return fmt.Errorf("%w: account domain %s does not exist", ErrInvalid, acc.Id.Domain)
		}
		if _, exists := w.accounts[acc.Id]; exists {
			return fmt.Errorf("%w: account %s already registered", ErrInvalid, acc.Id)
		}
		w.accounts[acc.Id] = acc
	case ObjectAssetDefinition:
		def := *ins.AssetDef
		if _, exists := w.domains[def.Id.Domain]; !exists {
			return fmt.Errorf("%w: asset definition domain %s does not exist", ErrInvalid, def.Id.Domain)
		}
		if _, exists := w.assetDefinitions[def.Id]; exists {
			return fmt.Errorf("%w: asset definition %s already registered", ErrInvalid, def.Id)
		}
		w.assetDefinitions[def.Id] = def
	case ObjectAsset:
		a := *ins.Asset
		if _, exists := w.accounts[a.Id.Account]; !exists {
			return fmt.Errorf("%w: asset account %s does not exist", ErrInvalid, a.Id.Account)
		}
		def, exists := w.assetDefinitions[a.Id.Definition]
		if !exists {
			return fmt.Errorf("%w: asset definition %s does not exist", ErrInvalid, a.Id.Definition)
		}
		if _, exists := w.assets[a.Id]; exists {
			return fmt.Errorf("%w: asset %s already registered", ErrInvalid, a.Id)
		}
		def.TotalQuantity = def.TotalQuantity.Add(a.Value)
		w.assetDefinitions[def.Id] = def
		w.assets[a.Id] = a
	case ObjectRole:
		r := *ins.Role
		if _, exists := w.roles[r.Id]; exists {
			return fmt.Errorf("%w: role %s already registered", ErrInvalid, r.Id)
		}
		w.roles[r.Id] = r
	case ObjectPeer:
		p := *ins.Peer
		if _, exists := w.peers[p.Id]; exists {
			return fmt.Errorf("%w: peer %s already registered", ErrInvalid, p.Id)
		}
		w.peers[p.Id] = p
	case ObjectTrigger:
		t := *ins.Trigger
		if w.triggers.Contains(t.Id) {
			return fmt.Errorf("%w: trigger %s already registered", ErrInvalid, t.Id)
		}
		var ok bool
		var err error
		switch t.Action.Filter.EventType {
		case EventTypeData:
			ok, err = w.triggers.AddDataTrigger(t)
		case EventTypePipeline:
			ok, err = w.triggers.AddPipelineTrigger(t)
		case EventTypeTime:
			ok, err = w.triggers.AddTimeTrigger(t)
		case EventTypeExecuteTrigger:
			ok, err = w.triggers.AddByCallTrigger(t)
		default:
			return fmt.Errorf("%w: trigger %s has no registrable filter event type", ErrInvalid, t.Id)
		}
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: trigger %s already registered", ErrInvalid, t.Id)
		}
	default:
		return fmt.Errorf("%w: unknown register object kind %d", ErrStructural, ins.ObjectKind)
	}
	return nil
}

func (w *World) applyUnregister(ins Instruction) error {
	switch ins.ObjectKind {
	case ObjectDomain:
		id := ins.UnregisterId.(DomainId)
		if _, exists := w.domains[id]; !exists {
			return fmt.Errorf("%w: domain %s", ErrNotFound, id)
		}
		delete(w.domains, id)
	case ObjectAccount:
		id := ins.UnregisterId.(AccountId)
		if _, exists := w.accounts[id]; !exists {
			return fmt.Errorf("%w: account %s", ErrNotFound, id)
		}
		delete(w.accounts, id)
	case ObjectAssetDefinition:
		id := ins.UnregisterId.(AssetDefinitionId)
		if _, exists := w.assetDefinitions[id]; !exists {
			return fmt.Errorf("%w: asset definition %s", ErrNotFound, id)
		}
		delete(w.assetDefinitions, id)
	case ObjectAsset:
		id := ins.UnregisterId.(AssetId)
		a, exists := w.assets[id]
		if !exists {
			return fmt.Errorf("%w: asset %s", ErrNotFound, id)
		}
		if def, ok := w.assetDefinitions[id.Definition]; ok {
			def.TotalQuantity = def.TotalQuantity.Sub(a.Value)
			w.assetDefinitions[def.Id] = def
		}
		delete(w.assets, id)
	case ObjectRole:
		id := ins.UnregisterId.(RoleId)
		if _, exists := w.roles[id]; !exists {
			return fmt.Errorf("%w: role %s", ErrNotFound, id)
		}
		delete(w.roles, id)
	case ObjectPeer:
		id := ins.UnregisterId.(PeerId)
		if _, exists := w.peers[id]; !exists {
			return fmt.Errorf("%w: peer %s", ErrNotFound, id)
		}
		delete(w.peers, id)
	case ObjectTrigger:
		id := ins.UnregisterId.(TriggerId)
		if !w.triggers.Remove(id) {
			return fmt.Errorf("%w: trigger %s", ErrNotFound, id)
		}
	default:
		return fmt.Errorf("%w: unknown unregister object kind %d", ErrStructural, ins.ObjectKind)
	}
	return nil
}

func (w *World) applyMint(ins Instruction) error {
	if ins.MintBurnTarget == TargetTriggerRepeats {
		return w.triggers.ModRepeats(ins.TriggerDest, func(n uint32) (uint32, error) {
			next := n + ins.RepeatsValue
			if next < n {
				return 0, fmt.Errorf("%w: trigger repeats mint overflow", ErrOverflow)
			}
			return next, nil
		})
	}
	asset, ok := w.assets[ins.AssetDest]
	if !ok {
		return fmt.Errorf("%w: asset %s", ErrNotFound, ins.AssetDest)
	}
	def, ok := w.assetDefinitions[asset.Id.Definition]
	if !ok {
		return fmt.Errorf("%w: asset definition %s", ErrNotFound, asset.Id.Definition)
	}
	switch def.Mintability {
	case MintNot:
		return fmt.Errorf("%w: asset definition %s is not mintable", ErrInvalid, def.Id)
	case MintOnce:
		if def.TotalQuantity.Sign() != 0 {
			return fmt.Errorf("%w: asset definition %s already minted once", ErrInvalid, def.Id)
		}
	}
	asset.Value = asset.Value.Add(ins.NumericValue)
	def.TotalQuantity = def.TotalQuantity.Add(ins.NumericValue)
	if def.Mintability == MintOnce {
		def.Mintability = MintNot
	}
	w.assets[asset.Id] = asset
	w.assetDefinitions[def.Id] = def
	return nil
}

func (w *World) applyBurn(ins Instruction) error {
	if ins.MintBurnTarget == TargetTriggerRepeats {
		return w.triggers.ModRepeats(ins.TriggerDest, func(n uint32) (uint32, error) {
			if ins.RepeatsValue > n {
				return 0, fmt.Errorf("%w: cannot burn more repeats than remain", ErrOverflow)
			}
			return n - ins.RepeatsValue, nil
		})
	}
	asset, ok := w.assets[ins.AssetDest]
	if !ok {
		return fmt.Errorf("%w: asset %s", ErrNotFound, ins.AssetDest)
	}
	def, ok := w.assetDefinitions[asset.Id.Definition]
	if !ok {
		return fmt.Errorf("%w: asset definition %s", ErrNotFound, asset.Id.Definition)
	}
	newValue, err := asset.Value.CheckedSub(ins.NumericValue)
	if err != nil {
		return fmt.Errorf("%w: not enough quantity to burn from %s", ErrOverflow, asset.Id)
	}
	newTotal, err := def.TotalQuantity.CheckedSub(ins.NumericValue)
	if err != nil {
		return fmt.Errorf("%w: burn would underflow total quantity of %s", ErrOverflow, def.Id)
	}
	asset.Value = newValue
	def.TotalQuantity = newTotal
	w.assets[asset.Id] = asset
	w.assetDefinitions[def.Id] = def
	return nil
}

func (w *World) applyTransfer(ins Instruction) error {
	if _, ok := w.accounts[ins.TransferSrc]; !ok {
		return fmt.Errorf("%w: transfer source account %s", ErrNotFound, ins.TransferSrc)
	}
	if _, ok := w.accounts[ins.TransferDest]; !ok {
		return fmt.Errorf("%w: transfer destination account %s", ErrNotFound, ins.TransferDest)
	}

	switch ins.TransferKind {
	case TransferDomainOwnership:
		dom, ok := w.domains[ins.TransferDomainObj]
		if !ok {
			return fmt.Errorf("%w: domain %s", ErrNotFound, ins.TransferDomainObj)
		}
		if !dom.Owner.Equal(ins.TransferSrc) {
			return fmt.Errorf("%w: %s is not the owner of domain %s", ErrInvalid, ins.TransferSrc, dom.Id)
		}
		dom.Owner = ins.TransferDest
		w.domains[dom.Id] = dom

	case TransferAssetDefinitionOwnership:
		def, ok := w.assetDefinitions[ins.TransferAssetDefObj]
		if !ok {
			return fmt.Errorf("%w: asset definition %s", ErrNotFound, ins.TransferAssetDefObj)
		}
		if !def.Owner.Equal(ins.TransferSrc) {
			return fmt.Errorf("%w: %s is not the owner of asset definition %s", ErrInvalid, ins.TransferSrc, def.Id)
		}
		def.Owner = ins.TransferDest
		w.assetDefinitions[def.Id] = def

	case TransferAssetNumeric:
		srcAsset, ok := w.assets[ins.TransferAssetObj]
		if !ok {
			return fmt.Errorf("%w: asset %s", ErrNotFound, ins.TransferAssetObj)
		}
		if !srcAsset.Id.Account.Equal(ins.TransferSrc) {
			return fmt.Errorf("%w: asset %s is not held by %s", ErrInvalid, srcAsset.Id, ins.TransferSrc)
		}
		if srcAsset.Value.Cmp(ins.TransferNumeric) < 0 {
			return fmt.Errorf("%w: transfer amount exceeds balance of %s", ErrOverflow, srcAsset.Id)
		}
		destId := AssetId{Definition: srcAsset.Id.Definition, Account: ins.TransferDest}
		destAsset, exists := w.assets[destId]
		if !exists {
			destAsset = Asset{Id: destId, Value: ZeroNumeric(srcAsset.Value.Scale)}
		}
		srcAsset.Value = srcAsset.Value.Sub(ins.TransferNumeric)
		destAsset.Value = destAsset.Value.Add(ins.TransferNumeric)
		w.assets[srcAsset.Id] = srcAsset
		w.assets[destAsset.Id] = destAsset

	case TransferAssetStore:
		srcAsset, ok := w.assets[ins.TransferAssetObj]
		if !ok {
			return fmt.Errorf("%w: asset %s", ErrNotFound, ins.TransferAssetObj)
		}
		if !srcAsset.Id.Account.Equal(ins.TransferSrc) {
			return fmt.Errorf("%w: asset %s is not held by %s", ErrInvalid, srcAsset.Id, ins.TransferSrc)
		}
		destId := AssetId{Definition: srcAsset.Id.Definition, Account: ins.TransferDest}
		delete(w.assets, srcAsset.Id)
		w.assets[destId] = Asset{Id: destId, Value: srcAsset.Value, Metadata: srcAsset.Metadata}

	default:
		return fmt.Errorf("%w: unknown transfer kind %d", ErrStructural, ins.TransferKind)
	}
	return nil
}

func (w *World) applySetKeyValue(ins Instruction) error {
	switch ins.KVObjectKind {
	case KVDomain:
		id := ins.KVObjectId.(DomainId)
		d, ok := w.domains[id]
		if !ok {
			return fmt.Errorf("%w: domain %s", ErrNotFound, id)
		}
		md, err := mergeMetadata(d.Metadata, ins.KVKey, ins.KVValue)
		if err != nil {
			return err
		}
		d.Metadata = md
		w.domains[id] = d
	case KVAccount:
		id := ins.KVObjectId.(AccountId)
		a, ok := w.accounts[id]
		if !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, id)
		}
		md, err := mergeMetadata(a.Metadata, ins.KVKey, ins.KVValue)
		if err != nil {
			return err
		}
		a.Metadata = md
		w.accounts[id] = a
	case KVAssetDefinition:
		id := ins.KVObjectId.(AssetDefinitionId)
		d, ok := w.assetDefinitions[id]
		if !ok {
			return fmt.Errorf("%w: asset definition %s", ErrNotFound, id)
		}
		md, err := mergeMetadata(d.Metadata, ins.KVKey, ins.KVValue)
		if err != nil {
			return err
		}
		d.Metadata = md
		w.assetDefinitions[id] = d
	case KVAsset:
		id := ins.KVObjectId.(AssetId)
		a, ok := w.assets[id]
		if !ok {
			return fmt.Errorf("%w: asset %s", ErrNotFound, id)
		}
		md, err := mergeMetadata(a.Metadata, ins.KVKey, ins.KVValue)
		if err != nil {
			return err
		}
		a.Metadata = md
		w.assets[id] = a
	case KVTrigger:
		id := ins.KVObjectId.(TriggerId)
		return w.triggers.ModMetadata(id, func(md Metadata) (Metadata, error) {
			return mergeMetadata(md, ins.KVKey, ins.KVValue)
		})
	default:
		return fmt.Errorf("%w: unknown key-value object kind %d", ErrStructural, ins.KVObjectKind)
	}
	return nil
}

func (w *World) applyRemoveKeyValue(ins Instruction) error {
	switch ins.KVObjectKind {
	case KVDomain:
		id := ins.KVObjectId.(DomainId)
		d, ok := w.domains[id]
		if !ok {
			return fmt.Errorf("%w: domain %s", ErrNotFound, id)
		}
		if _, present := d.Metadata.Get(ins.KVKey); !present {
			return fmt.Errorf("%w: key %s", ErrNotFound, ins.KVKey)
		}
		d.Metadata = removeMetadataKey(d.Metadata, ins.KVKey)
		w.domains[id] = d
	case KVAccount:
		id := ins.KVObjectId.(AccountId)
		a, ok := w.accounts[id]
		if !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, id)
		}
		if _, present := a.Metadata.Get(ins.KVKey); !present {
			return fmt.Errorf("%w: key %s", ErrNotFound, ins.KVKey)
		}
		a.Metadata = removeMetadataKey(a.Metadata, ins.KVKey)
		w.accounts[id] = a
	case KVAssetDefinition:
		id := ins.KVObjectId.(AssetDefinitionId)
		d, ok := w.assetDefinitions[id]
		if !ok {
			return fmt.Errorf("%w: asset definition %s", ErrNotFound, id)
		}
		if _, present := d.Metadata.Get(ins.KVKey); !present {
			return fmt.Errorf("%w: key %s", ErrNotFound, ins.KVKey)
		}
		d.Metadata = removeMetadataKey(d.Metadata, ins.KVKey)
		w.assetDefinitions[id] = d
	case KVAsset:
		id := ins.KVObjectId.(AssetId)
		a, ok := w.assets[id]
		if !ok {
			return fmt.Errorf("%w: asset %s", ErrNotFound, id)
		}
		if _, present := a.Metadata.Get(ins.KVKey); !present {
			return fmt.Errorf("%w: key %s", ErrNotFound, ins.KVKey)
		}
		a.Metadata = removeMetadataKey(a.Metadata, ins.KVKey)
		w.assets[id] = a
	case KVTrigger:
		id := ins.KVObjectId.(TriggerId)
		return w.triggers.ModMetadata(id, func(md Metadata) (Metadata, error) {
			if _, present := md.Get(ins.KVKey); !present {
				return Metadata{}, fmt.Errorf("%w: key %s", ErrNotFound, ins.KVKey)
			}
			return removeMetadataKey(md, ins.KVKey), nil
		})
	default:
		return fmt.Errorf("%w: unknown key-value object kind %d", ErrStructural, ins.KVObjectKind)
	}
	return nil
}

func (w *World) logInstruction(level LogLevel, msg string) {
	entry := w.logger.WithField("source", "instruction")
	switch level {
	case LogTrace:
		entry.Trace(msg)
	case LogDebug:
		entry.Debug(msg)
	case LogInfo:
		entry.Info(msg)
	case LogWarn:
		entry.Warn(msg)
	case LogError:
		entry.Error(msg)
	}
}

func mergeMetadata(md Metadata, key Name, value []byte) (Metadata, error) {
	raw := map[string]any{}
	for _, k := range md.Keys() {
		v, _ := md.Get(k)
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return Metadata{}, fmt.Errorf("%w: re-encode existing metadata: %v", ErrStructural, err)
		}
		raw[string(k)] = decoded
	}
	var decodedValue any
	if err := json.Unmarshal(value, &decodedValue); err != nil {
		return Metadata{}, fmt.Errorf("%w: SetKeyValue value is not valid JSON", ErrInvalid)
	}
	raw[string(key)] = decodedValue
	return NewMetadata(raw)
}

func removeMetadataKey(md Metadata, key Name) Metadata {
	raw := map[string]any{}
	for _, k := range md.Keys() {
		if k == key {
			continue
		}
		v, _ := md.Get(k)
		var decoded any
		_ = json.Unmarshal(v, &decoded)
		raw[string(k)] = decoded
	}
	out, _ := NewMetadata(raw)
	return out
}

func (w *World) applyGrant(ins Instruction) error {
	switch ins.GrantDestKind {
	case GrantDestAccount:
		if _, ok := w.accounts[ins.GrantDestAccount]; !ok {
			return fmt.Errorf("%w: account %s", ErrNotFound, ins.GrantDestAccount)
		}
		switch ins.GrantObjectKind {
		case GrantObjectRole:
			return w.access.GrantRole(ins.GrantDestAccount, ins.GrantRole)
		case GrantObjectPermission:
			return w.access.GrantPermission(ins.GrantDestAccount, ins.GrantPermission.Name)
		default:
			return fmt.Errorf("%w: unknown grant object kind %d", ErrStructural, ins.GrantObjectKind)
		}
	case GrantDestRole:
		// Roles are not nestable: only a bare Permission can be granted to a
		// Role, never another Role.
		if ins.GrantObjectKind != GrantObjectPermission {
			return fmt.Errorf("%w: a Role cannot be granted to a Role", ErrStructural)
		}
		role, ok := w.roles[ins.GrantDestRole]
		if !ok {
			return fmt.Errorf("%w: role %s", ErrNotFound, ins.GrantDestRole)
		}
		for _, p := range role.Permissions {
			if p.Name == ins.GrantPermission.Name {
				return fmt.Errorf("%w: permission %s already granted to role %s", ErrInvalid, p.Name, role.Id)
			}
		}
		role.Permissions = append(role.Permissions, ins.GrantPermission)
		w.roles[role.Id] = role
		return nil
	default:
		return fmt.Errorf("%w: unknown grant destination kind %d", ErrStructural, ins.GrantDestKind)
	}
}

func (w *World) applyRevoke(ins Instruction) error {
	switch ins.GrantDestKind {
	case GrantDestAccount:
		switch ins.GrantObjectKind {
		case GrantObjectRole:
			return w.access.RevokeRole(ins.GrantDestAccount, ins.GrantRole)
		case GrantObjectPermission:
			return w.access.RevokePermission(ins.GrantDestAccount, ins.GrantPermission.Name)
		default:
			return fmt.Errorf("%w: unknown grant object kind %d", ErrStructural, ins.GrantObjectKind)
		}
	case GrantDestRole:
		if ins.GrantObjectKind != GrantObjectPermission {
			return fmt.Errorf("%w: a Role cannot be revoked from a Role", ErrStructural)
		}
		role, ok := w.roles[ins.GrantDestRole]
		if !ok {
			return fmt.Errorf("%w: role %s", ErrNotFound, ins.GrantDestRole)
		}
		idx := -1
		for i, p := range role.Permissions {
			if p.Name == ins.GrantPermission.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: permission %s not granted to role %s", ErrNotFound, ins.GrantPermission.Name, role.Id)
		}
		role.Permissions = append(role.Permissions[:idx], role.Permissions[idx+1:]...)
		w.roles[role.Id] = role
		return nil
	default:
		return fmt.Errorf("%w: unknown grant destination kind %d", ErrStructural, ins.GrantDestKind)
	}
}
