package core

import (
	"errors"
	"math/big"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func testWorld(t *testing.T) *World {
	t.Helper()
	engine, err := NewWasmEngine(8)
	if err != nil {
		t.Fatalf("NewWasmEngine: %v", err)
	}
	return NewWorld(engine)
}

func mustNumeric(t *testing.T, n int64, scale uint32) Numeric {
	t.Helper()
	v, err := NewNumeric(big.NewInt(n), scale)
	if err != nil {
		t.Fatalf("NewNumeric: %v", err)
	}
	return v
}

func registerWonderlandDomain(t *testing.T, w *World, owner AccountId) DomainId {
	t.Helper()
	domain, err := ParseDomainId("wonderland")
	if err != nil {
		t.Fatalf("ParseDomainId: %v", err)
	}
	if err := w.Apply(NewRegisterDomain(Domain{Id: domain, Owner: owner})); err != nil {
		t.Fatalf("register domain: %v", err)
	}
	return domain
}

func TestApplyRegisterAccountRequiresExistingDomain(t *testing.T) {
	w := testWorld(t)
	acc, err := ParseAccountId("ed25519:deadbeef@wonderland")
	if err != nil {
		t.Fatalf("ParseAccountId: %v", err)
	}

	if err := w.Apply(NewRegisterAccount(Account{Id: acc})); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid registering into a nonexistent domain, got %v", err)
	}

	registerWonderlandDomain(t, w, acc)
	if err := w.Apply(NewRegisterAccount(Account{Id: acc})); err != nil {
		t.Fatalf("register account: %v", err)
	}
	if err := w.Apply(NewRegisterAccount(Account{Id: acc})); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid re-registering the same account, got %v", err)
	}
}

func TestApplyUnregisterDomainRequiresExisting(t *testing.T) {
	w := testWorld(t)
	acc, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	domain := registerWonderlandDomain(t, w, acc)

	if err := w.Apply(NewUnregister(ObjectDomain, domain)); err != nil {
		t.Fatalf("unregister domain: %v", err)
	}
	if err := w.Apply(NewUnregister(ObjectDomain, domain)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound unregistering an absent domain, got %v", err)
	}
}

func TestApplyMintBurnAssetRespectsMintability(t *testing.T) {
	w := testWorld(t)
	owner, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	registerWonderlandDomain(t, w, owner)

	def, err := ParseAssetDefinitionId("rose#wonderland")
	if err != nil {
		t.Fatalf("ParseAssetDefinitionId: %v", err)
	}
	if err := w.Apply(NewRegisterAssetDefinition(AssetDefinition{Id: def, Mintability: MintOnce, Owner: owner})); err != nil {
		t.Fatalf("register asset definition: %v", err)
	}
	if err := w.Apply(NewRegisterAccount(Account{Id: owner})); err != nil {
		t.Fatalf("register account: %v", err)
	}

	assetID, err := ParseAssetId("rose##ed25519:deadbeef@wonderland")
	if err != nil {
		t.Fatalf("ParseAssetId: %v", err)
	}
	if err := w.Apply(NewRegisterAsset(Asset{Id: assetID, Value: ZeroNumeric(0)})); err != nil {
		t.Fatalf("register asset: %v", err)
	}

	amount := mustNumeric(t, 10, 0)
	if err := w.Apply(NewMintAsset(amount, assetID)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	// MintOnce is now exhausted.
	if err := w.Apply(NewMintAsset(amount, assetID)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid minting a second time under MintOnce, got %v", err)
	}

	tooMuch := mustNumeric(t, 100, 0)
	if err := w.Apply(NewBurnAsset(tooMuch, assetID)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow burning more than the balance, got %v", err)
	}
	if err := w.Apply(NewBurnAsset(amount, assetID)); err != nil {
		t.Fatalf("burn: %v", err)
	}
}

func TestApplyTransferAssetNumericMovesBalance(t *testing.T) {
	w := testWorld(t)
	alice, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	bob, _ := ParseAccountId("ed25519:cafebabe@wonderland")
	registerWonderlandDomain(t, w, alice)
	if err := w.Apply(NewRegisterAccount(Account{Id: alice})); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := w.Apply(NewRegisterAccount(Account{Id: bob})); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	def, _ := ParseAssetDefinitionId("rose#wonderland")
	if err := w.Apply(NewRegisterAssetDefinition(AssetDefinition{Id: def, Mintability: MintInfinitely, Owner: alice})); err != nil {
		t.Fatalf("register asset definition: %v", err)
	}
	aliceAsset, _ := ParseAssetId("rose##ed25519:deadbeef@wonderland")
	if err := w.Apply(NewRegisterAsset(Asset{Id: aliceAsset, Value: mustNumeric(t, 10, 0)})); err != nil {
		t.Fatalf("register alice's asset: %v", err)
	}

	if err := w.Apply(NewTransferAssetNumeric(alice, aliceAsset, mustNumeric(t, 4, 0), bob)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	bobAsset, _ := ParseAssetId("rose##ed25519:cafebabe@wonderland")
	got, ok := w.assets[bobAsset]
	if !ok {
		t.Fatal("expected bob's asset to be created by the transfer")
	}
	if got.Value.Cmp(mustNumeric(t, 4, 0)) != 0 {
		t.Fatalf("expected bob's balance 4, got %s", got.Value)
	}
	srcLeft := w.assets[aliceAsset]
	if srcLeft.Value.Cmp(mustNumeric(t, 6, 0)) != 0 {
		t.Fatalf("expected alice's remaining balance 6, got %s", srcLeft.Value)
	}

	if err := w.Apply(NewTransferAssetNumeric(alice, aliceAsset, mustNumeric(t, 1000, 0), bob)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow transferring more than the balance, got %v", err)
	}
}

func TestApplySetKeyValueAndRemoveKeyValueOnAsset(t *testing.T) {
	w := testWorld(t)
	alice, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	registerWonderlandDomain(t, w, alice)
	if err := w.Apply(NewRegisterAccount(Account{Id: alice})); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	def, _ := ParseAssetDefinitionId("rose#wonderland")
	if err := w.Apply(NewRegisterAssetDefinition(AssetDefinition{Id: def, Mintability: MintInfinitely, Owner: alice})); err != nil {
		t.Fatalf("register asset definition: %v", err)
	}
	assetID, _ := ParseAssetId("rose##ed25519:deadbeef@wonderland")
	if err := w.Apply(NewRegisterAsset(Asset{Id: assetID, Value: ZeroNumeric(0)})); err != nil {
		t.Fatalf("register asset: %v", err)
	}

	setIns, err := NewSetKeyValue(KVAsset, assetID, Name("color"), []byte(`"red"`))
	if err != nil {
		t.Fatalf("NewSetKeyValue: %v", err)
	}
	if err := w.Apply(setIns); err != nil {
		t.Fatalf("apply SetKeyValue on asset: %v", err)
	}
	stored := w.assets[assetID]
	raw, ok := stored.Metadata.Get(Name("color"))
	if !ok || string(raw) != `"red"` {
		t.Fatalf("expected asset metadata color=red, got %s ok=%v", raw, ok)
	}

	if err := w.Apply(NewRemoveKeyValue(KVAsset, assetID, Name("color"))); err != nil {
		t.Fatalf("apply RemoveKeyValue on asset: %v", err)
	}
	if _, ok := w.assets[assetID].Metadata.Get(Name("color")); ok {
		t.Fatal("expected key to be removed")
	}
	if err := w.Apply(NewRemoveKeyValue(KVAsset, assetID, Name("color"))); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing an absent key, got %v", err)
	}
}

func TestApplySetKeyValueOnTrigger(t *testing.T) {
	w := testWorld(t)
	id := mustTriggerId(t, "logger")
	filter := NewDataFilter(nil, DataEventSetOf(DataEventAsset))
	alice := testAuthority(t)
	action, err := NewAction(InstructionsExecutable([]Instruction{NewLog(LogInfo, "noop")}), Indefinitely(), alice, filter, Metadata{})
	if err != nil {
		t.Fatalf("NewAction: %v", err)
	}
	if err := w.Apply(NewRegisterTrigger(Trigger{Id: id, Action: action})); err != nil {
		t.Fatalf("register trigger: %v", err)
	}

	setIns, err := NewSetKeyValue(KVTrigger, id, Name("note"), []byte(`"hi"`))
	if err != nil {
		t.Fatalf("NewSetKeyValue: %v", err)
	}
	if err := w.Apply(setIns); err != nil {
		t.Fatalf("apply SetKeyValue on trigger: %v", err)
	}
	got, found := w.triggers.InspectById(id, func(a LoadedAction) any { return a.Metadata })
	if !found {
		t.Fatal("expected trigger to be found")
	}
	raw, ok := got.(Metadata).Get(Name("note"))
	if !ok || string(raw) != `"hi"` {
		t.Fatalf("expected trigger metadata note=hi, got %s ok=%v", raw, ok)
	}

	if err := w.Apply(NewRemoveKeyValue(KVTrigger, id, Name("note"))); err != nil {
		t.Fatalf("apply RemoveKeyValue on trigger: %v", err)
	}
	if err := w.Apply(NewRemoveKeyValue(KVTrigger, id, Name("note"))); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing an absent trigger key, got %v", err)
	}

	absent := mustTriggerId(t, "ghost")
	setAbsent, _ := NewSetKeyValue(KVTrigger, absent, Name("note"), []byte(`"hi"`))
	if err := w.Apply(setAbsent); !errors.Is(err, ErrTriggerNotFound) {
		t.Fatalf("expected ErrTriggerNotFound for unknown trigger, got %v", err)
	}
}

func TestApplyGrantRevokePermissionToRole(t *testing.T) {
	w := testWorld(t)
	alice, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	registerWonderlandDomain(t, w, alice)

	roleID, err := ParseRoleId("admin")
	if err != nil {
		t.Fatalf("ParseRoleId: %v", err)
	}
	if err := w.Apply(NewRegisterRole(Role{Id: roleID})); err != nil {
		t.Fatalf("register role: %v", err)
	}

	perm, err := NewPermission("can_transfer", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewPermission: %v", err)
	}

	if err := w.Apply(NewGrantPermissionToRole(perm, roleID)); err != nil {
		t.Fatalf("grant permission to role: %v", err)
	}
	role := w.roles[roleID]
	if len(role.Permissions) != 1 || role.Permissions[0].Name != perm.Name {
		t.Fatalf("expected role to carry the granted permission, got %+v", role.Permissions)
	}

	if err := w.Apply(NewGrantPermissionToRole(perm, roleID)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid granting the same permission twice, got %v", err)
	}

	if err := w.Apply(NewRevokePermissionFromRole(perm, roleID)); err != nil {
		t.Fatalf("revoke permission from role: %v", err)
	}
	if len(w.roles[roleID].Permissions) != 0 {
		t.Fatal("expected role's permission list to be empty after revoke")
	}
	if err := w.Apply(NewRevokePermissionFromRole(perm, roleID)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound revoking an absent permission, got %v", err)
	}
}

func TestApplyGrantRoleToRoleIsRejected(t *testing.T) {
	w := testWorld(t)
	roleID, _ := ParseRoleId("admin")
	if err := w.Apply(NewRegisterRole(Role{Id: roleID})); err != nil {
		t.Fatalf("register role: %v", err)
	}
	other, _ := ParseRoleId("other")
	ins := Instruction{Kind: InstructionGrant, GrantObjectKind: GrantObjectRole, GrantRole: other, GrantDestKind: GrantDestRole, GrantDestRole: roleID}
	if err := w.Apply(ins); !errors.Is(err, ErrStructural) {
		t.Fatalf("expected ErrStructural granting a role to a role, got %v", err)
	}
}

func TestApplyGrantRoleToAccountRequiresAccount(t *testing.T) {
	w := testWorld(t)
	alice, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	roleID, _ := ParseRoleId("admin")

	if err := w.Apply(NewGrantRoleToAccount(roleID, alice)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound granting to a nonexistent account, got %v", err)
	}

	registerWonderlandDomain(t, w, alice)
	if err := w.Apply(NewRegisterAccount(Account{Id: alice})); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := w.Apply(NewRegisterRole(Role{Id: roleID})); err != nil {
		t.Fatalf("register role: %v", err)
	}
	if err := w.Apply(NewGrantRoleToAccount(roleID, alice)); err != nil {
		t.Fatalf("grant role to account: %v", err)
	}
	if !w.access.HasRole(alice, roleID) {
		t.Fatal("expected alice to hold the granted role")
	}
}

func TestSnapshotRollsBackOnError(t *testing.T) {
	w := testWorld(t)
	alice, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	registerWonderlandDomain(t, w, alice)

	err := w.Snapshot(func() error {
		if err := w.Apply(NewRegisterAccount(Account{Id: alice})); err != nil {
			return err
		}
		return errors.New("abort transaction")
	})
	if err == nil {
		t.Fatal("expected Snapshot to surface fn's error")
	}
	if _, ok := w.accounts[alice]; ok {
		t.Fatal("expected account registration to be rolled back")
	}

	if err := w.Snapshot(func() error {
		return w.Apply(NewRegisterAccount(Account{Id: alice}))
	}); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if _, ok := w.accounts[alice]; !ok {
		t.Fatal("expected account registration to persist after a successful Snapshot")
	}
}

func TestApplyLogInstructionEmitsEntry(t *testing.T) {
	w := testWorld(t)
	logger, hook := logtest.NewNullLogger()
	w.SetLogger(logger)

	if err := w.Apply(NewLog(LogWarn, "disk almost full")); err != nil {
		t.Fatalf("apply Log: %v", err)
	}
	if len(hook.Entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(hook.Entries))
	}
	e := hook.LastEntry()
	if e.Level != log.WarnLevel || e.Message != "disk almost full" {
		t.Fatalf("unexpected log entry: level=%v message=%q", e.Level, e.Message)
	}
}
