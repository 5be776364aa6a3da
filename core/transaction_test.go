package core

import (
	"bytes"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func testAccountWithKey(t *testing.T) (AccountId, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	pub := NewPublicKey(crypto.FromECDSAPub(&priv.PublicKey))
	domain, _ := ParseDomainId("wonderland")
	return AccountId{Signatory: pub, Domain: domain}, priv
}

func TestSignAndVerifyTransactionRoundTrip(t *testing.T) {
	authority, priv := testAccountWithKey(t)
	ins := NewLog(LogInfo, "hello")
	payload := TransactionPayload{
		ChainId:      "test-chain",
		Authority:    authority,
		CreationTime: 1000,
		Instructions: InstructionsExecutable([]Instruction{ins}),
	}

	signed, err := SignTransaction(payload, priv)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}

	tx, err := NewSignedTransaction(signed.Payload, signed.Signature)
	if err != nil {
		t.Fatalf("NewSignedTransaction: %v", err)
	}
	if tx.Hash() != signed.Hash() {
		t.Fatal("hash mismatch between signed transaction and reconstructed one")
	}
}

func TestNewSignedTransactionRejectsEmptyInstructions(t *testing.T) {
	authority, priv := testAccountWithKey(t)
	payload := TransactionPayload{
		ChainId:      "test-chain",
		Authority:    authority,
		CreationTime: 1000,
		Instructions: InstructionsExecutable(nil),
	}
	signed, err := SignTransaction(payload, priv)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if _, err := NewSignedTransaction(signed.Payload, signed.Signature); err == nil {
		t.Fatal("expected error for empty instruction list")
	}
}

func TestNewSignedTransactionRejectsTamperedSignature(t *testing.T) {
	authority, priv := testAccountWithKey(t)
	payload := TransactionPayload{
		ChainId:      "test-chain",
		Authority:    authority,
		CreationTime: 1000,
		Instructions: InstructionsExecutable([]Instruction{NewLog(LogInfo, "hi")}),
	}
	signed, err := SignTransaction(payload, priv)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	tampered := append([]byte(nil), signed.Signature...)
	tampered[0] ^= 0xff

	if _, err := NewSignedTransaction(signed.Payload, tampered); err == nil {
		t.Fatal("expected error for tampered signature")
	}
}

func TestNewSignedTransactionRejectsWrongAuthority(t *testing.T) {
	_, priv := testAccountWithKey(t)
	otherAuthority, _ := testAccountWithKey(t)
	payload := TransactionPayload{
		ChainId:      "test-chain",
		Authority:    otherAuthority,
		CreationTime: 1000,
		Instructions: InstructionsExecutable([]Instruction{NewLog(LogInfo, "hi")}),
	}
	signed, err := SignTransaction(payload, priv)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if _, err := NewSignedTransaction(signed.Payload, signed.Signature); err == nil {
		t.Fatal("expected error when signature's recovered key doesn't match declared authority")
	}
}

func TestTransactionPayloadIsLive(t *testing.T) {
	ttl := uint64(1000)
	p := TransactionPayload{CreationTime: 1000, TimeToLive: &ttl}
	if p.IsLive(999) {
		t.Fatal("transaction should not be live before creation time")
	}
	if !p.IsLive(1000) {
		t.Fatal("transaction should be live at creation time")
	}
	if !p.IsLive(1999) {
		t.Fatal("transaction should be live just before expiry")
	}
	if p.IsLive(2000) {
		t.Fatal("transaction should not be live at or after expiry")
	}
}

func TestTransactionPayloadIsLiveNoExpiry(t *testing.T) {
	p := TransactionPayload{CreationTime: 1000}
	if !p.IsLive(1_000_000_000) {
		t.Fatal("transaction with nil TimeToLive should never expire")
	}
}

// Every field of an instruction's payload must land in its canonical bytes:
// two instructions differing only in amount, destination, key, value or
// parameter must never encode identically, or a signature over one
// transaction would verify over the other.
func TestInstructionCanonicalBytesDistinguishPayloads(t *testing.T) {
	alice, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	bob, _ := ParseAccountId("ed25519:cafebabe@wonderland")
	mallory, _ := ParseAccountId("ed25519:0badf00d@wonderland")
	asset, _ := ParseAssetId("rose##ed25519:deadbeef@wonderland")
	one, _ := NewNumeric(big.NewInt(1), 0)
	million, _ := NewNumeric(big.NewInt(1_000_000), 0)

	distinct := func(name string, a, b Instruction) {
		t.Helper()
		if bytes.Equal(instructionCanonicalBytes(a), instructionCanonicalBytes(b)) {
			t.Fatalf("%s: two different instructions encoded identically", name)
		}
	}

	distinct("transfer dest",
		NewTransferAssetNumeric(alice, asset, one, bob),
		NewTransferAssetNumeric(alice, asset, one, mallory))
	distinct("transfer amount",
		NewTransferAssetNumeric(alice, asset, one, bob),
		NewTransferAssetNumeric(alice, asset, million, bob))

	perm, err := NewPermission("can_transfer", []byte(`{}`))
	if err != nil {
		t.Fatalf("NewPermission: %v", err)
	}
	distinct("grant dest",
		NewGrantPermissionToAccount(perm, alice),
		NewGrantPermissionToAccount(perm, bob))
	distinct("grant vs revoke",
		NewGrantPermissionToAccount(perm, alice),
		NewRevokePermissionFromAccount(perm, alice))

	setA, err := NewSetKeyValue(KVAccount, alice, Name("color"), []byte(`"red"`))
	if err != nil {
		t.Fatalf("NewSetKeyValue: %v", err)
	}
	setB, err := NewSetKeyValue(KVAccount, alice, Name("color"), []byte(`"blue"`))
	if err != nil {
		t.Fatalf("NewSetKeyValue: %v", err)
	}
	distinct("set-key-value value", setA, setB)
	distinct("set vs remove", setA, NewRemoveKeyValue(KVAccount, alice, Name("color")))

	distinct("set-parameter value",
		NewSetParameter(Parameter{Kind: ParamBlock, Block: DefaultBlockParameters()}),
		NewSetParameter(Parameter{Kind: ParamSumeragi, Sumeragi: DefaultSumeragiParameters()}))

	domA, _ := ParseDomainId("wonderland")
	domB, _ := ParseDomainId("otherland")
	distinct("register domain id",
		NewRegisterDomain(Domain{Id: domA, Owner: alice}),
		NewRegisterDomain(Domain{Id: domB, Owner: alice}))
	distinct("unregister domain id",
		NewUnregister(ObjectDomain, domA),
		NewUnregister(ObjectDomain, domB))
}

func TestTransactionHashCoversTransferPayload(t *testing.T) {
	authority, priv := testAccountWithKey(t)
	bob, _ := ParseAccountId("ed25519:cafebabe@wonderland")
	mallory, _ := ParseAccountId("ed25519:0badf00d@wonderland")
	asset, _ := ParseAssetId("rose##ed25519:deadbeef@wonderland")
	one, _ := NewNumeric(big.NewInt(1), 0)

	base := TransactionPayload{
		ChainId:      "test-chain",
		Authority:    authority,
		CreationTime: 1000,
		Instructions: InstructionsExecutable([]Instruction{NewTransferAssetNumeric(authority, asset, one, bob)}),
	}
	redirected := base
	redirected.Instructions = InstructionsExecutable([]Instruction{NewTransferAssetNumeric(authority, asset, one, mallory)})

	if base.Hash() == redirected.Hash() {
		t.Fatal("transactions transferring to different accounts must not share a hash")
	}

	signed, err := SignTransaction(base, priv)
	if err != nil {
		t.Fatalf("SignTransaction: %v", err)
	}
	if _, err := NewSignedTransaction(redirected, signed.Signature); err == nil {
		t.Fatal("a signature over one transfer must not verify over a redirected one")
	}
}
