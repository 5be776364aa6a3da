package core

import (
	"math/big"
	"testing"
)

func TestNewSetKeyValueRejectsMalformedJSON(t *testing.T) {
	acc, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	if _, err := NewSetKeyValue(KVAccount, acc, Name("k"), []byte("not json")); err == nil {
		t.Fatal("expected error for malformed JSON value")
	}
	ins, err := NewSetKeyValue(KVAccount, acc, Name("k"), []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("NewSetKeyValue: %v", err)
	}
	if ins.Kind != InstructionSetKeyValue || ins.KVObjectKind != KVAccount {
		t.Fatalf("unexpected instruction shape: %+v", ins)
	}
}

func TestNewExecuteTriggerRejectsMalformedArgs(t *testing.T) {
	id, _ := ParseTriggerId("alarm")
	if _, err := NewExecuteTrigger(id, []byte("not json")); err == nil {
		t.Fatal("expected error for malformed JSON args")
	}
	ins, err := NewExecuteTrigger(id, nil)
	if err != nil {
		t.Fatalf("NewExecuteTrigger with nil args: %v", err)
	}
	if ins.Kind != InstructionExecuteTrigger || !ins.ExecuteTriggerId.Equal(id) {
		t.Fatalf("unexpected instruction shape: %+v", ins)
	}
}

func TestNewCustomRejectsMalformedPayload(t *testing.T) {
	if _, err := NewCustom([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed JSON payload")
	}
	if _, err := NewCustom([]byte(`{"x":1}`)); err != nil {
		t.Fatalf("NewCustom: %v", err)
	}
}

func TestNewTransferAssetNumericShape(t *testing.T) {
	src, _ := ParseAccountId("ed25519:deadbeef@wonderland")
	dest, _ := ParseAccountId("ed25519:cafebabe@wonderland")
	asset, _ := ParseAssetId("rose##ed25519:deadbeef@wonderland")
	amount, _ := NewNumeric(big.NewInt(10), 0)

	ins := NewTransferAssetNumeric(src, asset, amount, dest)
	if ins.Kind != InstructionTransfer || ins.TransferKind != TransferAssetNumeric {
		t.Fatalf("unexpected instruction shape: %+v", ins)
	}
	if !ins.TransferSrc.Equal(src) || !ins.TransferDest.Equal(dest) {
		t.Fatal("transfer src/dest not preserved")
	}
}

func TestNewMintAndBurnTriggerRepeatsShape(t *testing.T) {
	id, _ := ParseTriggerId("alarm")
	mint := NewMintTriggerRepeats(3, id)
	if mint.Kind != InstructionMint || mint.MintBurnTarget != TargetTriggerRepeats || mint.RepeatsValue != 3 {
		t.Fatalf("unexpected mint shape: %+v", mint)
	}
	burn := NewBurnTriggerRepeats(2, id)
	if burn.Kind != InstructionBurn || burn.MintBurnTarget != TargetTriggerRepeats || burn.RepeatsValue != 2 {
		t.Fatalf("unexpected burn shape: %+v", burn)
	}
}
