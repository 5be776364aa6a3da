package core

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ExecutableKind discriminates the two forms a transaction's payload may
// take: an ordered instruction list, or a raw WASM binary.
type ExecutableKind uint8

const (
	ExecutableInstructions ExecutableKind = iota
	ExecutableWasm
)

// Executable is either a sequence of Instructions or a WASM byte blob.
type Executable struct {
	Kind         ExecutableKind
	Instructions []Instruction
	Wasm         []byte
}

func InstructionsExecutable(ins []Instruction) Executable {
	return Executable{Kind: ExecutableInstructions, Instructions: ins}
}

func WasmExecutable(bytecode []byte) Executable {
	return Executable{Kind: ExecutableWasm, Wasm: bytecode}
}

// CanonicalBytes encodes the executable for hashing: a tag byte followed by
// either the length-prefixed instruction count and each instruction's own
// canonical bytes, or a length-prefixed WASM blob.
func (e Executable) CanonicalBytes() []byte {
	var buf bytes.Buffer
	switch e.Kind {
	case ExecutableInstructions:
		writeTag(&buf, 0)
		writeUvarint(&buf, uint64(len(e.Instructions)))
		for _, ins := range e.Instructions {
			writeLenPrefixed(&buf, instructionCanonicalBytes(ins))
		}
	case ExecutableWasm:
		writeTag(&buf, 1)
		writeLenPrefixed(&buf, e.Wasm)
	}
	return buf.Bytes()
}

// instructionCanonicalBytes encodes an Instruction's discriminant and its
// full payload. Every field that distinguishes one instruction from another
// must land in these bytes: the transaction hash folds them in directly, so
// two instructions that differ anywhere — destination account, amount,
// parameter value — must never encode identically, or a signature over one
// transaction would verify over the other.
func instructionCanonicalBytes(ins Instruction) []byte {
	var buf bytes.Buffer
	writeTag(&buf, byte(ins.Kind))
	switch ins.Kind {
	case InstructionRegister:
		registerObjectCanonicalBytes(&buf, ins)
	case InstructionUnregister:
		writeTag(&buf, byte(ins.ObjectKind))
		writeLenPrefixed(&buf, []byte(idString(ins.UnregisterId)))
	case InstructionMint, InstructionBurn:
		writeTag(&buf, byte(ins.MintBurnTarget))
		if ins.MintBurnTarget == TargetAsset {
			writeLenPrefixed(&buf, ins.NumericValue.CanonicalBytes())
			writeLenPrefixed(&buf, []byte(ins.AssetDest.String()))
		} else {
			writeU32LE(&buf, ins.RepeatsValue)
			writeLenPrefixed(&buf, []byte(ins.TriggerDest.String()))
		}
	case InstructionTransfer:
		writeTag(&buf, byte(ins.TransferKind))
		writeLenPrefixed(&buf, []byte(ins.TransferSrc.String()))
		switch ins.TransferKind {
		case TransferDomainOwnership:
			writeLenPrefixed(&buf, []byte(ins.TransferDomainObj.String()))
		case TransferAssetDefinitionOwnership:
			writeLenPrefixed(&buf, []byte(ins.TransferAssetDefObj.String()))
		case TransferAssetNumeric:
			writeLenPrefixed(&buf, []byte(ins.TransferAssetObj.String()))
			writeLenPrefixed(&buf, ins.TransferNumeric.CanonicalBytes())
		case TransferAssetStore:
			writeLenPrefixed(&buf, []byte(ins.TransferAssetObj.String()))
			buf.Write(ins.TransferMetadata.CanonicalBytes())
		}
		writeLenPrefixed(&buf, []byte(ins.TransferDest.String()))
	case InstructionSetKeyValue:
		writeTag(&buf, byte(ins.KVObjectKind))
		writeLenPrefixed(&buf, []byte(idString(ins.KVObjectId)))
		writeLenPrefixed(&buf, []byte(ins.KVKey))
		writeLenPrefixed(&buf, ins.KVValue)
	case InstructionRemoveKeyValue:
		writeTag(&buf, byte(ins.KVObjectKind))
		writeLenPrefixed(&buf, []byte(idString(ins.KVObjectId)))
		writeLenPrefixed(&buf, []byte(ins.KVKey))
	case InstructionGrant, InstructionRevoke:
		writeTag(&buf, byte(ins.GrantObjectKind))
		if ins.GrantObjectKind == GrantObjectPermission {
			writeLenPrefixed(&buf, []byte(ins.GrantPermission.Name))
			writeLenPrefixed(&buf, ins.GrantPermission.Payload)
		} else {
			writeLenPrefixed(&buf, []byte(ins.GrantRole.String()))
		}
		writeTag(&buf, byte(ins.GrantDestKind))
		if ins.GrantDestKind == GrantDestAccount {
			writeLenPrefixed(&buf, []byte(ins.GrantDestAccount.String()))
		} else {
			writeLenPrefixed(&buf, []byte(ins.GrantDestRole.String()))
		}
	case InstructionExecuteTrigger:
		writeLenPrefixed(&buf, []byte(ins.ExecuteTriggerId.String()))
		writeLenPrefixed(&buf, ins.ExecuteArgs)
	case InstructionSetParameter:
		writeLenPrefixed(&buf, ins.Parameter.CanonicalBytes())
	case InstructionUpgrade:
		writeLenPrefixed(&buf, ins.ExecutorWasm)
	case InstructionLog:
		writeTag(&buf, byte(ins.LogLevel))
		writeLenPrefixed(&buf, []byte(ins.LogMsg))
	case InstructionCustom:
		writeLenPrefixed(&buf, ins.CustomPayload)
	}
	return buf.Bytes()
}

// registerObjectCanonicalBytes encodes the full entity carried by a
// Register instruction. The NewRegister* constructors guarantee the pointer
// matching ObjectKind is set.
func registerObjectCanonicalBytes(buf *bytes.Buffer, ins Instruction) {
	writeTag(buf, byte(ins.ObjectKind))
	switch ins.ObjectKind {
	case ObjectPeer:
		writeLenPrefixed(buf, []byte(ins.Peer.Id.String()))
	case ObjectDomain:
		writeLenPrefixed(buf, []byte(ins.Domain.Id.String()))
		writeLenPrefixed(buf, []byte(ins.Domain.LogoPath))
		buf.Write(ins.Domain.Metadata.CanonicalBytes())
		writeLenPrefixed(buf, []byte(ins.Domain.Owner.String()))
	case ObjectAccount:
		writeLenPrefixed(buf, []byte(ins.Account.Id.String()))
		buf.Write(ins.Account.Metadata.CanonicalBytes())
	case ObjectAssetDefinition:
		writeLenPrefixed(buf, []byte(ins.AssetDef.Id.String()))
		writeU32LE(buf, ins.AssetDef.Precision)
		writeTag(buf, byte(ins.AssetDef.Mintability))
		writeLenPrefixed(buf, []byte(ins.AssetDef.LogoPath))
		buf.Write(ins.AssetDef.Metadata.CanonicalBytes())
		writeLenPrefixed(buf, []byte(ins.AssetDef.Owner.String()))
		writeLenPrefixed(buf, ins.AssetDef.TotalQuantity.CanonicalBytes())
	case ObjectAsset:
		writeLenPrefixed(buf, []byte(ins.Asset.Id.String()))
		writeLenPrefixed(buf, ins.Asset.Value.CanonicalBytes())
		buf.Write(ins.Asset.Metadata.CanonicalBytes())
	case ObjectRole:
		writeLenPrefixed(buf, []byte(ins.Role.Id.String()))
		writeUvarint(buf, uint64(len(ins.Role.Permissions)))
		for _, p := range ins.Role.Permissions {
			writeLenPrefixed(buf, []byte(p.Name))
			writeLenPrefixed(buf, p.Payload)
		}
	case ObjectTrigger:
		writeLenPrefixed(buf, []byte(ins.Trigger.Id.String()))
		a := ins.Trigger.Action
		writeLenPrefixed(buf, a.Executable.CanonicalBytes())
		if a.Repeats != nil {
			writeTag(buf, byte(a.Repeats.Kind()))
			writeU32LE(buf, a.Repeats.Count())
		} else {
			writeTag(buf, 0xff)
		}
		writeLenPrefixed(buf, []byte(a.Authority.String()))
		writeLenPrefixed(buf, a.Filter.CanonicalBytes())
		buf.Write(a.Metadata.CanonicalBytes())
	}
}

// TransactionPayload is the unsigned content of a transaction.
type TransactionPayload struct {
	ChainId      string
	Authority    AccountId
	CreationTime uint64 // unix ms
	Instructions Executable
	TimeToLive   *uint64 // ms; nil means no expiry
	Nonce        *uint32
	Metadata     Metadata
}

// CanonicalBytes encodes the payload for hashing and signing.
func (p TransactionPayload) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, []byte(p.ChainId))
	writeLenPrefixed(&buf, []byte(p.Authority.String()))
	writeU64LE(&buf, p.CreationTime)
	writeLenPrefixed(&buf, p.Instructions.CanonicalBytes())
	if p.TimeToLive != nil {
		buf.WriteByte(1)
		writeU64LE(&buf, *p.TimeToLive)
	} else {
		buf.WriteByte(0)
	}
	if p.Nonce != nil {
		buf.WriteByte(1)
		writeU32LE(&buf, *p.Nonce)
	} else {
		buf.WriteByte(0)
	}
	buf.Write(p.Metadata.CanonicalBytes())
	return buf.Bytes()
}

// Hash returns H(canonical_encoding(payload)).
func (p TransactionPayload) Hash() Hash {
	return HashBytes(p.CanonicalBytes())
}

// IsLive reports whether the transaction is valid at time t: strictly
// between creation (inclusive) and creation+ttl (exclusive), or always live
// if TimeToLive is nil.
func (p TransactionPayload) IsLive(t uint64) bool {
	if t < p.CreationTime {
		return false
	}
	if p.TimeToLive == nil {
		return true
	}
	return t < p.CreationTime+*p.TimeToLive
}

// SignedTransactionV1 pairs a TransactionPayload with the authority's
// signature over its canonical hash.
type SignedTransactionV1 struct {
	Signature []byte // 65-byte {R||S||V}, go-ethereum secp256k1 convention
	Payload   TransactionPayload
}

// SignTransaction signs payload under priv and returns the resulting
// SignedTransactionV1. The authority embedded in payload is not derived
// from priv here — callers build payload.Authority from whatever signatory
// key material AccountId parsing expects; Sign only attaches a signature.
func SignTransaction(payload TransactionPayload, priv *ecdsa.PrivateKey) (SignedTransactionV1, error) {
	if priv == nil {
		return SignedTransactionV1{}, fmt.Errorf("%w: nil signing key", ErrInvalid)
	}
	h := payload.Hash()
	sig, err := crypto.Sign(h[:], priv)
	if err != nil {
		return SignedTransactionV1{}, fmt.Errorf("sign transaction: %w", err)
	}
	return SignedTransactionV1{Signature: sig, Payload: payload}, nil
}

// verifySignature checks sig against hash under the public key encoded in
// authority's signatory: the key recovered from sig must equal it. Returns
// nil on success, or an ErrInvalid-wrapped error.
func verifySignature(hash Hash, sig []byte, authoritySignatory PublicKey) error {
	if len(sig) != 65 {
		return fmt.Errorf("%w: signature must be 65 bytes, got %d", ErrInvalid, len(sig))
	}
	pubKey, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return fmt.Errorf("%w: recover public key: %v", ErrInvalid, err)
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(pubKey), hash[:], sig[:64]) {
		return fmt.Errorf("%w: signature does not verify", ErrInvalid)
	}
	recovered := NewPublicKey(crypto.FromECDSAPub(pubKey))
	if !recovered.Equal(authoritySignatory) {
		return fmt.Errorf("%w: signature does not match authority's signatory key", ErrInvalid)
	}
	return nil
}

// NewSignedTransaction is the candidate → validate → value constructor: it
// rejects an instruction-form payload with no instructions and a signature
// that does not verify under the authority's signatory key. It is not the
// only source of SignedTransactionV1 values: SignTransaction and struct
// literals produce them without these checks.
func NewSignedTransaction(payload TransactionPayload, signature []byte) (SignedTransactionV1, error) {
	if payload.Instructions.Kind == ExecutableInstructions && len(payload.Instructions.Instructions) == 0 {
		return SignedTransactionV1{}, fmt.Errorf("%w: transaction has no instructions", ErrInvalid)
	}
	if err := verifySignature(payload.Hash(), signature, payload.Authority.Signatory); err != nil {
		return SignedTransactionV1{}, err
	}
	return SignedTransactionV1{Signature: signature, Payload: payload}, nil
}

// Hash returns H(canonical_encoding(SignedTransactionV1)) — matching
// spec's "transaction hash" definition, computed over signature+payload
// together.
func (tx SignedTransactionV1) Hash() Hash {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, tx.Signature)
	buf.Write(tx.Payload.CanonicalBytes())
	return HashBytes(buf.Bytes())
}
