package core

import (
	"bytes"
	"fmt"
)

// BlockHeader is the fixed set of fields identifying a block's position and
// commitment in the chain. Its hash is the block's identity; transaction
// errors and signatures are deliberately not covered by it.
type BlockHeader struct {
	Height           uint64 // NonZero; 1 is genesis
	PrevBlockHash    *Hash  // nil iff Height == 1
	TransactionsHash Hash   // Merkle root over transaction hashes
	CreationTimeMs   uint64
	ViewChangeIndex  uint32 // consensus metadata, opaque to this package
}

// CanonicalBytes encodes the header for hashing.
func (h BlockHeader) CanonicalBytes() []byte {
	var buf bytes.Buffer
	writeU64LE(&buf, h.Height)
	if h.PrevBlockHash != nil {
		buf.WriteByte(1)
		buf.Write(h.PrevBlockHash[:])
	} else {
		buf.WriteByte(0)
	}
	buf.Write(h.TransactionsHash[:])
	writeU64LE(&buf, h.CreationTimeMs)
	writeU32LE(&buf, h.ViewChangeIndex)
	return buf.Bytes()
}

// Hash returns H(canonical_encoding(header)) — the block's identity.
func (h BlockHeader) Hash() Hash { return HashBytes(h.CanonicalBytes()) }

// BlockPayload is the header plus its ordered transactions.
type BlockPayload struct {
	Header       BlockHeader
	Transactions []SignedTransactionV1
}

// VerifyHeaderCommitment checks a header against the ordered transaction
// hashes it claims to commit to: the Merkle root over leaves must equal the
// header's transactions hash, the leaf set must be non-empty, and the
// height / previous-hash structural rules must hold.
func VerifyHeaderCommitment(header BlockHeader, leaves []Hash) error {
	if len(leaves) == 0 {
		return fmt.Errorf("%w: block is empty", ErrInvalid)
	}
	root, err := MerkleRoot(leaves)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !root.Equal(header.TransactionsHash) {
		return fmt.Errorf("%w: transactions' hash incorrect", ErrInvalid)
	}
	if header.Height == 0 {
		return fmt.Errorf("%w: block height must be non-zero", ErrInvalid)
	}
	if header.Height == 1 && header.PrevBlockHash != nil {
		return fmt.Errorf("%w: genesis block must have no previous block hash", ErrInvalid)
	}
	if header.Height != 1 && header.PrevBlockHash == nil {
		return fmt.Errorf("%w: non-genesis block must carry a previous block hash", ErrInvalid)
	}
	return nil
}

// NewBlockPayload is the candidate → validate → value constructor: it
// recomputes the Merkle root over transaction hashes and rejects the
// candidate outright if it doesn't match the header, if any transaction's
// creation time isn't strictly before the header's, or if there are no
// transactions at all.
func NewBlockPayload(header BlockHeader, txs []SignedTransactionV1) (BlockPayload, error) {
	if len(txs) == 0 {
		return BlockPayload{}, fmt.Errorf("%w: block is empty", ErrInvalid)
	}
	leaves := make([]Hash, len(txs))
	for i, tx := range txs {
		if tx.Payload.CreationTime >= header.CreationTimeMs {
			return BlockPayload{}, fmt.Errorf("%w: transaction %d creation time is not before block creation time", ErrInvalid, i)
		}
		leaves[i] = tx.Hash()
	}
	if err := VerifyHeaderCommitment(header, leaves); err != nil {
		return BlockPayload{}, err
	}
	return BlockPayload{Header: header, Transactions: txs}, nil
}

// IsGenesis reports whether this payload is for the height-1 block.
func (p BlockPayload) IsGenesis() bool { return p.Header.Height == 1 }

// TransactionRejectionReason is an opaque, executor-supplied explanation for
// why a transaction at a given index did not apply. The core treats the
// payload as an inert string; only its presence/absence is meaningful to
// genesis validation.
type TransactionRejectionReason struct {
	Reason string
}

// BlockSignature pairs a topology position with a signature over the
// block header.
type BlockSignature struct {
	TopologyIndex uint64
	Signature     []byte
}

// SignedBlockV1 is a fully validated block: header+transactions plus the
// signatures attesting to it and any post-hoc transaction rejection
// reasons. Signatures and Errors are explicitly excluded from the block's
// hash (Header.Hash()) — a concession allowing errors to be attached after
// consensus without invalidating the block's identity.
type SignedBlockV1 struct {
	Signatures []BlockSignature
	Payload    BlockPayload
	Errors     map[uint64]TransactionRejectionReason
}

// NewSignedBlock is the candidate → validate → value constructor.
// Non-genesis blocks require at least one signature; genesis blocks may
// have none (they are presigned before topology is known). No two
// signatures may share a topology index. Genesis blocks are additionally
// checked against the genesis structural rules: no transaction errors, at
// most 5 transactions, every transaction carries only instructions (no
// WASM), and the first transaction is exactly one Upgrade instruction.
func NewSignedBlock(payload BlockPayload, signatures []BlockSignature, errs map[uint64]TransactionRejectionReason) (SignedBlockV1, error) {
	if err := VerifyBlockSignatureSet(signatures, payload.IsGenesis()); err != nil {
		return SignedBlockV1{}, err
	}

	if payload.IsGenesis() {
		if len(errs) != 0 {
			return SignedBlockV1{}, fmt.Errorf("%w: genesis block must have no transaction errors", ErrInvalid)
		}
		if len(payload.Transactions) > 5 {
			return SignedBlockV1{}, fmt.Errorf("%w: genesis block must have at most 5 transactions", ErrInvalid)
		}
		for i, tx := range payload.Transactions {
			if tx.Payload.Instructions.Kind == ExecutableWasm {
				return SignedBlockV1{}, fmt.Errorf("%w: genesis transaction %d must not carry WASM", ErrInvalid, i)
			}
		}
		first := payload.Transactions[0]
		if first.Payload.Instructions.Kind != ExecutableInstructions || len(first.Payload.Instructions.Instructions) != 1 {
			return SignedBlockV1{}, fmt.Errorf("%w: genesis block's first transaction must be a single instruction", ErrInvalid)
		}
		if first.Payload.Instructions.Instructions[0].Kind != InstructionUpgrade {
			return SignedBlockV1{}, fmt.Errorf("%w: genesis block's first transaction must be an Upgrade instruction", ErrInvalid)
		}
	}

	if errs == nil {
		errs = map[uint64]TransactionRejectionReason{}
	}
	return SignedBlockV1{Signatures: signatures, Payload: payload, Errors: errs}, nil
}

// VerifyBlockSignatureSet checks a block's signature list: no two
// signatures may share a topology index, and a non-genesis block must carry
// at least one signature (genesis blocks are presigned before topology is
// known and may start empty).
func VerifyBlockSignatureSet(signatures []BlockSignature, genesis bool) error {
	if !genesis && len(signatures) == 0 {
		return fmt.Errorf("%w: non-genesis block must have at least one signature", ErrInvalid)
	}
	seen := make(map[uint64]struct{}, len(signatures))
	for _, sig := range signatures {
		if _, dup := seen[sig.TopologyIndex]; dup {
			return fmt.Errorf("%w: duplicate signature in block", ErrInvalid)
		}
		seen[sig.TopologyIndex] = struct{}{}
	}
	return nil
}

// Hash returns the block's identity hash: the header hash alone.
func (b SignedBlockV1) Hash() Hash { return b.Payload.Header.Hash() }

// Header is a convenience accessor.
func (b SignedBlockV1) Header() BlockHeader { return b.Payload.Header }

// Transactions is a convenience accessor.
func (b SignedBlockV1) Transactions() []SignedTransactionV1 { return b.Payload.Transactions }

// Error returns the rejection reason recorded for transaction index i, if
// any.
func (b SignedBlockV1) Error(index uint64) (TransactionRejectionReason, bool) {
	r, ok := b.Errors[index]
	return r, ok
}
