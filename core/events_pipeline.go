package core

// TransactionStatus is the transaction pipeline's status machine:
// Queued → (Approved | Rejected | Expired).
type TransactionStatus uint8

const (
	TxQueued TransactionStatus = iota
	TxApproved
	TxRejected
	TxExpired
)

// BlockStatus is the block pipeline's status machine:
// Created → Approved → (Committed | Rejected) → Applied.
type BlockStatus uint8

const (
	BlockCreated BlockStatus = iota
	BlockApproved
	BlockCommitted
	BlockRejected
	BlockApplied
)

// PipelineEventKind discriminates TransactionEvent from BlockEvent.
type PipelineEventKind uint8

const (
	PipelineEventTransaction PipelineEventKind = iota
	PipelineEventBlock
)

// PipelineEvent is a transaction or block progressing through its status
// machine.
type PipelineEvent struct {
	Kind PipelineEventKind

	// Transaction fields
	TxHash        Hash
	TxBlockHeight uint64
	TxStatus      TransactionStatus

	// Block fields
	BlockHeader *BlockHeader
	BlockStatus BlockStatus
}

func NewTransactionEvent(hash Hash, blockHeight uint64, status TransactionStatus) PipelineEvent {
	return PipelineEvent{Kind: PipelineEventTransaction, TxHash: hash, TxBlockHeight: blockHeight, TxStatus: status}
}

func NewBlockEvent(header BlockHeader, status BlockStatus) PipelineEvent {
	return PipelineEvent{Kind: PipelineEventBlock, BlockHeader: &header, BlockStatus: status}
}
