package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Hash is a 32-byte SHA-256 digest used for transaction hashes, block hashes
// and Merkle nodes.
type Hash [32]byte

func HashBytes(b []byte) Hash { return sha256.Sum256(b) }

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

func (h Hash) Equal(o Hash) bool { return h == o }

func (h Hash) IsZero() bool { return h == Hash{} }

// writeUvarint appends n as a binary.PutUvarint-encoded value, the
// length-prefix convention used by every variable-length field in the
// canonical encoding.
func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	w := binary.PutUvarint(tmp[:], n)
	buf.Write(tmp[:w])
}

// writeLenPrefixed appends a uvarint length followed by the raw bytes.
func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	writeUvarint(buf, uint64(len(b)))
	buf.Write(b)
}

// writeU64LE appends n as 8 little-endian bytes, used for fixed-width
// numeric fields (heights, timestamps, time-to-live).
func writeU64LE(buf *bytes.Buffer, n uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], n)
	buf.Write(tmp[:])
}

func writeU32LE(buf *bytes.Buffer, n uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], n)
	buf.Write(tmp[:])
}

// writeTag appends a single tag byte, the discriminant prefix used to encode
// closed tagged unions (Instruction, Event, Repeats, ...).
func writeTag(buf *bytes.Buffer, tag byte) {
	buf.WriteByte(tag)
}

// idString renders one of the identifier types held behind an any field
// (UnregisterId, KVObjectId) through its String method. Every identifier in
// this package implements fmt.Stringer with a value receiver, so both value
// and pointer forms resolve.
func idString(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}
